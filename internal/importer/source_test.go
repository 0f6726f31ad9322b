package importer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/scenesync/internal/importer"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const kitchenManifest = `
level: Kitchen
objects:
  - name: "Chair"
    asset: props/chair.fbx
    transform:
      translation: [1, 0, 2]
  - name: "Chair"
    asset: props/chair.fbx
  - asset: props/Lamp.fbx
`

func TestYAMLSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kitchen.yaml")
	writeFile(t, path, kitchenManifest)

	ms, err := importer.NewYAMLSource().Load(path)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	m := ms[0]
	assert.Equal(t, "Kitchen", m.Level)
	require.Len(t, m.Objects, 3)
	require.NotNil(t, m.Objects[0].Transform.Translation)
	assert.Equal(t, 2.0, m.Objects[0].Transform.Translation[2])
	assert.Equal(t, "props/Lamp.fbx", m.Objects[2].Asset)
}

func TestYAMLSource_DirSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.yml"), "level: B\nobjects: []\n")
	writeFile(t, filepath.Join(dir, "a.yaml"), "level: A\nobjects: []\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	ms, err := importer.NewYAMLSource().Load(dir)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "A", ms[0].Level)
	assert.Equal(t, "B", ms[1].Level)
}

func TestYAMLSource_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := importer.NewYAMLSource().Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = importer.NewYAMLSource().Load(dir)
	assert.Error(t, err, "empty directory")

	cases := map[string]string{
		"nolevel.yaml":  "objects: []\n",
		"slash.yaml":    "level: a/b\nobjects: []\n",
		"dotdot.yaml":   "level: ..\nobjects: []\n",
		"nameless.yaml": "level: A\nobjects:\n  - transform: {}\n",
		"broken.yaml":   "level: [\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		writeFile(t, path, content)
		_, err := importer.NewYAMLSource().Load(path)
		assert.Error(t, err, name)
	}
}

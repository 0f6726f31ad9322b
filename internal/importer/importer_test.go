package importer_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/scenesync/internal/importer"
	"github.com/cory-johannsen/scenesync/internal/naming"
	"github.com/cory-johannsen/scenesync/internal/scene"
)

func newImporter(t *testing.T, rules ...scene.Rule) *importer.Importer {
	return importer.New(importer.NewYAMLSource(), naming.DefaultPolicy(), zaptest.NewLogger(t), rules...)
}

func levelIDs(l *scene.Level) []string {
	var ids []string
	for _, o := range l.Objects {
		ids = append(ids, o.Name)
	}
	return ids
}

func TestImporter_Run_WritesLevelFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "kitchen.yaml")
	writeFile(t, src, kitchenManifest)
	outDir := filepath.Join(t.TempDir(), "levels")

	sums, err := newImporter(t).Run(context.Background(), src, outDir)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, importer.Summary{
		Level:    "Kitchen",
		Path:     filepath.Join(outDir, "Kitchen.yaml"),
		Imported: 3,
		Renamed:  1,
		Total:    3,
	}, sums[0])

	l, err := scene.LoadLevelFromFile(sums[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", l.Name)
	assert.Equal(t, []string{"Chair", "Chair_1", "Lamp"}, levelIDs(l))
	for _, o := range l.Objects {
		assert.Equal(t, o.Name, o.Label, "labels are synced")
	}
	require.NotNil(t, l.Objects[0].Transform.Translation)
	assert.Equal(t, "props/chair.fbx", l.Objects[0].Asset)
}

func TestImporter_Run_SanitizesForeignNames(t *testing.T) {
	src := filepath.Join(t.TempDir(), "m.yaml")
	writeFile(t, src, `
level: Yard
objects:
  - name: "Big Tree!"
    asset: tree.fbx
  - name: "None"
    asset: x.fbx
  - name: "!!!"
    asset: y.fbx
`)
	outDir := t.TempDir()

	_, err := newImporter(t).Run(context.Background(), src, outDir)
	require.NoError(t, err)

	l, err := scene.LoadLevelFromFile(filepath.Join(outDir, "Yard.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"BigTree", "GeneratedName", "GeneratedName_1"}, levelIDs(l))
}

func TestImporter_Run_MergesExistingLevel(t *testing.T) {
	srcDir := t.TempDir()
	writeFile(t, filepath.Join(srcDir, "1.yaml"), "level: Hall\nobjects:\n  - name: Door\n    asset: door.fbx\n")
	writeFile(t, filepath.Join(srcDir, "2.yaml"), "level: Hall\nobjects:\n  - name: Door\n    asset: door.fbx\n")
	outDir := t.TempDir()
	writeFile(t, filepath.Join(outDir, "Hall.yaml"), "level:\n  name: Hall\n  objects:\n    - name: Door\n      label: Front door\n")

	sums, err := newImporter(t).Run(context.Background(), srcDir, outDir)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, 2, sums[0].Total)
	assert.Equal(t, 3, sums[1].Total)

	l, err := scene.LoadLevelFromFile(filepath.Join(outDir, "Hall.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Door", "Door_1", "Door_2"}, levelIDs(l))
	assert.Equal(t, "Front door", l.Objects[0].Label, "existing labels are kept")
}

func TestImporter_Run_ExistingFileForOtherLevel(t *testing.T) {
	src := filepath.Join(t.TempDir(), "m.yaml")
	writeFile(t, src, "level: Hall\nobjects: []\n")
	outDir := t.TempDir()
	writeFile(t, filepath.Join(outDir, "Hall.yaml"), "level:\n  name: Attic\n  objects: []\n")

	_, err := newImporter(t).Run(context.Background(), src, outDir)
	assert.Error(t, err)
}

func TestImporter_Run_RefusedNameFails(t *testing.T) {
	src := filepath.Join(t.TempDir(), "m.yaml")
	writeFile(t, src, "level: Hall\nobjects:\n  - name: Default__Cube\n")

	_, err := newImporter(t, scene.ReservedPrefixes{"Default__"}).Run(context.Background(), src, t.TempDir())
	assert.ErrorIs(t, err, scene.ErrNameRefused)
}

func TestImporter_Run_SourceError(t *testing.T) {
	_, err := newImporter(t).Run(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir())
	assert.Error(t, err)
}

// Property: every imported level holds unique, label-synced identifiers.
func TestPropertyImporter_UniqueIdentifiers(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOfN(rapid.SampledFrom([]string{"Chair", "Chair_1", "Lamp", "a b", "None", "!"}), 1, 12).Draw(rt, "names")
		var b strings.Builder
		b.WriteString("level: P\nobjects:\n")
		for _, n := range names {
			fmt.Fprintf(&b, "  - name: %q\n    asset: a.fbx\n", n)
		}
		src := filepath.Join(t.TempDir(), "m.yaml")
		writeFile(t, src, b.String())
		outDir := t.TempDir()

		if _, err := newImporter(t).Run(context.Background(), src, outDir); err != nil {
			rt.Fatalf("run: %v", err)
		}
		l, err := scene.LoadLevelFromFile(filepath.Join(outDir, "P.yaml"))
		if err != nil {
			rt.Fatalf("load: %v", err)
		}
		if len(l.Objects) != len(names) {
			rt.Fatalf("got %d objects, want %d", len(l.Objects), len(names))
		}
		for _, o := range l.Objects {
			if o.Label != o.Name {
				rt.Fatalf("label %q not synced to %q", o.Label, o.Name)
			}
		}
	})
}

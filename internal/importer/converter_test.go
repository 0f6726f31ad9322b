package importer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/scenesync/internal/importer"
)

func TestRequestedName(t *testing.T) {
	cases := []struct {
		obj  importer.ManifestObject
		want string
	}{
		{importer.ManifestObject{Name: "Chair 2", Asset: "props/chair.fbx"}, "Chair 2"},
		{importer.ManifestObject{Asset: "props/chair.fbx"}, "chair"},
		{importer.ManifestObject{Asset: `props\lamp.tall.obj`}, "lamp.tall"},
		{importer.ManifestObject{Asset: "door"}, "door"},
		{importer.ManifestObject{}, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, importer.RequestedName(tc.obj), "%+v", tc.obj)
	}
}

// Property: an exported name always wins over the asset.
func TestPropertyRequestedName_NamePreferred(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringN(1, 20, -1).Draw(t, "name")
		asset := rapid.String().Draw(t, "asset")
		if got := importer.RequestedName(importer.ManifestObject{Name: name, Asset: asset}); got != name {
			t.Fatalf("RequestedName = %q, want %q", got, name)
		}
	})
}

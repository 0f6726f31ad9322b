package importer

import (
	"path"
	"strings"
)

// RequestedName returns the name to request for o: its exported name, or
// the asset file name without directory or extension when it has none.
// Both slash and backslash separate asset path components.
//
// Postcondition: result is empty only when o has neither name nor asset.
func RequestedName(o ManifestObject) string {
	if o.Name != "" {
		return o.Name
	}
	if o.Asset == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(o.Asset, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

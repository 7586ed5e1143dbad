package epg

import (
	"path/filepath"

	"github.com/acerestreamer/gateway/internal/config"
	"github.com/acerestreamer/gateway/internal/streamid"
)

// FromConfig converts the persisted EPG source configuration into Sources,
// assigning each a saved-file path under instanceDir/epg derived from its
// URL so repeated loads of the same configuration reuse the same on-disk
// cache file instead of re-downloading on every restart.
func FromConfig(cfgs []config.EPGSourceConfig, instanceDir string) []*Source {
	out := make([]*Source, 0, len(cfgs))
	for _, c := range cfgs {
		slug := streamid.Slugify(c.URL)
		if slug == "" {
			slug = "source"
		}
		out = append(out, &Source{
			URL:            c.URL,
			Format:         c.Format,
			TVGIDOverrides: c.TVGIDOverrides,
			SavedFilePath:  filepath.Join(instanceDir, "epg", slug+".xml"),
		})
	}
	return out
}

package epg

import (
	"testing"

	"github.com/acerestreamer/gateway/internal/config"
)

func TestFromConfig_DerivesStablePathFromURL(t *testing.T) {
	cfgs := []config.EPGSourceConfig{
		{URL: "http://example.com/guide.xml.gz", Format: "xml.gz"},
	}
	a := FromConfig(cfgs, "/data/instance")
	b := FromConfig(cfgs, "/data/instance")
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected 1 source each, got %d/%d", len(a), len(b))
	}
	if a[0].SavedFilePath != b[0].SavedFilePath {
		t.Errorf("expected stable path across conversions: %q vs %q", a[0].SavedFilePath, b[0].SavedFilePath)
	}
	if a[0].Format != "xml.gz" {
		t.Errorf("format = %q", a[0].Format)
	}
}

package scrape

import "testing"

func TestDeriveTVGID_fromTitleBracket(t *testing.T) {
	title, id := deriveTVGID("ESPN [US]", "", nil)
	if id != "ESPN.us" {
		t.Errorf("id = %q, want ESPN.us", id)
	}
	if title != "ESPN [US]" {
		t.Errorf("title changed unexpectedly: %q", title)
	}
}

func TestDeriveTVGID_suppliedPreferredAndEnriches(t *testing.T) {
	title, id := deriveTVGID("ESPN", "ESPN.us", nil)
	if id != "ESPN.us" {
		t.Errorf("id = %q, want ESPN.us unchanged", id)
	}
	if title != "ESPN [US]" {
		t.Errorf("title = %q, want enriched with [US]", title)
	}
}

func TestDeriveTVGID_suppliedNoEnrichWhenTitleAlreadyHasBracket(t *testing.T) {
	title, id := deriveTVGID("ESPN [UK]", "ESPN.us", nil)
	if title != "ESPN [UK]" {
		t.Errorf("title = %q, should not be touched when it already has a bracket", title)
	}
	if id != "ESPN.us" {
		t.Errorf("id = %q", id)
	}
}

func TestDeriveTVGID_noneAvailable(t *testing.T) {
	title, id := deriveTVGID("Some Channel", "", nil)
	if id != "" || title != "Some Channel" {
		t.Errorf("expected no derivation, got title=%q id=%q", title, id)
	}
}

package scrape

import (
	"regexp"
	"strings"

	"github.com/acerestreamer/gateway/internal/streamid"
)

var titleBracketCCRe = regexp.MustCompile(`(?i)^(.*?)\s*\[([A-Za-z]{2})\]\s*$`)
var tvgCountrySuffixRe = regexp.MustCompile(`(?i)\.([a-z]{2})$`)

// deriveTVGID applies the tvg-id derivation rule: a supplied tvg-id is
// preferred (after normalisation), with the title enriched with a "[CC]"
// bracket when the tvg-id embeds a country code the title lacks. With no
// supplied tvg-id, one is derived from the title's own "[CC]" bracket:
// "Name [CC]" -> "Name.cc". Returns the possibly-enriched title and the
// resulting tvg-id (empty if neither source had one).
func deriveTVGID(title, suppliedTVGID string, overrides map[string]string) (outTitle, tvgID string) {
	if suppliedTVGID != "" {
		tvgID = streamid.NormalizeTVGID(suppliedTVGID, overrides)
		outTitle = title
		if titleBracketCCRe.MatchString(title) {
			return outTitle, tvgID
		}
		if m := tvgCountrySuffixRe.FindStringSubmatch(tvgID); m != nil {
			outTitle = title + " [" + strings.ToUpper(m[1]) + "]"
		}
		return outTitle, tvgID
	}
	if m := titleBracketCCRe.FindStringSubmatch(title); m != nil {
		name := strings.TrimSpace(m[1])
		cc := strings.ToLower(m[2])
		return title, name + "." + cc
	}
	return title, ""
}

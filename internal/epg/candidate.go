package epg

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EPGCandidate is one (tvg-id, source) pairing considered during
// selection, keyed by (TVGID, EPGURL) per the scoring algorithm.
type EPGCandidate struct {
	TVGID      string
	EPGURL     string
	Channels   []string
	Programmes []string
	Score      int
}

// score implements the capacity-first gate: few upcoming programmes score
// on upcoming count alone; once there's enough upcoming data, description
// coverage is rewarded; once both are ample, description length and icon
// coverage break further ties.
func score(now time.Time, pm []programmeMatch) int {
	upcoming, withDesc, descLen, withIcon := 0, 0, 0, 0
	for _, p := range pm {
		if !p.start.IsZero() && !p.start.Before(now) {
			upcoming++
		}
		if p.hasDesc {
			withDesc++
			descLen += p.descLen
		}
		if p.hasIcon {
			withIcon++
		}
	}
	switch {
	case upcoming < 5:
		return upcoming
	case withDesc < 5:
		return 5 + withDesc
	default:
		return upcoming + withDesc + descLen/100 + withIcon
	}
}

// buildCandidates parses every source's saved file once, producing the
// best-scoring EPGCandidate per tvg-id across all sources. Ties keep the
// first-encountered candidate, i.e. the earliest source in configuration
// order whose score was never beaten.
func buildCandidates(sources []*Source, tvgIDs []string, now time.Time, log zerolog.Logger) map[string]EPGCandidate {
	wanted := make(map[string]struct{}, len(tvgIDs))
	for _, id := range tvgIDs {
		wanted[id] = struct{}{}
	}

	best := map[string]EPGCandidate{}
	for _, src := range sources {
		if src.SavedFilePath == "" {
			continue
		}
		matches, err := parseSourceFile(src.SavedFilePath, wanted, src.TVGIDOverrides)
		if err != nil {
			log.Warn().Err(err).Str("url", src.URL).Msg("epg source parse failed")
			continue
		}
		for id, m := range matches {
			programmeFrags := make([]string, len(m.programmes))
			for i, p := range m.programmes {
				programmeFrags[i] = p.frag
			}
			cand := EPGCandidate{
				TVGID:      id,
				EPGURL:     src.URL,
				Channels:   m.channels,
				Programmes: programmeFrags,
				Score:      score(now, m.programmes),
			}
			if existing, ok := best[id]; !ok || cand.Score > existing.Score {
				best[id] = cand
			}
		}
	}
	return best
}

// condense emits one XMLTV document containing, in tvgIDs order, the
// selected candidate's <channel> and <programme> fragments. A tvg-id with
// no candidate is skipped.
func condense(generatorName string, tvgIDs []string, best map[string]EPGCandidate) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<tv generator-info-name="`)
	b.WriteString(escapeAttr(generatorName))
	b.WriteString("\">\n")
	for _, id := range tvgIDs {
		cand, ok := best[id]
		if !ok {
			continue
		}
		for _, ch := range cand.Channels {
			b.WriteString(ch)
			b.WriteByte('\n')
		}
	}
	for _, id := range tvgIDs {
		cand, ok := best[id]
		if !ok {
			continue
		}
		for _, p := range cand.Programmes {
			b.WriteString(p)
			b.WriteByte('\n')
		}
	}
	b.WriteString("</tv>\n")
	return []byte(b.String())
}

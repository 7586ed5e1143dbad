package epg

import (
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/acerestreamer/gateway/internal/streamid"
)

// channelNode captures a <channel> element's id attribute plus its raw
// inner XML, so the original display-name/icon markup survives into the
// condensed output unchanged.
type channelNode struct {
	ID    string `xml:"id,attr"`
	Inner string `xml:",innerxml"`
}

// programmeNode captures the fields the scoring formula needs alongside
// the raw inner XML used for re-emission.
type programmeNode struct {
	Channel string `xml:"channel,attr"`
	Start   string `xml:"start,attr"`
	Desc    string `xml:"desc"`
	Icon    []struct {
		Src string `xml:"src,attr"`
	} `xml:"icon"`
	Inner string `xml:",innerxml"`
}

// xmltvTimeLayout is the layout used by XMLTV's start/stop attributes,
// e.g. "20240101120000 +0000".
const xmltvTimeLayout = "20060102150405 -0700"

func parseXMLTVTime(s string) (time.Time, bool) {
	t, err := time.Parse(xmltvTimeLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// sourceMatch is one matched <channel> or <programme>, keyed by its
// normalized tvg-id, for a single source file.
type sourceMatch struct {
	channels   []string // raw "<channel ...>...</channel>" fragments
	programmes []programmeMatch
}

type programmeMatch struct {
	frag    string
	start   time.Time
	hasDesc bool
	descLen int
	hasIcon bool
}

// parseSourceFile streams path's XMLTV body, keeping only <channel> and
// <programme> elements whose normalized id is in wanted. Grounded on
// internal/epglink.ParseXMLTVChannels's decoder-token loop, generalized to
// also collect <programme> elements and to reconstruct each element's raw
// fragment for re-emission instead of decoding display names only.
func parseSourceFile(path string, wanted map[string]struct{}, overrides map[string]string) (map[string]*sourceMatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseXMLTV(f, wanted, overrides)
}

func parseXMLTV(r io.Reader, wanted map[string]struct{}, overrides map[string]string) (map[string]*sourceMatch, error) {
	out := map[string]*sourceMatch{}
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "channel":
			var node channelNode
			if err := dec.DecodeElement(&node, &se); err != nil {
				return nil, err
			}
			id := streamid.NormalizeTVGID(strings.TrimSpace(node.ID), overrides)
			if _, want := wanted[id]; !want {
				continue
			}
			m := matchFor(out, id)
			m.channels = append(m.channels, buildFragment("channel", se.Attr, node.Inner))
		case "programme":
			var node programmeNode
			if err := dec.DecodeElement(&node, &se); err != nil {
				return nil, err
			}
			id := streamid.NormalizeTVGID(strings.TrimSpace(node.Channel), overrides)
			if _, want := wanted[id]; !want {
				continue
			}
			m := matchFor(out, id)
			start, _ := parseXMLTVTime(node.Start)
			desc := strings.TrimSpace(node.Desc)
			m.programmes = append(m.programmes, programmeMatch{
				frag:    buildFragment("programme", se.Attr, node.Inner),
				start:   start,
				hasDesc: desc != "",
				descLen: len(desc),
				hasIcon: len(node.Icon) > 0,
			})
		}
	}
	return out, nil
}

func matchFor(out map[string]*sourceMatch, id string) *sourceMatch {
	m, ok := out[id]
	if !ok {
		m = &sourceMatch{}
		out[id] = m
	}
	return m
}

// buildFragment reconstructs "<tag attr="v" ...>inner</tag>" from a
// decoded StartElement's attributes and its raw inner XML.
func buildFragment(tag string, attrs []xml.Attr, inner string) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(tag)
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name.Local)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	b.WriteString(inner)
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
	return b.String()
}

func escapeAttr(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")
	return r.Replace(s)
}

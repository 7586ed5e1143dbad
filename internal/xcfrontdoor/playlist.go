package xcfrontdoor

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/acerestreamer/gateway/internal/streamid"
	"github.com/acerestreamer/gateway/internal/store"
)

// BuildPlaylist renders entries as an M3U document in the shape spec.md
// §4.I names:
//
//	#EXTINF:-1 tvg-logo="<gateway>/tvg-logo/<file>?token=…" tvg-id="…" group-title="…" x-last-found="<epoch>", <title>
//	<gateway>/hls/<content_id>?token=…
//
// Entries that share the exact same title are disambiguated first (see
// alternateTitles) so the rendered tvg-name/display title is always unique.
func BuildPlaylist(entries []store.CatalogEntry, externalOrigin, token string) []byte {
	origin := strings.TrimRight(externalOrigin, "/")
	titles := alternateTitles(entries)

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, e := range entries {
		title := titles[e.XCID]
		logoSlug := streamid.Slugify(title)
		fmt.Fprintf(&b, "#EXTINF:-1 tvg-logo=%q tvg-id=%q group-title=%q x-last-found=\"%d\", %s\n",
			tokenize(origin+"/tvg-logo/"+logoSlug, token),
			e.TVGID,
			e.GroupTitle,
			e.LastScrapedTime.Unix(),
			title,
		)
		fmt.Fprintf(&b, "%s\n", tokenize(origin+"/hls/"+e.ContentID, token))
	}
	return []byte(b.String())
}

// alternateTitles implements the Alternate-stream marker rule: when
// multiple CatalogEntries share the exact same title, sort the sharing
// group by xc_id ascending and suffix each title with " #1", " #2", ….
// Entries whose title is unique within the catalog are returned unchanged.
func alternateTitles(entries []store.CatalogEntry) map[int]string {
	byTitle := make(map[string][]store.CatalogEntry)
	for _, e := range entries {
		byTitle[e.Title] = append(byTitle[e.Title], e)
	}

	out := make(map[int]string, len(entries))
	for title, group := range byTitle {
		if len(group) == 1 {
			out[group[0].XCID] = title
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].XCID < group[j].XCID })
		for i, e := range group {
			out[e.XCID] = fmt.Sprintf("%s #%d", title, i+1)
		}
	}
	return out
}

func tokenize(rawURL, token string) string {
	if token == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "token=" + url.QueryEscape(token)
}

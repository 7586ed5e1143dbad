package scrape

import (
	"bufio"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/acerestreamer/gateway/internal/httpclient"
	"github.com/acerestreamer/gateway/internal/streamid"
)

const maxM3ULineSize = 1 << 20

// iptvScraper implements Scraper for ScrapeSource.Type == "iptv": the body
// is split into #EXTINF sections, each followed by exactly one URL.
type iptvScraper struct {
	src    ScrapeSource
	client *http.Client
}

func newIPTVScraper(src ScrapeSource, client *http.Client) *iptvScraper {
	if client == nil {
		client = httpclient.Default()
	}
	return &iptvScraper{src: src, client: client}
}

func (s *iptvScraper) Scrape(ctx context.Context) ([]FoundStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.src.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errHTTPStatus(resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(nil, maxM3ULineSize)

	var out []FoundStream
	var extinf string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			extinf = line
			continue
		}
		if extinf == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if fs, ok := s.parseEntry(extinf, line); ok {
			out = append(out, fs)
		}
		extinf = ""
	}
	return out, sc.Err()
}

func (s *iptvScraper) parseEntry(extinf, url string) (FoundStream, bool) {
	title := extinf
	if i := strings.LastIndex(extinf, ","); i >= 0 {
		title = strings.TrimSpace(extinf[i+1:])
	}
	if title == "" {
		return FoundStream{}, false
	}

	tvgID := m3uAttr(extinf, "tvg-id")
	groupTitle := m3uAttr(extinf, "group-title")
	tvgLogo := m3uAttr(extinf, "tvg-logo")
	lastFound := parseLastFound(m3uAttr(extinf, "x-last-found"))

	title, tvgID = deriveTVGID(title, tvgID, s.src.TVGIDOverrides)
	if !s.src.TitleFilter.Allows(title) {
		return FoundStream{}, false
	}

	kind, id, ok := streamid.ExtractStreamRef(url)
	if !ok {
		return FoundStream{}, false
	}

	fs := FoundStream{
		Title:       title,
		TVGID:       tvgID,
		TVGLogo:     tvgLogo,
		GroupTitle:  groupTitle,
		SiteSource:  s.src.Name,
		LastFoundAt: lastFound,
	}
	if kind == streamid.RefContentID {
		fs.ContentID = id
	} else {
		fs.Infohash = id
	}
	return fs, true
}

// m3uAttr extracts attr="value" from an #EXTINF line via literal prefix
// search, mirroring internal/indexer/m3u.go's tvgIDFromEXTINF.
func m3uAttr(extinf, attr string) string {
	prefix := attr + `="`
	i := strings.Index(extinf, prefix)
	if i < 0 {
		return ""
	}
	i += len(prefix)
	j := strings.Index(extinf[i:], `"`)
	if j < 0 {
		return ""
	}
	return extinf[i : i+j]
}

func parseLastFound(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

type errHTTPStatus int

func (e errHTTPStatus) Error() string {
	return "unexpected status code: " + strconv.Itoa(int(e))
}

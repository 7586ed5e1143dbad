package scrape

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/acerestreamer/gateway/internal/httpclient"
	"github.com/acerestreamer/gateway/internal/scrapecache"
	"github.com/acerestreamer/gateway/internal/streamid"
)

// htmlCacheTTL is the fixed fetch cache TTL for HTML sources.
const htmlCacheTTL = time.Hour

// htmlScraper implements Scraper for ScrapeSource.Type == "html": fetch the
// page, parse it, and for every anchor pointing at a known UME URL shape
// walk its ancestor chain (and sibling branches) looking for a title
// candidate tagged with the configured target class.
type htmlScraper struct {
	src    ScrapeSource
	client *http.Client
	cache  *scrapecache.Cache
	regexp []*regexp.Regexp
}

func newHTMLScraper(src ScrapeSource, client *http.Client, cache *scrapecache.Cache) (*htmlScraper, error) {
	if client == nil {
		client = httpclient.Default()
	}
	res := make([]*regexp.Regexp, 0, len(src.HTMLFilter.RegexPostprocessing))
	for _, pat := range src.HTMLFilter.RegexPostprocessing {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, err
		}
		res = append(res, re)
	}
	return &htmlScraper{src: src, client: client, cache: cache, regexp: res}, nil
}

func (s *htmlScraper) Scrape(ctx context.Context) ([]FoundStream, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	anchors := collectAnchors(doc)
	type anchorMatch struct {
		url        string
		candidates []string
	}
	matches := make([]anchorMatch, 0, len(anchors))
	for _, a := range anchors {
		href := attr(a, "href")
		if _, _, ok := streamid.ExtractStreamRef(href); !ok {
			continue
		}
		matches = append(matches, anchorMatch{
			url:        href,
			candidates: s.candidatesFor(a),
		})
	}

	chrome := siteWideChrome(matches, func(m anchorMatch) []string { return m.candidates })

	var out []FoundStream
	for _, m := range matches {
		title := firstNonChrome(m.candidates, chrome)
		if title == "" {
			continue
		}
		title = s.postprocess(title)
		title, tvgID := deriveTVGID(title, "", s.src.TVGIDOverrides)
		if !s.src.TitleFilter.Allows(title) {
			continue
		}
		kind, id, ok := streamid.ExtractStreamRef(m.url)
		if !ok {
			continue
		}
		fs := FoundStream{
			Title:      title,
			TVGID:      tvgID,
			GroupTitle: "",
			SiteSource: s.src.Name,
		}
		if kind == streamid.RefContentID {
			fs.ContentID = id
		} else {
			fs.Infohash = id
		}
		out = append(out, fs)
	}
	return out, nil
}

func (s *htmlScraper) postprocess(title string) string {
	for _, re := range s.regexp {
		title = re.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(title)
}

// candidatesFor walks up from a itself: at every level it scans that
// node's previous siblings for an element matching the target class, then
// (for ancestors, not a itself) checks the ancestor's own class. This
// catches both shapes a source might use: a title tagged as a sibling of
// the anchor ("<span class=title>X</span><a href=...>") and a title
// tagged on a containing element several levels up.
func (s *htmlScraper) candidatesFor(a *html.Node) []string {
	targetClass := s.src.HTMLFilter.TargetClass
	if targetClass == "" {
		return nil
	}
	var out []string
	for n := a; n != nil; n = n.Parent {
		for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type != html.ElementNode {
				continue
			}
			if hasClass(sib, targetClass) {
				if t := strings.TrimSpace(textContent(sib)); t != "" {
					out = append(out, t)
				}
			}
		}
		if n != a && hasClass(n, targetClass) {
			if t := strings.TrimSpace(textContent(n)); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

func (s *htmlScraper) fetch(ctx context.Context) ([]byte, error) {
	if s.cache != nil && s.cache.IsFresh(s.src.URL, htmlCacheTTL) {
		if body := s.cache.Load(s.src.URL); body != nil {
			return body, nil
		}
	}
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
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Save(s.src.URL, body)
	}
	return body, nil
}

func collectAnchors(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	classes := strings.Fields(attr(n, "class"))
	for _, c := range classes {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// siteWideChrome returns the set of candidate strings that appear in every
// single anchor's candidate list — navigation chrome repeated next to
// every link rather than a genuine per-stream title. Only applies when
// there is more than one anchor: a single-anchor page has nothing to
// compare against.
func siteWideChrome[T any](items []T, candidatesOf func(T) []string) map[string]struct{} {
	chrome := map[string]struct{}{}
	if len(items) <= 1 {
		return chrome
	}
	counts := map[string]int{}
	for _, it := range items {
		seen := map[string]struct{}{}
		for _, c := range candidatesOf(it) {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			counts[c]++
		}
	}
	for c, n := range counts {
		if n == len(items) {
			chrome[c] = struct{}{}
		}
	}
	return chrome
}

func firstNonChrome(candidates []string, chrome map[string]struct{}) string {
	for _, c := range candidates {
		if _, isChrome := chrome[c]; !isChrome {
			return c
		}
	}
	return ""
}

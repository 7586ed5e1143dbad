package scrape

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/acerestreamer/gateway/internal/httpclient"
)

// apiEntry is the wire shape of one element of the JSON array an API
// source returns, mirroring internal/schedulesdirect.go's decode-a-list
// idiom.
type apiEntry struct {
	Infohash              string   `json:"infohash"`
	Name                  string   `json:"name"`
	Availability          float64  `json:"availability"`
	AvailabilityUpdatedAt string   `json:"availability_updated_at"`
	Categories            []string `json:"categories,omitempty"`
}

// apiScraper implements Scraper for ScrapeSource.Type == "api": the body
// is a JSON array of apiEntry.
type apiScraper struct {
	src    ScrapeSource
	client *http.Client
}

func newAPIScraper(src ScrapeSource, client *http.Client) *apiScraper {
	if client == nil {
		client = httpclient.Default()
	}
	return &apiScraper{src: src, client: client}
}

func (s *apiScraper) Scrape(ctx context.Context) ([]FoundStream, error) {
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
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var entries []apiEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	var out []FoundStream
	for _, e := range entries {
		if e.Infohash == "" || e.Name == "" {
			continue
		}
		title, tvgID := deriveTVGID(e.Name, "", s.src.TVGIDOverrides)
		if !s.src.TitleFilter.Allows(title) {
			continue
		}
		groupTitle := ""
		if len(e.Categories) > 0 {
			groupTitle = e.Categories[0]
		}
		out = append(out, FoundStream{
			Title:       title,
			Infohash:    e.Infohash,
			TVGID:       tvgID,
			GroupTitle:  groupTitle,
			SiteSource:  s.src.Name,
			LastFoundAt: parseLastFound(e.AvailabilityUpdatedAt),
		})
	}
	return out, nil
}

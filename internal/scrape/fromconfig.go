package scrape

import "github.com/acerestreamer/gateway/internal/config"

// FromConfig converts the persisted scraper configuration into the
// ScrapeSource values the Aggregator consumes. It is a pure field mapping:
// config.SourceConfig's shape was designed to mirror ScrapeSource/
// TitleFilter/HTMLFilter one-for-one.
func FromConfig(cfgs []config.SourceConfig) []ScrapeSource {
	out := make([]ScrapeSource, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, ScrapeSource{
			Type: c.Type,
			Name: c.Name,
			URL:  c.URL,
			TitleFilter: TitleFilter{
				AlwaysExclude: c.AlwaysExclude,
				AlwaysInclude: c.AlwaysInclude,
				Exclude:       c.Exclude,
				Include:       c.Include,
			},
			HTMLFilter: HTMLFilter{
				TargetClass:         c.TargetClass,
				RegexPostprocessing: c.RegexPostprocess,
			},
			TVGIDOverrides: c.TVGIDOverrides,
		})
	}
	return out
}

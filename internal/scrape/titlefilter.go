package scrape

import "strings"

// Allows evaluates title against the filter's five rules, in order,
// stopping at the first one that fires:
//
//  1. Any always_exclude substring -> exclude.
//  2. Any always_include substring -> include.
//  3. Any exclude substring -> exclude.
//  4. include non-empty -> include iff a substring matches, else exclude.
//  5. Default -> include.
//
// All comparisons are case-insensitive and substring-based.
func (f TitleFilter) Allows(title string) bool {
	hay := strings.ToLower(title)
	if containsAny(hay, f.AlwaysExclude) {
		return false
	}
	if containsAny(hay, f.AlwaysInclude) {
		return true
	}
	if containsAny(hay, f.Exclude) {
		return false
	}
	if len(f.Include) > 0 {
		return containsAny(hay, f.Include)
	}
	return true
}

func containsAny(hay string, words []string) bool {
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(hay, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// Package scrape extracts article links from publisher homepage markup.
package scrape

import "strings"

// GenericSelectors is the ordered fallback list applied to hosts without a
// tuned selector set. Earlier entries are more likely to hit real article
// lists.
var GenericSelectors = []string{
	"article h2 a[href]",
	"article h3 a[href]",
	"article a[href]",
	"h2 a[href]",
	"h3 a[href]",
	".headline a[href]",
	".post-title a[href]",
	".entry-title a[href]",
	"main a[href]",
}

// Tuned selector lists for high-volume fantasy publishers whose markup we
// know. Order matters: first passing selector wins the probe.
var hostSelectors = map[string][]string{
	"fantasypros.com": {
		".article-list a[href]",
		"article h3 a[href]",
	},
	"rotoballer.com": {
		"h3.entry-title a[href]",
		".td-module-title a[href]",
	},
	"rotowire.com": {
		".news-list a[href]",
		".article-title a[href]",
	},
	"footballguys.com": {
		".article-listing a[href]",
		"h2 a[href]",
	},
	"fantasyalarm.com": {
		".article-card a[href]",
		"h3 a[href]",
	},
}

// SelectorsForHost returns the candidate selector list for a homepage
// host: the tuned list for known publishers plus the generic fallbacks.
func SelectorsForHost(host string) []string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if tuned, ok := hostSelectors[host]; ok {
		out := make([]string, 0, len(tuned)+len(GenericSelectors))
		out = append(out, tuned...)
		out = append(out, GenericSelectors...)
		return out
	}
	return GenericSelectors
}

// DefaultSelector is used by the fetch dispatcher when a source has no
// configured selector.
const DefaultSelector = "article a[href], h2 a[href], h3 a[href]"

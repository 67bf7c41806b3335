package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/huddlewire/article-ingest/internal/normalize"
)

// Article-style keywords that disqualify a bare capitalized title from
// being a player name.
var articleKeywords = map[string]struct{}{
	"week": {}, "waiver": {}, "wire": {}, "rankings": {}, "ranking": {},
	"start": {}, "sit": {}, "injury": {}, "report": {}, "fantasy": {},
	"news": {}, "top": {}, "vs": {}, "preview": {}, "recap": {},
	"podcast": {}, "mailbag": {}, "dfs": {}, "picks": {}, "sleepers": {},
	"targets": {}, "adds": {}, "trade": {}, "updates": {}, "analysis": {},
}

// URL path segments that never carry a player slug.
var genericSegments = map[string]struct{}{
	"news": {}, "player": {}, "players": {}, "nfl": {}, "football": {},
	"fantasy": {}, "articles": {}, "article": {}, "stories": {}, "index": {},
}

var (
	capitalizedToken = regexp.MustCompile(`^[A-Z][A-Za-z.'-]*$`)
	slugToken        = regexp.MustCompile(`^[a-z][a-z'.]*$`)
	numericOnly      = regexp.MustCompile(`^\d+$`)
)

// applyPlayerPage sets the player-page flag and, when the title was
// regenerated from a URL slug, the display title.
func applyPlayerPage(in Input, result *Result) {
	if name, ok := bareNameTitle(strings.TrimSpace(in.Title)); ok {
		result.IsPlayerPage = true
		result.Players = []string{name}
		return
	}

	if !normalize.HasListGlyph(in.Title) {
		return
	}
	slug, ok := playerSlugFromURL(in.URL)
	if !ok {
		return
	}
	name := titleFromSlug(slug)
	result.IsPlayerPage = true
	result.Players = []string{name}
	result.DisplayTitle = name
}

// bareNameTitle reports whether the title is a bare 2-4 token capitalized
// name with no article-style keywords.
func bareNameTitle(title string) (string, bool) {
	tokens := strings.Fields(title)
	if len(tokens) < 2 || len(tokens) > 4 {
		return "", false
	}
	for _, tok := range tokens {
		if _, keyword := articleKeywords[strings.ToLower(strings.Trim(tok, ".,"))]; keyword {
			return "", false
		}
		if !capitalizedToken.MatchString(tok) {
			return "", false
		}
	}
	return strings.Join(tokens, " "), true
}

// playerSlugFromURL walks the URL path right to left, skipping generic
// segments and numeric ids, and accepts the first remaining segment shaped
// like a hyphenated 2-4 token name.
func playerSlugFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := strings.ToLower(segments[i])
		if seg == "" || numericOnly.MatchString(seg) {
			continue
		}
		if _, generic := genericSegments[seg]; generic {
			continue
		}
		// Strip a trailing numeric id glued onto the slug.
		seg = strings.TrimRight(seg, "0123456789")
		seg = strings.TrimSuffix(seg, "-")
		if isPlayerSlug(seg) {
			return seg, true
		}
		return "", false
	}
	return "", false
}

func isPlayerSlug(seg string) bool {
	parts := strings.Split(seg, "-")
	if len(parts) < 2 || len(parts) > 4 {
		return false
	}
	for _, p := range parts {
		if _, keyword := articleKeywords[p]; keyword {
			return false
		}
		if !slugToken.MatchString(p) {
			return false
		}
	}
	return true
}

// titleFromSlug rebuilds a display name from a hyphenated slug, restoring
// the casing conventions surnames actually use (McCaffrey, O'Brien).
func titleFromSlug(slug string) string {
	parts := strings.Split(slug, "-")
	for i, p := range parts {
		parts[i] = capitalizeNamePart(p)
	}
	return strings.Join(parts, " ")
}

func capitalizeNamePart(p string) string {
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "mc") && len(p) > 2 {
		return "Mc" + strings.ToUpper(p[2:3]) + p[3:]
	}
	if strings.HasPrefix(p, "o'") && len(p) > 2 {
		return "O'" + strings.ToUpper(p[2:3]) + p[3:]
	}
	return strings.ToUpper(p[:1]) + p[1:]
}

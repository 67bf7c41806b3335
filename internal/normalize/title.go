package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
)

// List glyphs some feeds prefix onto entry titles.
var listGlyphPrefix = regexp.MustCompile(`^\s*(?:»|›|>|•|·|-|–|—|\*)+\s*`)

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanTitle strips list-glyph prefixes, decodes HTML entities, and
// collapses whitespace runs.
func CleanTitle(title string) string {
	t := html.UnescapeString(title)
	t = listGlyphPrefix.ReplaceAllString(t, "")
	t = whitespaceRun.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// HasListGlyph reports whether the raw title carries a feed list-glyph
// prefix, which the classifier uses as a player-page signal.
func HasListGlyph(title string) bool {
	return listGlyphPrefix.MatchString(title)
}

// Fingerprint computes a stable hash over (canonical URL, cleaned title)
// for cross-pass duplicate suppression outside the article store.
func Fingerprint(canonicalURL, cleanedTitle string) string {
	content := fmt.Sprintf("%s|%s", canonicalURL, strings.ToLower(cleanedTitle))
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

var weekPattern = regexp.MustCompile(`(?i)\bweek[\s-]*(\d{1,2})\b`)

// InferWeek parses an NFL week from the title, then the URL. Values clamp
// to [1,18]. During the preseason months it defaults to week 0; outside
// them an unknown week stays nil.
func InferWeek(title, rawURL string, now time.Time) *int {
	for _, text := range []string{title, rawURL} {
		m := weekPattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		week := 0
		for _, r := range m[1] {
			week = week*10 + int(r-'0')
		}
		if week < 1 {
			week = 1
		}
		if week > 18 {
			week = 18
		}
		return &week
	}
	if now.Month() == time.July || now.Month() == time.August {
		zero := 0
		return &zero
	}
	return nil
}

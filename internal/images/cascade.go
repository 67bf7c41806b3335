package images

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/huddlewire/article-ingest/internal/ingest"
	"github.com/huddlewire/article-ingest/internal/normalize"
)

// Usability is the verification contract the resolver probes candidates
// against.
type Usability interface {
	IsUsable(ctx context.Context, url string) bool
}

// Resolver walks the candidate cascade for one article and returns the
// first image that survives both the static filters and the usability
// probe. An empty result means the article ships without an image.
type Resolver struct {
	fetcher      ingest.HTMLFetcher
	prober       Usability
	logger       *zap.Logger
	minDimension int
	headshotBase string
}

// NewResolver builds a cascade resolver. headshotBase is the URL prefix
// for the name-keyed headshot service; empty disables that tier.
func NewResolver(fetcher ingest.HTMLFetcher, prober Usability, minDimension int, headshotBase string, logger *zap.Logger) *Resolver {
	return &Resolver{
		fetcher:      fetcher,
		prober:       prober,
		logger:       logger,
		minDimension: minDimension,
		headshotBase: strings.TrimRight(headshotBase, "/"),
	}
}

// Request carries everything the cascade needs for one article.
type Request struct {
	CanonicalURL string
	FeedImageURL string
	// PageHTML, when non-empty, skips the canonical-page fetch.
	PageHTML     string
	IsPlayerPage bool
	Players      []string
}

// Resolve runs the cascade. Tiers in order: feed media, OG/Twitter meta,
// generic page scrape, player headshot.
func (r *Resolver) Resolve(ctx context.Context, req Request) string {
	if url := r.tryCandidate(ctx, req.FeedImageURL); url != "" {
		return url
	}

	html := req.PageHTML
	if html == "" && req.CanonicalURL != "" {
		page, err := r.fetcher.Fetch(ctx, req.CanonicalURL)
		if err != nil {
			r.logger.Debug("image cascade page fetch failed",
				zap.String("url", req.CanonicalURL), zap.Error(err))
		} else {
			html = string(page.Body)
		}
	}

	if html != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err == nil {
			for _, raw := range metaCandidates(doc) {
				if url := r.tryCandidate(ctx, r.absolutize(req.CanonicalURL, raw)); url != "" {
					return url
				}
			}
			for _, raw := range bodyCandidates(doc) {
				if url := r.tryCandidate(ctx, r.absolutize(req.CanonicalURL, raw)); url != "" {
					return url
				}
			}
		}
	}

	if req.IsPlayerPage && len(req.Players) == 1 {
		if url := r.tryCandidate(ctx, r.headshotURL(req.Players[0])); url != "" {
			return url
		}
	}
	return ""
}

// tryCandidate runs one raw URL through the filter chain and then the
// usability probe.
func (r *Resolver) tryCandidate(ctx context.Context, raw string) string {
	cleaned, ok := FilterCandidate(raw, r.minDimension)
	if !ok {
		return ""
	}
	if !r.prober.IsUsable(ctx, cleaned) {
		return ""
	}
	return cleaned
}

func (r *Resolver) absolutize(base, href string) string {
	if base == "" {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	abs, ok := normalize.AbsoluteURL(baseURL, href)
	if !ok {
		return ""
	}
	return abs
}

// metaCandidates extracts OG and Twitter card images in declaration order.
func metaCandidates(doc *goquery.Document) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		if _, dup := seen[raw]; dup {
			return
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}

	selectors := []string{
		`meta[property="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[property="og:image:secure_url"]`,
		`meta[name="twitter:image"]`,
		`meta[name="twitter:image:src"]`,
	}
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			add(s.AttrOr("content", ""))
		})
	}
	return out
}

// bodyCandidates pulls JSON-LD image declarations, then link rel
// image_src, then the first few article-body img tags.
func bodyCandidates(doc *goquery.Document) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		if _, dup := seen[raw]; dup {
			return
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		for _, raw := range jsonLDImages(s.Text()) {
			add(raw)
		}
	})

	doc.Find(`link[rel="image_src"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("href", ""))
	})

	const maxBodyImages = 5
	count := 0
	doc.Find("article img, main img, .article-body img, .entry-content img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.AttrOr("src", "")
		if src == "" {
			src = s.AttrOr("data-src", "")
		}
		add(src)
		count++
		return count < maxBodyImages
	})
	return out
}

// jsonLDImages digs "image" values out of a JSON-LD blob, tolerating the
// string, object, and array shapes publishers use.
func jsonLDImages(blob string) []string {
	var root any
	if err := json.Unmarshal([]byte(blob), &root); err != nil {
		return nil
	}
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch node := v.(type) {
		case map[string]any:
			if img, ok := node["image"]; ok {
				out = append(out, imageValues(img)...)
			}
			if graph, ok := node["@graph"].([]any); ok {
				for _, item := range graph {
					walk(item)
				}
			}
		case []any:
			for _, item := range node {
				walk(item)
			}
		}
	}
	walk(root)
	return out
}

func imageValues(v any) []string {
	switch img := v.(type) {
	case string:
		return []string{img}
	case map[string]any:
		if u, ok := img["url"].(string); ok {
			return []string{u}
		}
	case []any:
		var out []string
		for _, item := range img {
			out = append(out, imageValues(item)...)
		}
		return out
	}
	return nil
}

// headshotURL builds the name-keyed headshot location, e.g.
// base/christian-mccaffrey.png.
func (r *Resolver) headshotURL(player string) string {
	if r.headshotBase == "" || player == "" {
		return ""
	}
	slug := strings.ToLower(strings.TrimSpace(player))
	slug = strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			return c
		case c == ' ', c == '-', c == '\'', c == '.':
			return '-'
		}
		return -1
	}, slug)
	slug = strings.Trim(strings.ReplaceAll(slug, "--", "-"), "-")
	if slug == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s.png", r.headshotBase, slug)
}

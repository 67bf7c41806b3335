package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/huddlewire/article-ingest/internal/ingest"
	"github.com/huddlewire/article-ingest/internal/normalize"
)

// Link is one extracted homepage link.
type Link struct {
	URL   string
	Title string
}

// ExtractLinks applies a CSS selector to homepage HTML and returns
// deduped, same-host, content-filtered links in document order.
func ExtractLinks(html []byte, baseURL, selector string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse homepage html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	seen := make(map[string]struct{})
	var links []Link
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		abs, ok := normalize.AbsoluteURL(base, href)
		if !ok {
			return
		}
		if !sameHost(base, abs) {
			return
		}
		if !IsArticlePath(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, Link{
			URL:   abs,
			Title: strings.TrimSpace(sel.Text()),
		})
	})
	return links, nil
}

func sameHost(base *url.URL, raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") ==
		strings.TrimPrefix(strings.ToLower(base.Hostname()), "www.")
}

// Path prefixes and segments that point at listing hubs rather than
// articles.
var nonArticleSegments = map[string]struct{}{
	"video": {}, "videos": {}, "photo": {}, "photos": {}, "gallery": {},
	"tag": {}, "tags": {}, "category": {}, "author": {}, "authors": {},
	"team": {}, "teams": {}, "podcast": {}, "podcasts": {}, "shop": {},
	"subscribe": {}, "login": {}, "account": {}, "about": {}, "contact": {},
	"privacy": {}, "terms": {},
}

// IsArticlePath rejects links pointing at non-article hubs
// (video/photo/tag/author/team listings and site chrome).
func IsArticlePath(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(strings.ToLower(path), "/") {
		if _, hub := nonArticleSegments[seg]; hub {
			return false
		}
	}
	return true
}

// ToCandidates converts links into candidate items, capped at limit when
// limit > 0.
func ToCandidates(links []Link, limit int) []ingest.CandidateItem {
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	items := make([]ingest.CandidateItem, 0, len(links))
	for _, l := range links {
		items = append(items, ingest.CandidateItem{Title: l.Title, Link: l.URL})
	}
	return items
}

// AlternateFeedLinks returns the feed URLs declared by the homepage's
// alternate-link tags, absolutized against the base URL.
func AlternateFeedLinks(html []byte, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var feeds []string
	doc.Find(`link[rel="alternate"]`).Each(func(_ int, sel *goquery.Selection) {
		typ, _ := sel.Attr("type")
		typ = strings.ToLower(typ)
		if !strings.Contains(typ, "rss") && !strings.Contains(typ, "atom") {
			return
		}
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		abs, ok := normalize.AbsoluteURL(base, href)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		feeds = append(feeds, abs)
	})
	return feeds
}

package adapters

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/huddlewire/article-ingest/internal/ingest"
	"github.com/huddlewire/article-ingest/internal/normalize"
)

const (
	rotowireKey        = "rotowire"
	rotowireSitemapURL = "https://www.rotowire.com/sitemap-news.xml"
)

// RotowireAdapter walks the publisher's news sitemap, which lists fresh
// articles with titles, timestamps, and lead images.
type RotowireAdapter struct {
	client     *http.Client
	userAgent  string
	sitemapURL string
}

// NewRotowireAdapter builds the Rotowire news-sitemap adapter.
func NewRotowireAdapter(client *http.Client, userAgent string) *RotowireAdapter {
	return &RotowireAdapter{
		client:     client,
		userAgent:  userAgent,
		sitemapURL: rotowireSitemapURL,
	}
}

func (a *RotowireAdapter) Key() string { return rotowireKey }

func (a *RotowireAdapter) Match(host string) bool {
	return host == "rotowire.com" || strings.HasSuffix(host, ".rotowire.com")
}

// newsSitemap matches the Google News sitemap schema; encoding/xml keys
// on local element names, so the news: and image: namespaces need no
// special handling.
type newsSitemap struct {
	URLs []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc  string `xml:"loc"`
	News struct {
		Title           string `xml:"title"`
		PublicationDate string `xml:"publication_date"`
	} `xml:"news"`
	Image struct {
		Loc string `xml:"loc"`
	} `xml:"image"`
}

func (a *RotowireAdapter) Index(ctx context.Context) ([]ingest.CandidateItem, error) {
	raw, err := a.get(ctx, a.sitemapURL)
	if err != nil {
		return nil, err
	}

	var sitemap newsSitemap
	if err := xml.Unmarshal(raw, &sitemap); err != nil {
		return nil, fmt.Errorf("rotowire sitemap decode: %w", err)
	}
	if len(sitemap.URLs) == 0 {
		return nil, ingest.ErrNoItems
	}

	items := make([]ingest.CandidateItem, 0, len(sitemap.URLs))
	for _, entry := range sitemap.URLs {
		link := strings.TrimSpace(entry.Loc)
		if !strings.HasPrefix(link, "http") {
			continue
		}
		item := ingest.CandidateItem{
			Title:    strings.TrimSpace(entry.News.Title),
			Link:     link,
			ImageURL: strings.TrimSpace(entry.Image.Loc),
		}
		if ts, ok := parseSitemapTime(entry.News.PublicationDate); ok {
			item.PublishedAt = &ts
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, ingest.ErrNoItems
	}
	return items, nil
}

func (a *RotowireAdapter) Preview(ctx context.Context, limit int) ([]ingest.CandidateItem, error) {
	items, err := a.Index(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Article prefers the sitemap entry; when the URL has rolled off the
// sitemap it falls back to the page's own meta tags.
func (a *RotowireAdapter) Article(ctx context.Context, url string) (*ingest.CandidateItem, error) {
	if items, err := a.Index(ctx); err == nil {
		want := normalize.CanonicalURL(url)
		for i := range items {
			if normalize.CanonicalURL(items[i].Link) == want {
				return &items[i], nil
			}
		}
	}

	raw, err := a.get(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("rotowire article parse: %w", err)
	}

	title := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		return nil, ingest.ErrNotFound
	}

	item := &ingest.CandidateItem{
		Title:    title,
		Link:     url,
		ImageURL: strings.TrimSpace(doc.Find(`meta[property="og:image"]`).AttrOr("content", "")),
		Snippet:  strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", "")),
	}
	if published := doc.Find(`meta[property="article:published_time"]`).AttrOr("content", ""); published != "" {
		if ts, ok := parseSitemapTime(published); ok {
			item.PublishedAt = &ts
		}
	}
	return item, nil
}

func (a *RotowireAdapter) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rotowire request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rotowire fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ingest.TransientError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("rotowire status %d for %s", resp.StatusCode, url),
		}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

func parseSitemapTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z07:00", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

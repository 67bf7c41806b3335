package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/huddlewire/article-ingest/internal/ingest"
	"github.com/huddlewire/article-ingest/internal/normalize"
)

const (
	fantasyProsKey    = "fantasypros"
	fantasyProsAPIURL = "https://www.fantasypros.com/api/v2/json/nfl/articles"
)

// FantasyProsAdapter pulls the article listing from the publisher's JSON
// API instead of scraping its heavily scripted homepage.
type FantasyProsAdapter struct {
	client    *http.Client
	userAgent string
	apiURL    string
}

// NewFantasyProsAdapter builds the FantasyPros JSON API adapter.
func NewFantasyProsAdapter(client *http.Client, userAgent string) *FantasyProsAdapter {
	return &FantasyProsAdapter{
		client:    client,
		userAgent: userAgent,
		apiURL:    fantasyProsAPIURL,
	}
}

func (a *FantasyProsAdapter) Key() string { return fantasyProsKey }

func (a *FantasyProsAdapter) Match(host string) bool {
	return host == "fantasypros.com" || strings.HasSuffix(host, ".fantasypros.com")
}

type fpArticle struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Published string `json:"published"`
	ImageURL  string `json:"image_url"`
	Summary   string `json:"summary"`
}

type fpResponse struct {
	Articles []fpArticle `json:"articles"`
}

func (a *FantasyProsAdapter) Index(ctx context.Context) ([]ingest.CandidateItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fantasypros request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fantasypros fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ingest.TransientError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("fantasypros api status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("fantasypros read: %w", err)
	}

	var payload fpResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("fantasypros decode: %w", err)
	}
	if len(payload.Articles) == 0 {
		return nil, ingest.ErrNoItems
	}

	items := make([]ingest.CandidateItem, 0, len(payload.Articles))
	for _, art := range payload.Articles {
		link := strings.TrimSpace(art.URL)
		if !strings.HasPrefix(link, "http") {
			continue
		}
		item := ingest.CandidateItem{
			Title:    strings.TrimSpace(art.Title),
			Link:     link,
			ImageURL: strings.TrimSpace(art.ImageURL),
			Snippet:  strings.TrimSpace(art.Summary),
		}
		if ts, err := time.Parse(time.RFC3339, art.Published); err == nil {
			item.PublishedAt = &ts
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, ingest.ErrNoItems
	}
	return items, nil
}

func (a *FantasyProsAdapter) Preview(ctx context.Context, limit int) ([]ingest.CandidateItem, error) {
	items, err := a.Index(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Article answers from the live index; the API has no per-article lookup.
func (a *FantasyProsAdapter) Article(ctx context.Context, url string) (*ingest.CandidateItem, error) {
	items, err := a.Index(ctx)
	if err != nil {
		return nil, err
	}
	want := normalize.CanonicalURL(url)
	for i := range items {
		if normalize.CanonicalURL(items[i].Link) == want {
			return &items[i], nil
		}
	}
	return nil, ingest.ErrNotFound
}

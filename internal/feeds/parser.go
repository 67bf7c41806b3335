// Package feeds parses RSS/Atom payloads into candidate items using a
// tolerant parser with one sanitize-and-retry pass for malformed markup.
package feeds

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/huddlewire/article-ingest/internal/ingest"
)

// Parser wraps gofeed with publisher-tolerant behavior.
type Parser struct {
	gofeedParser *gofeed.Parser
}

// NewParser creates a feed parser.
func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Parse parses feed data and returns candidate items. Items without a
// resolvable absolute http(s) link are dropped. On a parse failure the
// payload is sanitized once and retried before giving up.
func (p *Parser) Parse(data []byte) ([]ingest.CandidateItem, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		feed, err = p.gofeedParser.Parse(bytes.NewReader(Sanitize(data)))
		if err != nil {
			return nil, fmt.Errorf("parse feed: %w", err)
		}
	}

	items := make([]ingest.CandidateItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if !isAbsoluteHTTP(link) {
			continue
		}
		candidate := ingest.CandidateItem{
			Title:    strings.TrimSpace(item.Title),
			Link:     link,
			Snippet:  strings.TrimSpace(item.Description),
			ImageURL: mediaImage(item),
		}
		if item.PublishedParsed != nil {
			published := *item.PublishedParsed
			candidate.PublishedAt = &published
		} else if item.UpdatedParsed != nil {
			updated := *item.UpdatedParsed
			candidate.PublishedAt = &updated
		}
		items = append(items, candidate)
	}
	return items, nil
}

// mediaImage extracts a structured image candidate from the item's
// enclosures, feed image, or media RSS extensions. This is the first tier
// of the image cascade.
func mediaImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	return ""
}

func isAbsoluteHTTP(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Sanitize escapes bare entities and strips control characters so a second
// parse attempt has a chance on sloppy publisher XML.
func Sanitize(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		// Keep tab, newline, carriage return; drop other C0 controls.
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			continue
		}
		out = append(out, b)
	}
	return escapeBareAmpersands(out)
}

func escapeBareAmpersands(data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data) + 16)
	for i := 0; i < len(data); i++ {
		if data[i] != '&' {
			buf.WriteByte(data[i])
			continue
		}
		rest := data[i:]
		if entityPrefix.Match(rest) {
			buf.WriteByte('&')
			continue
		}
		buf.WriteString("&amp;")
	}
	return buf.Bytes()
}

var entityPrefix = regexp.MustCompile(`^&(?:[a-zA-Z]{2,8}|#\d{1,6}|#x[0-9a-fA-F]{1,6});`)

package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const homepage = `<!DOCTYPE html>
<html>
<head>
  <link rel="alternate" type="application/rss+xml" href="/feed" />
  <link rel="alternate" type="application/atom+xml" href="https://example.com/atom.xml" />
  <link rel="alternate" type="application/json" href="/feed.json" />
</head>
<body>
  <article><h2><a href="/articles/week-5-waiver-wire">Week 5 Waiver Wire</a></h2></article>
  <article><h2><a href="/articles/start-sit-week-5">Start/Sit Week 5</a></h2></article>
  <article><h2><a href="/articles/week-5-waiver-wire">Week 5 Waiver Wire (dup)</a></h2></article>
  <article><h2><a href="https://other-site.com/articles/offsite">Offsite</a></h2></article>
  <article><h2><a href="/video/highlight-reel">Video Hub</a></h2></article>
  <article><h2><a href="javascript:void(0)">JS Link</a></h2></article>
  <article><h2><a href="mailto:tips@example.com">Mail</a></h2></article>
</body>
</html>`

func TestExtractLinksFiltersAndDedupes(t *testing.T) {
	t.Parallel()

	links, err := ExtractLinks([]byte(homepage), "https://www.example.com/", "article h2 a[href]")
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "https://www.example.com/articles/week-5-waiver-wire", links[0].URL)
	require.Equal(t, "Week 5 Waiver Wire", links[0].Title)
	require.Equal(t, "https://www.example.com/articles/start-sit-week-5", links[1].URL)
}

func TestIsArticlePath(t *testing.T) {
	t.Parallel()

	require.True(t, IsArticlePath("https://example.com/articles/week-5"))
	require.False(t, IsArticlePath("https://example.com/video/highlights"))
	require.False(t, IsArticlePath("https://example.com/tags/waiver-wire"))
	require.False(t, IsArticlePath("https://example.com/authors/jane"))
	require.False(t, IsArticlePath("https://example.com/"))
}

func TestAlternateFeedLinks(t *testing.T) {
	t.Parallel()

	feeds := AlternateFeedLinks([]byte(homepage), "https://example.com/")
	require.Equal(t, []string{
		"https://example.com/feed",
		"https://example.com/atom.xml",
	}, feeds)
}

func TestSelectorsForHostPrefersTunedLists(t *testing.T) {
	t.Parallel()

	tuned := SelectorsForHost("www.fantasypros.com")
	require.Equal(t, ".article-list a[href]", tuned[0])
	require.Contains(t, tuned, GenericSelectors[0])

	generic := SelectorsForHost("unknown-blog.example")
	require.Equal(t, GenericSelectors, generic)
}

func TestToCandidatesCapsAtLimit(t *testing.T) {
	t.Parallel()

	links := []Link{
		{URL: "https://example.com/a", Title: "A"},
		{URL: "https://example.com/b", Title: "B"},
		{URL: "https://example.com/c", Title: "C"},
	}
	items := ToCandidates(links, 2)
	require.Len(t, items, 2)
	require.Equal(t, "https://example.com/a", items[0].Link)
}

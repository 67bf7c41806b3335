package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/huddlewire/article-ingest/internal/ingest"
)

func TestShouldRenderOnSPAMarkers(t *testing.T) {
	t.Parallel()

	d := NewRenderDetector(0)
	page := ingest.Page{
		StatusCode: 200,
		Body:       []byte(`<html><body><div id="root"></div></body></html>`),
	}
	require.True(t, d.ShouldRender(page))
}

func TestShouldRenderOnEmptyBody(t *testing.T) {
	t.Parallel()

	d := NewRenderDetector(0)
	require.True(t, d.ShouldRender(ingest.Page{StatusCode: 200}))
}

func TestShouldRenderOnScriptHeavyShortPage(t *testing.T) {
	t.Parallel()

	d := NewRenderDetector(0)
	body := "<html><head><script>" + strings.Repeat("x", 500) + "</script></head><body>hi</body></html>"
	require.True(t, d.ShouldRender(ingest.Page{StatusCode: 200, Body: []byte(body)}))
}

func TestShouldNotRenderStaticContent(t *testing.T) {
	t.Parallel()

	d := NewRenderDetector(0)
	body := "<html><body>" + strings.Repeat("<article><h2><a href='/a'>Title</a></h2></article>", 100) + "</body></html>"
	require.False(t, d.ShouldRender(ingest.Page{StatusCode: 200, Body: []byte(body)}))
}

func TestShouldNotRenderNon200OrAlreadyRendered(t *testing.T) {
	t.Parallel()

	d := NewRenderDetector(0)
	require.False(t, d.ShouldRender(ingest.Page{StatusCode: 404}))
	require.False(t, d.ShouldRender(ingest.Page{StatusCode: 200, Rendered: true}))
}

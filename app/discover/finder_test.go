package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
)

type fakeRenderer struct {
	html []byte
	err  error
}

func (r *fakeRenderer) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	return r.html, r.err
}

func TestFinder_FromHTML_MatchesAnchorText(t *testing.T) {
	page := `<html><body>
		<a href="/articles/breaking-1">Breaking: markets tumble</a>
		<a href="/articles/breaking-2">Breaking: storm warning</a>
		<a href="/about">About us</a>
		<a href="https://other-host.example/articles/breaking-3">Breaking: elsewhere</a>
		<a href="/articles/breaking-1">Breaking: markets tumble</a>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	finder := NewFinder(&fakeRenderer{}, "test-agent")
	re := regexp.MustCompile(`(?i)breaking`)

	result := finder.FromHTML(context.Background(), server.URL, re, false)

	if len(result.URLs) != 2 {
		t.Fatalf("Expected 2 links, got %d: %v", len(result.URLs), result.URLs)
	}

	// Relative hrefs resolve against the source, cross-host links are dropped,
	// duplicates collapse to the first occurrence.
	base, _ := url.Parse(server.URL)
	expected := []string{
		base.Scheme + "://" + base.Host + "/articles/breaking-1",
		base.Scheme + "://" + base.Host + "/articles/breaking-2",
	}
	for i, want := range expected {
		if result.URLs[i] != want {
			t.Errorf("Expected link %d to be %s, got %s", i, want, result.URLs[i])
		}
	}

	if result.RawHTML == "" {
		t.Error("Expected raw HTML to be retained")
	}
}

func TestFinder_FromHTML_UsesRendererWhenRequested(t *testing.T) {
	renderer := &fakeRenderer{
		html: []byte(`<a href="https://example.com/articles/one">Breaking news</a>`),
	}

	finder := NewFinder(renderer, "test-agent")
	re := regexp.MustCompile(`Breaking`)

	result := finder.FromHTML(context.Background(), "https://example.com", re, true)

	if len(result.URLs) != 1 {
		t.Fatalf("Expected 1 link from rendered HTML, got %d", len(result.URLs))
	}
	if result.URLs[0] != "https://example.com/articles/one" {
		t.Errorf("Unexpected link: %s", result.URLs[0])
	}
}

func TestFinder_FromHTML_FetchFailureDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	finder := NewFinder(&fakeRenderer{}, "test-agent")
	re := regexp.MustCompile(`.`)

	result := finder.FromHTML(context.Background(), server.URL, re, false)

	if len(result.URLs) != 0 {
		t.Errorf("Expected empty result on fetch failure, got %v", result.URLs)
	}
}

func TestFinder_FromHTML_IgnoresNonHTTPSchemes(t *testing.T) {
	page := `<html><body>
		<a href="mailto:tips@example.com">Breaking tips</a>
		<a href="javascript:void(0)">Breaking popup</a>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	finder := NewFinder(&fakeRenderer{}, "test-agent")
	re := regexp.MustCompile(`Breaking`)

	result := finder.FromHTML(context.Background(), server.URL, re, false)

	if len(result.URLs) != 0 {
		t.Errorf("Expected no links for non-http schemes, got %v", result.URLs)
	}
}

func TestFinder_FromRSS_FiltersByTitleOrDescription(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example feed</title>
    <item>
      <title>Breaking: markets tumble</title>
      <link>https://example.com/articles/one</link>
      <description>Stocks fell sharply today.</description>
    </item>
    <item>
      <title>Weather report</title>
      <link>https://example.com/articles/two</link>
      <description>Breaking storm expected overnight.</description>
    </item>
    <item>
      <title>Recipe of the day</title>
      <link>https://example.com/articles/three</link>
      <description>A simple pasta dish.</description>
    </item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feed)
	}))
	defer server.Close()

	finder := NewFinder(&fakeRenderer{}, "test-agent")
	re := regexp.MustCompile(`Breaking`)

	items := finder.FromRSS(context.Background(), server.URL, re)

	if len(items) != 2 {
		t.Fatalf("Expected 2 matched items, got %d", len(items))
	}
	if items[0].Link != "https://example.com/articles/one" {
		t.Errorf("Unexpected first match: %s", items[0].Link)
	}
	if items[1].Link != "https://example.com/articles/two" {
		t.Errorf("Unexpected second match: %s", items[1].Link)
	}
	if items[0].Item == nil || items[0].Item.Title != "Breaking: markets tumble" {
		t.Error("Expected the parsed feed item to be retained on the match")
	}
}

func TestFinder_FromRSS_ParseFailureDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer server.Close()

	finder := NewFinder(&fakeRenderer{}, "test-agent")
	re := regexp.MustCompile(`.`)

	if items := finder.FromRSS(context.Background(), server.URL, re); len(items) != 0 {
		t.Errorf("Expected no items on parse failure, got %d", len(items))
	}
}

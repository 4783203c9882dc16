package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lysyi3m/news-comb/app/database"
)

type fakeRenderer struct {
	html []byte
	err  error
}

func (r *fakeRenderer) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	return r.html, r.err
}

func TestDetectFeedURL(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			"rss link element",
			`<html><head><link type="application/rss+xml" href="/feed.xml"></head></html>`,
			"https://example.com/feed.xml",
		},
		{
			"atom link element",
			`<html><head><link type="application/atom+xml" href="https://example.com/atom"></head></html>`,
			"https://example.com/atom",
		},
		{
			"anchor ending in /rss",
			`<html><body><a href="/news/rss">RSS</a></body></html>`,
			"https://example.com/news/rss",
		},
		{
			"anchor ending in /feed",
			`<html><body><a href="/feed">Subscribe</a></body></html>`,
			"https://example.com/feed",
		},
		{
			"no feed advertised",
			`<html><body><a href="/about">About</a></body></html>`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectFeedURL([]byte(tt.html), "https://example.com/page")
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestService_Add_DetectsFeedAndActivatesFirstSource(t *testing.T) {
	feed := `<?xml version="1.0"?><rss version="2.0"><channel>
		<item><title>One</title><content:encoded><![CDATA[<p>Full body</p>]]></content:encoded></item>
	</channel></rss>`

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>ok</body></html>")
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	rendered := fmt.Sprintf(
		`<html><head><link type="application/rss+xml" href="%s/feed.xml"></head></html>`, server.URL)

	repo := &memSourceRepo{}
	svc := NewService(repo, &fakeRenderer{html: []byte(rendered)}, "test-agent")

	src, err := svc.Add(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if src.RSSURL != server.URL+"/feed.xml" {
		t.Errorf("Expected feed autodetected, got %q", src.RSSURL)
	}
	if !src.FullRSSContent {
		t.Error("Expected full-content marker to be sniffed from the feed")
	}
	if src.NeedBrowser {
		t.Error("A plainly fetchable page should not require the browser")
	}
	if !src.IsActive {
		t.Error("The first source ever added becomes active")
	}
}

func TestService_Add_SecondSourceStaysInactive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html></html>")
	}))
	defer server.Close()

	repo := &memSourceRepo{sources: []database.Source{{ID: 1, URL: "https://one.example", IsActive: true}}}
	svc := NewService(repo, &fakeRenderer{html: []byte("<html></html>")}, "test-agent")

	src, err := svc.Add(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if src.IsActive {
		t.Error("A source added while another is active must stay inactive")
	}
}

func TestService_Add_BlockedPageNeedsBrowser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	repo := &memSourceRepo{}
	svc := NewService(repo, &fakeRenderer{html: []byte("<html></html>")}, "test-agent")

	src, err := svc.Add(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !src.NeedBrowser {
		t.Error("A 403 on plain fetch should flag the source for browser rendering")
	}
}

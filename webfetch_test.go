package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
	<title>Sample Article</title>
	<script>var tracking = "should not appear";</script>
	<style>.hidden { display: none; }</style>
</head>
<body>
	<nav>Site navigation links</nav>
	<h1>Main Heading</h1>
	<p>First paragraph of the article.</p>
	<ul><li>A list item</li></ul>
	<footer>Copyright notice</footer>
</body>
</html>`

// TestFetchURLContent tests fetching and extracting readable text
func TestFetchURLContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	ctx := context.Background()
	content, err := FetchURLContent(ctx, server.URL)
	if err != nil {
		t.Fatalf("FetchURLContent failed: %v", err)
	}

	for _, want := range []string{"Sample Article", "Main Heading", "First paragraph of the article.", "A list item"} {
		if !strings.Contains(content, want) {
			t.Errorf("Extracted content missing %q", want)
		}
	}

	for _, boilerplate := range []string{"should not appear", "display: none", "Site navigation links", "Copyright notice"} {
		if strings.Contains(content, boilerplate) {
			t.Errorf("Extracted content should not contain %q", boilerplate)
		}
	}
}

// TestFetchURLContentCaching tests that a repeat fetch is served from cache
func TestFetchURLContentCaching(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write([]byte("<html><head><title>Cached</title></head><body><p>Body text.</p></body></html>"))
	}))
	defer server.Close()

	ctx := context.Background()
	url := server.URL + "/cached-page"

	first, err := FetchURLContent(ctx, url)
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	second, err := FetchURLContent(ctx, url)
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}

	if first != second {
		t.Error("Cached content should match the original")
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Errorf("Expected 1 upstream request, got %d", hits)
	}
}

// TestFetchURLContentInvalidScheme tests scheme validation
func TestFetchURLContentInvalidScheme(t *testing.T) {
	ctx := context.Background()

	for _, rawURL := range []string{"ftp://example.com/file", "file:///etc/passwd", "not a url at all"} {
		if _, err := FetchURLContent(ctx, rawURL); err == nil {
			t.Errorf("Expected error for %q", rawURL)
		}
	}
}

// TestFetchURLContentErrorStatus tests non-200 upstream responses
func TestFetchURLContentErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	ctx := context.Background()
	if _, err := FetchURLContent(ctx, server.URL+"/missing"); err == nil {
		t.Error("Expected error for 404 response")
	}
}

// TestExtractReadableTextBodyFallback tests pages without semantic markup
func TestExtractReadableTextBodyFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Just some bare body text with&nbsp;spacing.</body></html>"))
	}))
	defer server.Close()

	ctx := context.Background()
	content, err := FetchURLContent(ctx, server.URL+"/bare")
	if err != nil {
		t.Fatalf("FetchURLContent failed: %v", err)
	}

	if !strings.Contains(content, "Just some bare body text with spacing.") {
		t.Errorf("Body fallback missing or whitespace not normalized: %q", content)
	}
}

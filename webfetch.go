package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// FetchTimeout is the HTTP timeout for each URL fetch
	FetchTimeout = 30 * time.Second

	// FetchCacheSize is the maximum number of cached URL extractions
	FetchCacheSize = 128

	// FetchCacheTTL is how long extracted content stays cached
	FetchCacheTTL = 5 * time.Minute

	// MaxFetchContentLen caps extracted text so a single page can't blow up
	// prompt sizes downstream
	MaxFetchContentLen = 20000
)

// urlContentCache caches extracted page text keyed by URL
var urlContentCache = expirable.NewLRU[string, string](FetchCacheSize, nil, FetchCacheTTL)

// FetchURLContent fetches a web page and extracts its readable text so it can
// be attached to a conversation as context. Results are cached; repeated
// fetches of the same URL within the TTL don't hit the network.
func FetchURLContent(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	if content, ok := urlContentCache.Get(rawURL); ok {
		return content, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// Some sites reject requests without browser-ish headers
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	client := &http.Client{
		Timeout: FetchTimeout,
	}

	// Retry once on transport errors
	var resp *http.Response
	maxRetries := 2
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err = client.Do(req)
		if err == nil {
			break
		}

		if attempt < maxRetries-1 {
			log.Printf("Fetch attempt %d for %s failed, retrying: %v", attempt+1, rawURL, err)
			time.Sleep(time.Second)
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s after %d attempts: %w", rawURL, maxRetries, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	content := ExtractReadableText(doc)
	if len(content) > MaxFetchContentLen {
		content = content[:MaxFetchContentLen]
	}

	urlContentCache.Add(rawURL, content)

	return content, nil
}

// ExtractReadableText pulls the human-readable text out of an HTML document:
// the title plus headings, paragraphs and list items, with boilerplate
// elements (scripts, styles, navigation) stripped first.
func ExtractReadableText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, iframe, nav, header, footer, aside").Remove()

	var lines []string

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		lines = append(lines, title)
	}

	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre").Each(func(i int, s *goquery.Selection) {
		text := normalizeWhitespace(s.Text())
		if text != "" {
			lines = append(lines, text)
		}
	})

	// Fallback for pages without semantic markup: take the whole body text
	if len(lines) <= 1 {
		if body := normalizeWhitespace(doc.Find("body").Text()); body != "" {
			lines = append(lines, body)
		}
	}

	return strings.Join(lines, "\n\n")
}

// normalizeWhitespace collapses runs of whitespace (including &nbsp;) into
// single spaces.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.Join(strings.Fields(text), " ")
}

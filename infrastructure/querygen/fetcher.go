package querygen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// maxFetchBytes bounds how much of a page is read for query generation.
const maxFetchBytes = 1 << 20

// HTTPFetcher implements ports.ContentFetcher with a plain GET and an
// HTML-to-text pass. It stands in for the full crawler: good enough to
// feed query generation, not a rendering engine.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher; a nil client uses http.DefaultClient.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

// Fetch downloads the page and returns its visible text with collapsed
// whitespace.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch of %s returned HTTP %d", url, resp.StatusCode)
	}

	text := extractText(io.LimitReader(resp.Body, maxFetchBytes))
	if text == "" {
		return "", fmt.Errorf("no text content at %s", url)
	}
	return text, nil
}

// extractText walks the HTML token stream collecting text nodes, skipping
// script and style bodies.
func extractText(r io.Reader) string {
	var b strings.Builder
	z := html.NewTokenizer(r)
	skipDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" || tag == "noscript" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" || tag == "noscript" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

package feed

import (
	"context"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 15 * time.Second

// HTTPFetcher fetches feeds over HTTP and parses them with gofeed.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher whose client gives up after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}}
}

// Fetch implements Fetcher.
func (h *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]Entry, error) {
	parser := gofeed.NewParser()
	parser.Client = h.client
	parser.UserAgent = "propshell"

	feed, err := parser.ParseURLWithContext(uri, ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		e := Entry{
			Title:     item.Title,
			Published: item.Published,
			Summary:   item.Description,
			Link:      item.Link,
		}
		if e.Summary == "" {
			e.Summary = item.Content
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// CloseIdleConnections closes the client's idle connections.
func (h *HTTPFetcher) CloseIdleConnections() {
	h.client.CloseIdleConnections()
}

package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/propshell/internal/shellerr"
	"github.com/specialistvlad/propshell/internal/testutil"
	"github.com/specialistvlad/propshell/modules/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned entries per uri.
type fakeFetcher struct {
	mu    sync.Mutex
	feeds map[string][]feed.Entry
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, uri string) ([]feed.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	entries, ok := f.feeds[uri]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return entries, nil
}

func (f *fakeFetcher) put(uri string, entries ...feed.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[uri] = entries
}

func newFake() *fakeFetcher {
	f := &fakeFetcher{feeds: map[string][]feed.Entry{}}
	f.put("http://example.com/rss",
		feed.Entry{Title: "First", Published: "Mon, 01 Jan 2024 10:00:00 GMT", Summary: "one", Link: "http://example.com/1"},
		feed.Entry{Title: "Second", Published: "Tue, 02 Jan 2024 10:00:00 GMT", Summary: "two", Link: "http://example.com/2"},
		feed.Entry{Title: "Third", Published: "Wed, 03 Jan 2024 10:00:00 GMT", Summary: "three", Link: "http://example.com/3"},
	)
	return f
}

func TestFeed_Refresh(t *testing.T) {
	h := testutil.NewSession(t, &feed.Module{Fetcher: newFake()})
	h.MustRun(t, "create Feed f\nset f.uri http://example.com/rss")

	assert.Equal(t, "3", h.Get(t, "f.entries"))
	assert.Equal(t, "First", h.Get(t, "f.title"))
	assert.Equal(t, "one", h.Get(t, "f.summary"))
	assert.Equal(t, "http://example.com/1", h.Get(t, "f.link"))

	h.MustRun(t, "set f.entry 2")
	assert.Equal(t, "Third", h.Get(t, "f.title"))
	assert.Equal(t, "Wed, 03 Jan 2024 10:00:00 GMT", h.Get(t, "f.published"))
}

func TestFeed_NotifiesDerivedTogether(t *testing.T) {
	h := testutil.NewSession(t, &feed.Module{Fetcher: newFake()})
	h.MustRun(t, `
create Feed f
create Tally title
create Tally summary
create Tally link
create Tally published
bind f.title title.text
bind f.summary summary.text
bind f.link link.text
bind f.published published.text
set f.uri http://example.com/rss
set f.entry 1
`)
	assert.Equal(t, "Second", h.Get(t, "title.text"))
	assert.Equal(t, "two", h.Get(t, "summary.text"))
	assert.Equal(t, "http://example.com/2", h.Get(t, "link.text"))
	assert.Equal(t, "Tue, 02 Jan 2024 10:00:00 GMT", h.Get(t, "published.text"))
}

func TestFeed_Failures(t *testing.T) {
	testCases := []struct {
		name      string
		batch     string
		expectErr error
	}{
		{name: "entry past the end", batch: "set f.entry 5", expectErr: shellerr.ErrRange},
		{name: "entry beyond manifest range", batch: "set f.entry 20000", expectErr: shellerr.ErrRange},
		{name: "unreachable feed", batch: "set f.uri http://unreachable.invalid/rss", expectErr: shellerr.ErrUnavailable},
		{name: "entries is read-only", batch: "set f.entries 1", expectErr: shellerr.ErrNotWritable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := testutil.NewSession(t, &feed.Module{Fetcher: newFake()})
			h.MustRun(t, "create Feed f\nset f.uri http://example.com/rss\nset f.entry 1")

			require.ErrorIs(t, h.Run(tc.batch), tc.expectErr)

			assert.Equal(t, "http://example.com/rss", h.Get(t, "f.uri"))
			assert.Equal(t, "1", h.Get(t, "f.entry"))
			assert.Equal(t, "Second", h.Get(t, "f.title"))
			assert.Equal(t, "two", h.Get(t, "f.summary"))
		})
	}
}

func TestFeed_CheckForUpdates(t *testing.T) {
	fake := newFake()
	h := testutil.NewSession(t, &feed.Module{Fetcher: fake})
	h.MustRun(t, "create Feed f\nset f.uri http://example.com/rss")

	fake.put("http://example.com/rss", feed.Entry{Title: "Breaking"})
	h.MustRun(t, "call f.check-for-updates")
	assert.Equal(t, "Breaking", h.Get(t, "f.title"))
	assert.Equal(t, "1", h.Get(t, "f.entries"))
	assert.Equal(t, 2, fake.calls)
}

func TestFeed_DefaultURIUnreachable(t *testing.T) {
	fake := newFake()
	h := testutil.NewSession(t, &feed.Module{Fetcher: fake})
	h.MustRun(t, "create Feed f")

	assert.Equal(t, "https://planet.gnome.org/rss20.xml", h.Get(t, "f.uri"))
	assert.Equal(t, 0, fake.calls, "creating a feed does not fetch")

	err := h.Run("call f.check-for-updates")
	require.ErrorIs(t, err, shellerr.ErrUnavailable)
	assert.Contains(t, err.Error(), "Unavailable")
	assert.Equal(t, "", h.Get(t, "f.title"))
}

const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example</title>
  <link>http://example.com/</link>
  <description>example feed</description>
  <item>
    <title>Hello</title>
    <link>http://example.com/hello</link>
    <description>first post</description>
    <pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>World</title>
    <link>http://example.com/world</link>
    <description>second post</description>
    <pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rss" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	t.Cleanup(srv.Close)

	fetcher := feed.NewHTTPFetcher(5 * time.Second)
	t.Cleanup(fetcher.CloseIdleConnections)

	entries, err := fetcher.Fetch(context.Background(), srv.URL+"/rss")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, feed.Entry{
		Title:     "Hello",
		Published: "Mon, 01 Jan 2024 10:00:00 GMT",
		Summary:   "first post",
		Link:      "http://example.com/hello",
	}, entries[0])

	_, err = fetcher.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
}

func TestHTTPFetcher_ThroughSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rss))
	}))
	t.Cleanup(srv.Close)

	h := testutil.NewSession(t, &feed.Module{Fetcher: feed.NewHTTPFetcher(5 * time.Second)})
	h.MustRun(t, "create Feed f\nset f.uri "+srv.URL+"\nset f.entry 1")
	assert.Equal(t, "World", h.Get(t, "f.title"))
}

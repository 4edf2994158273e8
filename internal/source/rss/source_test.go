package rss

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const logFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Platform log</title>
    <link>https://example.com/log/</link>
    <item>
      <title>New cluster available</title>
      <link>https://example.com/log/#new-cluster</link>
      <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
      <content:encoded><![CDATA[Read the [docs](https://example.com/docs).]]></content:encoded>
    </item>
    <item>
      <title><![CDATA[<b>Fish &amp; Chips</b>]]></title>
      <link>https://example.com/log/#fish</link>
      <description>Fallback body</description>
    </item>
  </channel>
</rss>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSource(url string) *Source {
	return New(Config{
		URL:            url,
		UserAgent:      "announcer-test",
		Timeout:        2 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, testLogger())
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_ParsesItems(t *testing.T) {
	srv := serveFeed(t, logFeed)

	got, err := newTestSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "new-cluster", got[0].Identity)
	assert.Equal(t, "New cluster available", got[0].Title)
	assert.Equal(t, "Read the [docs](https://example.com/docs).", got[0].Body)
	assert.Equal(t, "https://example.com/log/#new-cluster", got[0].Link)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), got[0].PublishedAt.UTC())

	assert.Equal(t, "fish", got[1].Identity)
	assert.Equal(t, "Fish & Chips", got[1].Title)
	assert.Equal(t, "Fallback body", got[1].Body)
	assert.True(t, got[1].PublishedAt.IsZero())
}

func TestFetch_EmptyFeed(t *testing.T) {
	srv := serveFeed(t, `<?xml version="1.0"?><rss version="2.0"><channel><title>empty</title></channel></rss>`)

	got, err := newTestSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetch_SkipsMalformedEntries(t *testing.T) {
	srv := serveFeed(t, `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>log</title>
    <item><title>No identity at all</title></item>
    <item><title>  </title><link>https://example.com/log/#blank-title</link></item>
    <item><title>Kept</title><guid>post-1</guid></item>
    <item><title>Duplicate</title><guid>post-1</guid></item>
    <item><title>Plain link</title><link>https://example.com/posts/2</link></item>
  </channel>
</rss>`)

	got, err := newTestSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "post-1", got[0].Identity)
	assert.Equal(t, "Kept", got[0].Title)
	assert.Equal(t, "https://example.com/posts/2", got[1].Identity)
}

func TestFetch_UnparsableFeed(t *testing.T) {
	srv := serveFeed(t, "this is not a feed")

	_, err := newTestSource(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse feed")
}

func TestFetch_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "announcer-test", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, logFeed)
	}))
	defer srv.Close()

	got, err := newTestSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestSource(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "unexpected status: 503")
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_DoesNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusGone} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		}))

		_, err := newTestSource(srv.URL).Fetch(context.Background())
		srv.Close()

		require.Error(t, err)
		assert.NotContains(t, err.Error(), "attempts")
		assert.Equal(t, int32(1), calls.Load(), "status %d", status)
	}
}

func TestFetch_RetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, logFeed)
	}))
	defer srv.Close()

	got, err := newTestSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_AcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = io.WriteString(w, logFeed)
	}))
	defer srv.Close()

	got, err := newTestSource(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFetch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	src.initialBackoff = time.Minute
	src.maxBackoff = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := src.Fetch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCalculateBackoff(t *testing.T) {
	s := &Source{initialBackoff: time.Second, maxBackoff: 5 * time.Second}

	assert.Equal(t, time.Second, s.calculateBackoff(1))
	assert.Equal(t, 2*time.Second, s.calculateBackoff(2))
	assert.Equal(t, 4*time.Second, s.calculateBackoff(3))
	assert.Equal(t, 5*time.Second, s.calculateBackoff(4))
}

// Package rss fetches announcements from an RSS or Atom feed.
package rss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"announcer/internal/domain"
)

// maxFeedSize caps how much of a response body is read.
const maxFeedSize = 16 << 20

type Config struct {
	URL            string
	UserAgent      string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Source struct {
	httpClient     *http.Client
	url            string
	userAgent      string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sanitizer      *bluemonday.Policy
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		url:            cfg.URL,
		userAgent:      cfg.UserAgent,
		maxAttempts:    max(cfg.MaxAttempts, 1),
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		sanitizer:      bluemonday.StrictPolicy(),
		logger:         logger.With("component", "source", "url", cfg.URL),
	}
}

// Fetch downloads the feed and returns its announcements in feed order.
// Entries without an identity or title are skipped.
func (s *Source) Fetch(ctx context.Context) ([]domain.Announcement, error) {
	body, err := s.download(ctx)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	s.logger.Info("fetched feed", "title", feed.Title, "items", len(feed.Items))

	return s.transform(feed.Items), nil
}

func (s *Source) download(ctx context.Context) ([]byte, error) {
	var body []byte
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		body, err = s.doRequest(ctx)
		if err == nil {
			return body, nil
		}
		if !retryable(err) {
			return nil, err
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.code)
}

// retryable reports false for client errors other than 429, which will not
// change by asking again.
func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return true
	}
	return se.code == http.StatusTooManyRequests || se.code >= 500
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(items []*gofeed.Item) []domain.Announcement {
	announcements := make([]domain.Announcement, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for i, item := range items {
		if item == nil {
			continue
		}

		identity := identityOf(item)
		if identity == "" {
			s.logger.Warn("skipping entry without identity", "index", i, "title", item.Title)
			continue
		}

		title := s.cleanTitle(item.Title)
		if title == "" {
			s.logger.Warn("skipping entry without title", "index", i, "identity", identity)
			continue
		}

		if _, dup := seen[identity]; dup {
			s.logger.Warn("skipping duplicate entry", "index", i, "identity", identity)
			continue
		}
		seen[identity] = struct{}{}

		body := item.Content
		if body == "" {
			body = item.Description
		}

		announcement := domain.Announcement{
			Identity: identity,
			Title:    title,
			Body:     body,
			Link:     item.Link,
		}
		if item.PublishedParsed != nil {
			announcement.PublishedAt = *item.PublishedParsed
		} else if item.Published != "" {
			s.logger.Debug("unparsed publish date", "identity", identity, "published", item.Published)
		}

		announcements = append(announcements, announcement)
	}

	return announcements
}

func (s *Source) cleanTitle(title string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(title)))
}

// identityOf prefers the link fragment (posts on a single log page are
// addressed as page#slug), then the GUID, then the link itself.
func identityOf(item *gofeed.Item) string {
	if _, fragment, ok := strings.Cut(item.Link, "#"); ok && fragment != "" {
		return fragment
	}
	if guid := strings.TrimSpace(item.GUID); guid != "" {
		return guid
	}
	return strings.TrimSpace(item.Link)
}

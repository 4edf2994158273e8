// Package slack posts and edits announcement messages in a Slack channel.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"announcer/internal/domain"
)

// maxRateLimitRetries bounds how often a call is repeated after HTTP 429.
const maxRateLimitRetries = 2

type Config struct {
	Token     string
	ChannelID string
	APIURL    string  // override for tests; must end with "/"
	RateLimit float64 // calls per second
}

type Sink struct {
	client    *slack.Client
	channelID string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Sink {
	opts := []slack.Option{slack.OptionHTTPClient(httpClient)}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}

	return &Sink{
		client:    slack.New(cfg.Token, opts...),
		channelID: cfg.ChannelID,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:    logger.With("component", "slack", "channel", cfg.ChannelID),
	}
}

// Create posts content as a new message and returns its reference.
func (s *Sink) Create(ctx context.Context, content string) (domain.MessageRef, error) {
	var ref domain.MessageRef

	err := s.call(ctx, func() error {
		channel, ts, err := s.client.PostMessageContext(ctx, s.channelID,
			slack.MsgOptionText(content, false),
		)
		if err != nil {
			return err
		}
		ref = domain.MessageRef{Channel: channel, Timestamp: ts}
		return nil
	})
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("chat.postMessage: %w", err)
	}

	if ref.Channel == "" {
		ref.Channel = s.channelID
	}

	s.logger.Debug("posted message", "ts", ref.Timestamp)

	return ref, nil
}

// Update replaces the text of the referenced message. A message or channel
// that no longer exists yields domain.ErrStaleReference.
func (s *Sink) Update(ctx context.Context, ref domain.MessageRef, content string) error {
	channel := ref.Channel
	if channel == "" {
		channel = s.channelID
	}

	err := s.call(ctx, func() error {
		_, _, _, err := s.client.UpdateMessageContext(ctx, channel, ref.Timestamp,
			slack.MsgOptionText(content, false),
		)
		return err
	})
	if err != nil {
		if isStale(err) {
			return fmt.Errorf("chat.update %s/%s: %w: %w", channel, ref.Timestamp, domain.ErrStaleReference, err)
		}
		return fmt.Errorf("chat.update: %w", err)
	}

	s.logger.Debug("updated message", "ts", ref.Timestamp)

	return nil
}

func (s *Sink) call(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := fn()

		var limited *slack.RateLimitedError
		if !errors.As(err, &limited) || attempt >= maxRateLimitRetries {
			return err
		}

		s.logger.Warn("rate limited by slack", "retry_after", limited.RetryAfter, "attempt", attempt+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(limited.RetryAfter):
		}
	}
}

func isStale(err error) bool {
	code := err.Error()
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		code = slackErr.Err
	}
	return code == "message_not_found" || code == "channel_not_found"
}

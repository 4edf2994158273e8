// Package redis persists announcement state in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"announcer/internal/domain"
)

// record is the stored value. The hash and timestamp fields match the layout
// written by earlier deployments, so existing keys keep working.
type record struct {
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel,omitempty"`
}

type StateStore struct {
	client *redis.Client
	prefix string
}

func NewStateStore(client *redis.Client, keyPrefix string) *StateStore {
	return &StateStore{client: client, prefix: keyPrefix}
}

// Connect parses uri and verifies the server is reachable.
func Connect(ctx context.Context, uri string) (*redis.Client, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func (s *StateStore) Get(ctx context.Context, identity string) (*domain.StateRecord, error) {
	raw, err := s.client.Get(ctx, s.key(identity)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", identity, err)
	}

	fp, err := domain.ParseFingerprint(rec.Hash)
	if err != nil {
		// Values written with an older digest never match; treat them as changed.
		fp = domain.Fingerprint{}
	}

	return &domain.StateRecord{
		Identity:    identity,
		Fingerprint: fp,
		MessageRef: domain.MessageRef{
			Channel:   rec.Channel,
			Timestamp: rec.Timestamp,
		},
	}, nil
}

func (s *StateStore) Put(ctx context.Context, state *domain.StateRecord) error {
	raw, err := json.Marshal(record{
		Hash:      state.Fingerprint.String(),
		Timestamp: state.MessageRef.Timestamp,
		Channel:   state.MessageRef.Channel,
	})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return s.client.Set(ctx, s.key(state.Identity), raw, 0).Err()
}

func (s *StateStore) key(identity string) string {
	return s.prefix + identity
}

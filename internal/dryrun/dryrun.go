// Package dryrun provides state store and sink stand-ins that only log.
package dryrun

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"announcer/internal/domain"
)

// StateStore never remembers anything, so every announcement looks new.
type StateStore struct {
	logger *slog.Logger
}

func NewStateStore(logger *slog.Logger) *StateStore {
	return &StateStore{logger: logger.With("component", "dry_run_store")}
}

func (s *StateStore) Get(ctx context.Context, identity string) (*domain.StateRecord, error) {
	s.logger.Debug("would read state", "identity", identity)
	return nil, domain.ErrNotFound
}

func (s *StateStore) Put(ctx context.Context, record *domain.StateRecord) error {
	s.logger.Info("would save state",
		"identity", record.Identity,
		"fingerprint", record.Fingerprint.String(),
		"ts", record.MessageRef.Timestamp,
	)
	return nil
}

type Sink struct {
	logger *slog.Logger
}

func NewSink(logger *slog.Logger) *Sink {
	return &Sink{logger: logger.With("component", "dry_run_sink")}
}

// Create logs the message and returns a synthetic reference.
func (s *Sink) Create(ctx context.Context, content string) (domain.MessageRef, error) {
	ref := domain.MessageRef{Channel: "dry-run", Timestamp: uuid.NewString()}
	s.logger.Info("would post message", "ts", ref.Timestamp, "content", content)
	return ref, nil
}

func (s *Sink) Update(ctx context.Context, ref domain.MessageRef, content string) error {
	s.logger.Info("would update message", "channel", ref.Channel, "ts", ref.Timestamp, "content", content)
	return nil
}

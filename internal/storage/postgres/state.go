package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"announcer/internal/domain"
)

type stateRow struct {
	Identity    string    `db:"identity"`
	Fingerprint string    `db:"fingerprint"`
	Channel     string    `db:"channel"`
	MessageTS   string    `db:"message_ts"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type StateStore struct {
	db *sqlx.DB
}

func NewStateStore(db *sqlx.DB) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) Get(ctx context.Context, identity string) (*domain.StateRecord, error) {
	var row stateRow
	query := `
		SELECT identity, fingerprint, channel, message_ts, updated_at
		FROM announcement_state
		WHERE identity = $1`

	err := s.db.GetContext(ctx, &row, query, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	fp, err := domain.ParseFingerprint(row.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", identity, err)
	}

	return &domain.StateRecord{
		Identity:    row.Identity,
		Fingerprint: fp,
		MessageRef: domain.MessageRef{
			Channel:   row.Channel,
			Timestamp: row.MessageTS,
		},
	}, nil
}

func (s *StateStore) Put(ctx context.Context, state *domain.StateRecord) error {
	query := `
		INSERT INTO announcement_state (identity, fingerprint, channel, message_ts, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (identity) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			channel = EXCLUDED.channel,
			message_ts = EXCLUDED.message_ts,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		state.Identity,
		state.Fingerprint.String(),
		state.MessageRef.Channel,
		state.MessageRef.Timestamp,
	)
	return err
}

package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"announcer/internal/domain"
)

type Source interface {
	Fetch(ctx context.Context) ([]domain.Announcement, error)
}

// StateStore returns domain.ErrNotFound from Get for unknown identities.
type StateStore interface {
	Get(ctx context.Context, identity string) (*domain.StateRecord, error)
	Put(ctx context.Context, record *domain.StateRecord) error
}

type Sink interface {
	Create(ctx context.Context, content string) (domain.MessageRef, error)
	Update(ctx context.Context, ref domain.MessageRef, content string) error
}

type Publisher interface {
	Publish(ctx context.Context, announcement *domain.Announcement, action domain.Action, ref domain.MessageRef) error
}

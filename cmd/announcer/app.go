package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"announcer/internal/config"
	"announcer/internal/dryrun"
	"announcer/internal/publisher"
	"announcer/internal/service"
	"announcer/internal/sink/slack"
	"announcer/internal/source/rss"
	"announcer/internal/storage/postgres"
	"announcer/internal/storage/redis"
)

// app holds the wired reconciler and whatever must be closed on exit.
type app struct {
	reconciler *service.ReconcileService
	closers    []func() error
}

func (a *app) Close(logger *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("failed to close resource", "error", err)
		}
	}
}

// buildApp selects real or dry-run collaborators once, at startup.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	source := rss.New(rss.Config{
		URL:            cfg.Source.URL,
		UserAgent:      cfg.Source.UserAgent,
		Timeout:        cfg.Source.Timeout,
		MaxAttempts:    cfg.Source.Retry.MaxAttempts,
		InitialBackoff: cfg.Source.Retry.InitialBackoff,
		MaxBackoff:     cfg.Source.Retry.MaxBackoff,
	}, logger)

	if cfg.DryRun {
		logger.Info("dry-run mode, Slack and state store are disabled")
		a.reconciler = service.NewReconcileService(
			source,
			dryrun.NewStateStore(logger),
			dryrun.NewSink(logger),
			nil,
			logger,
			cfg.Timeouts,
		)
		return a, nil
	}

	store, err := a.openStore(ctx, cfg, logger)
	if err != nil {
		a.Close(logger)
		return nil, err
	}

	sink := slack.New(slack.Config{
		Token:     cfg.Slack.Token,
		ChannelID: cfg.Slack.ChannelID,
		APIURL:    cfg.Slack.APIURL,
		RateLimit: cfg.Slack.RateLimit,
	}, &http.Client{Timeout: cfg.Timeouts.Sink}, logger)

	var pub service.Publisher
	if cfg.Events.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.Events.URL,
			Exchange:   cfg.Events.Exchange,
			RoutingKey: cfg.Events.RoutingKey,
			QueueName:  cfg.Events.QueueName,
		}, logger)
		if err != nil {
			a.Close(logger)
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.closers = append(a.closers, rabbitMQ.Close)
		pub = rabbitMQ
	}

	a.reconciler = service.NewReconcileService(source, store, sink, pub, logger, cfg.Timeouts)
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.StateStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Store)
	defer cancel()

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Store.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		logger.Info("connected to database")
		return postgres.NewStateStore(db), nil
	default:
		client, err := redis.Connect(ctx, cfg.Store.Redis.URI())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		logger.Info("connected to redis")
		return redis.NewStateStore(client, cfg.Store.Redis.KeyPrefix), nil
	}
}

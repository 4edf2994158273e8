package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"announcer/internal/config"
	"announcer/internal/domain"
	"announcer/internal/fingerprint"
	"announcer/internal/metrics"
	"announcer/internal/render"
)

var errEmptyRef = errors.New("sink returned an empty message reference")

type ReconcileService struct {
	source    Source
	store     StateStore
	sink      Sink
	publisher Publisher
	logger    *slog.Logger
	timeouts  config.TimeoutsConfig
	running   *semaphore.Weighted
}

// NewReconcileService wires the collaborators. publisher may be nil.
func NewReconcileService(
	source Source,
	store StateStore,
	sink Sink,
	publisher Publisher,
	logger *slog.Logger,
	timeouts config.TimeoutsConfig,
) *ReconcileService {
	return &ReconcileService{
		source:    source,
		store:     store,
		sink:      sink,
		publisher: publisher,
		logger:    logger.With("component", "reconciler"),
		timeouts:  timeouts,
		running:   semaphore.NewWeighted(1),
	}
}

// Reconcile runs one pass over the feed. It returns domain.ErrRunInProgress
// without side effects while another run is active, and a *domain.FetchError
// when the feed could not be read. Per-announcement failures are reported in
// the summary only.
func (s *ReconcileService) Reconcile(ctx context.Context) (*domain.RunSummary, error) {
	if !s.running.TryAcquire(1) {
		metrics.RecordRejectedRun()
		return nil, domain.ErrRunInProgress
	}
	defer s.running.Release(1)

	startTime := time.Now()
	summary := &domain.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: startTime,
	}
	logger := s.logger.With("run_id", summary.RunID)
	logger.Info("starting reconciliation")

	announcements, err := s.fetch(ctx)
	if err != nil {
		fetchErr := &domain.FetchError{Err: err}
		summary.Error = fetchErr.Error()
		s.finish(logger, summary, startTime)
		return summary, fetchErr
	}
	summary.Fetched = len(announcements)

	logger.Info("fetched announcements", "count", len(announcements))

	for i := range announcements {
		if err := ctx.Err(); err != nil {
			summary.Error = fmt.Sprintf("run interrupted after %d of %d announcements: %v", i, len(announcements), err)
			s.finish(logger, summary, startTime)
			return summary, fmt.Errorf("reconcile: %w", err)
		}
		s.reconcileOne(ctx, logger, &announcements[i], summary)
	}

	s.finish(logger, summary, startTime)

	return summary, nil
}

func (s *ReconcileService) reconcileOne(ctx context.Context, logger *slog.Logger, a *domain.Announcement, summary *domain.RunSummary) {
	logger = logger.With("identity", a.Identity)
	fp := fingerprint.Compute(a.Title, a.Body)

	record, err := s.get(ctx, a.Identity)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.Info("new announcement, posting", "title", a.Title)
		s.create(ctx, logger, a, fp, summary)
	case err != nil:
		// Without the prior state a create could duplicate the message.
		s.fail(logger, summary, a.Identity, domain.StageStoreGet, &domain.StoreError{Op: "get", Err: err})
	case record.Fingerprint == fp:
		logger.Debug("no changes")
		summary.Unchanged++
		metrics.RecordAnnouncement(string(domain.ActionUnchanged))
	default:
		logger.Info("announcement changed, updating", "title", a.Title, "ts", record.MessageRef.Timestamp)
		s.update(ctx, logger, a, record, fp, summary)
	}
}

func (s *ReconcileService) create(ctx context.Context, logger *slog.Logger, a *domain.Announcement, fp domain.Fingerprint, summary *domain.RunSummary) {
	ref, err := s.sinkCreate(ctx, render.Message(*a))
	if err == nil && ref.IsZero() {
		err = errEmptyRef
	}
	if err != nil {
		s.fail(logger, summary, a.Identity, domain.StageSinkCreate, &domain.SinkError{Op: "create", Err: err})
		return
	}

	record := &domain.StateRecord{Identity: a.Identity, Fingerprint: fp, MessageRef: ref}
	if err := s.saveAfterSink(ctx, record); err != nil {
		logger.Error("message posted but state not saved", "channel", ref.Channel, "ts", ref.Timestamp)
		s.fail(logger, summary, a.Identity, domain.StageStorePut, &domain.StoreError{Op: "put", Err: err})
		return
	}

	summary.Created++
	metrics.RecordAnnouncement(string(domain.ActionCreate))
	logger.Info("posted and saved", "channel", ref.Channel, "ts", ref.Timestamp)

	s.publish(ctx, logger, a, domain.ActionCreate, ref, summary)
}

func (s *ReconcileService) update(ctx context.Context, logger *slog.Logger, a *domain.Announcement, prev *domain.StateRecord, fp domain.Fingerprint, summary *domain.RunSummary) {
	if err := s.sinkUpdate(ctx, prev.MessageRef, render.Message(*a)); err != nil {
		s.fail(logger, summary, a.Identity, domain.StageSinkUpdate, &domain.SinkError{Op: "update", Err: err})
		return
	}

	record := &domain.StateRecord{Identity: a.Identity, Fingerprint: fp, MessageRef: prev.MessageRef}
	if err := s.saveAfterSink(ctx, record); err != nil {
		s.fail(logger, summary, a.Identity, domain.StageStorePut, &domain.StoreError{Op: "put", Err: err})
		return
	}

	summary.Updated++
	metrics.RecordAnnouncement(string(domain.ActionUpdate))
	logger.Info("updated and saved", "ts", prev.MessageRef.Timestamp)

	s.publish(ctx, logger, a, domain.ActionUpdate, prev.MessageRef, summary)
}

func (s *ReconcileService) publish(ctx context.Context, logger *slog.Logger, a *domain.Announcement, action domain.Action, ref domain.MessageRef, summary *domain.RunSummary) {
	if s.publisher == nil {
		return
	}

	pubCtx, cancel := withTimeout(ctx, s.timeouts.Sink)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, a, action, ref); err != nil {
		summary.PublishErrors++
		logger.Warn("failed to publish event", "action", action, "error", err)
		return
	}
	summary.Published++
}

func (s *ReconcileService) fail(logger *slog.Logger, summary *domain.RunSummary, identity string, stage domain.Stage, err error) {
	summary.RecordFailure(identity, stage, err)
	metrics.RecordAnnouncement(string(stage))
	logger.Error("failed to reconcile announcement", "stage", stage, "error", err)
}

func (s *ReconcileService) finish(logger *slog.Logger, summary *domain.RunSummary, startTime time.Time) {
	summary.Finish(startTime)
	metrics.RecordRun(string(summary.Status), summary.Duration.Seconds())

	attrs := []any{
		"status", summary.Status,
		"fetched", summary.Fetched,
		"created", summary.Created,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"failed", summary.Failed,
		"published", summary.Published,
		"duration", summary.Duration,
	}
	if summary.Status == domain.RunSucceeded {
		logger.Info("reconciliation completed", attrs...)
		return
	}
	logger.Warn("reconciliation completed with errors", append(attrs, "error", summary.Error)...)
}

func (s *ReconcileService) fetch(ctx context.Context) ([]domain.Announcement, error) {
	ctx, cancel := withTimeout(ctx, s.timeouts.Fetch)
	defer cancel()
	return s.source.Fetch(ctx)
}

func (s *ReconcileService) get(ctx context.Context, identity string) (*domain.StateRecord, error) {
	ctx, cancel := withTimeout(ctx, s.timeouts.Store)
	defer cancel()
	return s.store.Get(ctx, identity)
}

func (s *ReconcileService) put(ctx context.Context, record *domain.StateRecord) error {
	ctx, cancel := withTimeout(ctx, s.timeouts.Store)
	defer cancel()
	return s.store.Put(ctx, record)
}

// saveAfterSink records state for a message the sink already posted or
// edited. Cancelling the run must not drop the write, or the next run would
// post the same announcement again.
func (s *ReconcileService) saveAfterSink(ctx context.Context, record *domain.StateRecord) error {
	return s.put(context.WithoutCancel(ctx), record)
}

func (s *ReconcileService) sinkCreate(ctx context.Context, content string) (domain.MessageRef, error) {
	ctx, cancel := withTimeout(ctx, s.timeouts.Sink)
	defer cancel()
	return s.sink.Create(ctx, content)
}

func (s *ReconcileService) sinkUpdate(ctx context.Context, ref domain.MessageRef, content string) error {
	ctx, cancel := withTimeout(ctx, s.timeouts.Sink)
	defer cancel()
	return s.sink.Update(ctx, ref, content)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/streetfix/resolve-service/internal/config"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/events"
	"github.com/streetfix/resolve-service/internal/observability"
	"github.com/streetfix/resolve-service/internal/repository"
)

// Delivery outcomes recorded in metrics.
const (
	OutcomeDelivered = "delivered"
	OutcomeRetried   = "retried"
	OutcomeDead      = "dead"
)

const (
	defaultBatchSize   = 100
	defaultMaxAttempts = 8
	maxBackoff         = 10 * time.Minute
)

// Publisher pushes a delivered notification to connected clients. Failures are logged
// and never retried; the stored stream is the source of truth.
type Publisher interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// NotificationWorker drains the outbox into per-user notification streams.
type NotificationWorker struct {
	outbox        repository.OutboxRepository
	notifications repository.NotificationRepository
	publisher     Publisher
	metrics       *observability.Metrics
	logger        *zap.Logger

	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	baseBackoff  time.Duration
	lease        time.Duration
	now          func() time.Time

	kick chan struct{}
	wg   sync.WaitGroup
}

// NotificationWorkerDependencies bundles collaborators.
type NotificationWorkerDependencies struct {
	OutboxRepo       repository.OutboxRepository
	NotificationRepo repository.NotificationRepository
	Publisher        Publisher
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Clock            func() time.Time
}

// NewNotificationWorker creates a worker tuned by cfg.
func NewNotificationWorker(cfg config.NotificationConfig, deps NotificationWorkerDependencies) *NotificationWorker {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	poll := cfg.PollInterval()
	return &NotificationWorker{
		outbox:        deps.OutboxRepo,
		notifications: deps.NotificationRepo,
		publisher:     deps.Publisher,
		metrics:       deps.Metrics,
		logger:        logger,
		pollInterval:  poll,
		batchSize:     batch,
		maxAttempts:   attempts,
		baseBackoff:   cfg.BaseBackoff(),
		lease:         30 * time.Second,
		now:           clock,
		kick:          make(chan struct{}, 1),
	}
}

// Start polls the outbox until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		w.logger.Info("notification worker started",
			zap.Duration("poll_interval", w.pollInterval),
			zap.Int("batch_size", w.batchSize))
		for {
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("outbox pass failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				w.logger.Info("notification worker stopped")
				return
			case <-ticker.C:
			case <-w.kick:
			}
		}
	}()
}

// Wait blocks until the polling goroutine exits.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

// Kick asks for an immediate pass. It never blocks.
func (w *NotificationWorker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// HandleEvent kicks the worker when a committed change staged notifications.
func (w *NotificationWorker) HandleEvent(_ context.Context, event events.Event) error {
	if event.Staged > 0 {
		w.Kick()
	}
	return nil
}

// RunOnce claims and delivers one batch, returning how many entries were delivered.
func (w *NotificationWorker) RunOnce(ctx context.Context) (int, error) {
	entries, err := w.outbox.ClaimDue(ctx, w.now(), w.batchSize, w.lease)
	if err != nil {
		return 0, fmt.Errorf("claim outbox entries: %w", err)
	}
	delivered := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if w.deliver(ctx, entry) {
			delivered++
		}
	}
	return delivered, nil
}

func (w *NotificationWorker) deliver(ctx context.Context, entry domain.OutboxEntry) bool {
	notification := entry.Notification()
	if err := w.notifications.Append(ctx, notification); err != nil {
		w.fail(ctx, entry, err)
		return false
	}
	if err := w.outbox.MarkDelivered(ctx, entry.ID, w.now()); err != nil {
		// the append is idempotent on the entry id, so a redelivery is harmless
		w.logger.Warn("failed to mark outbox entry delivered", zap.String("outbox_id", entry.ID), zap.Error(err))
	}
	w.metrics.RecordNotification(OutcomeDelivered)

	if w.publisher != nil {
		if err := w.publisher.Publish(ctx, notification); err != nil {
			w.logger.Warn("realtime publish failed",
				zap.String("outbox_id", entry.ID),
				zap.String("user_id", entry.RecipientID),
				zap.Error(err))
		}
	}
	return true
}

func (w *NotificationWorker) fail(ctx context.Context, entry domain.OutboxEntry, cause error) {
	attempts := entry.Attempts + 1
	dead := attempts >= w.maxAttempts
	next := w.now().Add(Backoff(w.baseBackoff, attempts))
	if err := w.outbox.MarkFailed(ctx, entry.ID, attempts, next, cause.Error(), dead); err != nil {
		w.logger.Error("failed to record outbox failure", zap.String("outbox_id", entry.ID), zap.Error(err))
		return
	}
	if dead {
		w.metrics.RecordNotification(OutcomeDead)
		w.logger.Error("notification dead-lettered",
			zap.String("outbox_id", entry.ID),
			zap.String("user_id", entry.RecipientID),
			zap.Int("attempts", attempts),
			zap.Error(cause))
		return
	}
	w.metrics.RecordNotification(OutcomeRetried)
	w.logger.Warn("notification delivery failed; will retry",
		zap.String("outbox_id", entry.ID),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(cause))
}

// Backoff doubles base for every attempt after the first, capped at ten minutes.
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Package worker runs the outbox dispatcher: the single-writer loop that
// drains pending outbox entries through the outbound transport while holding
// the automation lock.
package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civicdesk/correspondence-backend/internal/apperrors"
	"github.com/civicdesk/correspondence-backend/internal/metrics"
	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/repository"
	"github.com/civicdesk/correspondence-backend/internal/transport"
)

type Dispatcher struct {
	Outbox    repository.OutboxRepositoryInterface
	Lock      repository.LockRepositoryInterface
	Responses repository.BulkResponseRepositoryInterface
	Sender    transport.Sender
	Limiter   *rate.Limiter
	Logger    *zap.Logger

	WorkerID         string
	BatchSize        int
	PollInterval     time.Duration
	LockTTL          time.Duration
	ClaimStale       time.Duration
	RetryBackoffBase time.Duration
	SendRetries      int
}

func NewDispatcher(
	outbox repository.OutboxRepositoryInterface,
	lock repository.LockRepositoryInterface,
	responses repository.BulkResponseRepositoryInterface,
	sender transport.Sender,
	limiter *rate.Limiter,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		Outbox:           outbox,
		Lock:             lock,
		Responses:        responses,
		Sender:           sender,
		Limiter:          limiter,
		Logger:           logger,
		WorkerID:         "dispatcher-" + uuid.New().String()[:8],
		BatchSize:        25,
		PollInterval:     5 * time.Second,
		LockTTL:          5 * time.Minute,
		ClaimStale:       5 * time.Minute,
		RetryBackoffBase: 2 * time.Minute,
		SendRetries:      3,
	}
}

// Run drains the outbox on every poll tick and on every wake-up kick until
// the context is cancelled. Kicks arrive from the amqp consumer; they only
// advance the schedule, the database claim is the concurrency authority.
func (d *Dispatcher) Run(ctx context.Context, kicks <-chan struct{}) {
	d.Logger.Info("dispatcher started",
		zap.String("worker_id", d.WorkerID),
		zap.Int("batch_size", d.BatchSize),
	)

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Logger.Info("dispatcher shutting down", zap.String("worker_id", d.WorkerID))
			return
		case <-ticker.C:
			d.drain(ctx)
		case <-kicks:
			d.drain(ctx)
		}
	}
}

// drain acquires the automation lock, runs the recovery sweeps, and claims
// and sends batches until the outbox is empty. Lock acquisition is
// non-blocking: if another holder has it, this pass is skipped rather than
// queued behind it.
func (d *Dispatcher) drain(ctx context.Context) {
	acquired, err := d.Lock.Acquire(ctx, d.WorkerID, d.LockTTL)
	if err != nil {
		d.Logger.Error("lock acquisition error", zap.Error(err))
		return
	}
	if !acquired {
		metrics.LockContention.Inc()
		d.Logger.Debug("automation lock held elsewhere", zap.String("worker_id", d.WorkerID))
		return
	}
	defer func() {
		if err := d.Lock.Release(ctx, d.WorkerID); err != nil && !apperrors.IsConflict(err) {
			d.Logger.Warn("lock release failed", zap.Error(err))
		}
	}()

	d.sweep(ctx)

	for {
		entries, err := d.Outbox.ClaimBatch(ctx, d.WorkerID, d.BatchSize)
		if err != nil {
			d.Logger.Error("claim batch failed", zap.Error(err))
			return
		}
		if len(entries) == 0 {
			return
		}

		for _, e := range entries {
			if ctx.Err() != nil {
				return
			}
			d.processEntry(ctx, e)
		}

		// Refresh the lease between batches. Losing it means a peer judged
		// this holder stale and took over; stop sending immediately.
		if err := d.Lock.Extend(ctx, d.WorkerID); err != nil {
			d.Logger.Warn("automation lease lost mid-drain", zap.Error(err))
			return
		}
	}
}

// sweep runs crash and retry recovery: stale processing claims return to
// pending, failed entries re-enter pending with backoff or park as dead.
func (d *Dispatcher) sweep(ctx context.Context) {
	if n, err := d.Outbox.RequeueStaleProcessing(ctx, d.ClaimStale); err != nil {
		d.Logger.Error("stale claim sweep failed", zap.Error(err))
	} else if n > 0 {
		d.Logger.Warn("requeued stale processing entries", zap.Int("count", n))
	}

	requeued, dead, err := d.Outbox.RetrySweep(ctx, d.RetryBackoffBase)
	if err != nil {
		d.Logger.Error("retry sweep failed", zap.Error(err))
		return
	}
	if dead > 0 {
		metrics.OutboxDead.Add(float64(dead))
		d.Logger.Warn("parked entries after exhausting retries", zap.Int("count", dead))
	}
	if requeued > 0 {
		d.Logger.Info("requeued failed entries for retry", zap.Int("count", requeued))
	}

	// Close out active bulk responses whose planned sends have all reached a
	// terminal outbox state.
	finalized, err := d.Responses.FinalizeSent(ctx)
	if err != nil {
		d.Logger.Error("bulk response finalization failed", zap.Error(err))
		return
	}
	if finalized > 0 {
		d.Logger.Info("bulk responses marked sent", zap.Int("count", finalized))
	}
}

func (d *Dispatcher) processEntry(ctx context.Context, e *model.OutboxEntry) {
	if err := d.Limiter.Wait(ctx); err != nil {
		return
	}

	var messageID string
	op := func() error {
		id, err := d.Sender.Send(ctx, e.RecipientEmail, e.Subject, e.BodyHTML)
		if err != nil {
			return err
		}
		messageID = id
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.SendRetries)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		sendErr := apperrors.NewTransport(e.ID.String(), err)
		d.Logger.Error("send failed",
			zap.String("outbox_entry_id", e.ID.String()),
			zap.Error(sendErr),
		)
		if dbErr := d.Outbox.MarkFailed(ctx, e.ID, err.Error()); dbErr != nil {
			d.Logger.Error("failed to record send failure",
				zap.String("outbox_entry_id", e.ID.String()),
				zap.Error(dbErr),
			)
		}
		metrics.OutboxFailed.Inc()
		return
	}

	if err := d.Outbox.MarkSent(ctx, e.ID, messageID); err != nil {
		d.Logger.Error("failed to record sent status",
			zap.String("outbox_entry_id", e.ID.String()),
			zap.Error(err),
		)
		return
	}

	metrics.OutboxSent.Inc()
	d.Logger.Info("outbox entry sent",
		zap.String("outbox_entry_id", e.ID.String()),
		zap.String("message_id", messageID),
	)
}

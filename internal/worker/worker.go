// Package worker runs the scheduled background jobs: the lock reaper and
// the refund notifier.  Both jobs are idempotent sweeps, so overlapping
// or missed runs are harmless.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/solara-labs/mint-reservation/internal/model"
	"github.com/solara-labs/mint-reservation/internal/queue"
	"github.com/solara-labs/mint-reservation/internal/repository"
	queue_publisher "github.com/solara-labs/mint-reservation/internal/service"
)

// Workers owns the job scheduler.  Construct with New, call Start, and
// Stop on shutdown.
type Workers struct {
	sched   gocron.Scheduler
	slots   *repository.SlotRepo
	refunds *repository.RefundRepo
	pub     *queue_publisher.Publisher

	lockTTL     time.Duration
	reapEvery   time.Duration
	notifyEvery time.Duration
}

// New builds the worker set.  The publisher may be nil, which disables
// the refund notifier (entries stay queued until an operator drains them).
func New(slots *repository.SlotRepo, refunds *repository.RefundRepo, pub *queue_publisher.Publisher, lockTTL, reapEvery, notifyEvery time.Duration) (*Workers, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Workers{
		sched:       sched,
		slots:       slots,
		refunds:     refunds,
		pub:         pub,
		lockTTL:     lockTTL,
		reapEvery:   reapEvery,
		notifyEvery: notifyEvery,
	}, nil
}

// Start registers the jobs and starts the scheduler.  The reaper is the
// safety net behind the lazy sweep in the acquire path: with zero
// traffic, expired locks would otherwise hold slots indefinitely.
func (w *Workers) Start() error {
	if _, err := w.sched.NewJob(
		gocron.DurationJob(w.reapEvery),
		gocron.NewTask(w.reapExpiredLocks),
	); err != nil {
		return err
	}
	if w.pub != nil {
		if _, err := w.sched.NewJob(
			gocron.DurationJob(w.notifyEvery),
			gocron.NewTask(w.notifyQueuedRefunds),
		); err != nil {
			return err
		}
	}
	w.sched.Start()
	log.Printf("workers: reaper every %s, refund notifier every %s", w.reapEvery, w.notifyEvery)
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
func (w *Workers) Stop() {
	if err := w.sched.Shutdown(); err != nil {
		log.Printf("workers: shutdown: %v", err)
	}
}

func (w *Workers) reapExpiredLocks() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	released, err := w.slots.ReapExpired(ctx, w.lockTTL)
	if err != nil {
		log.Printf("reaper: sweep failed: %v", err)
		return
	}
	if released > 0 {
		log.Printf("reaper: released %d expired locks", released)
	}
}

// notifyQueuedRefunds publishes an event for every queued refund entry
// and flips it to notified.  The flip is conditional on the queued
// status, so a publish that succeeded on a previous crashed run results
// in a duplicate event at worst, never a lost one.
func (w *Workers) notifyQueuedRefunds() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	entries, err := w.refunds.ListByStatus(ctx, model.RefundQueued, 0)
	if err != nil {
		log.Printf("refund notifier: list failed: %v", err)
		return
	}
	for _, e := range entries {
		ev := queue.RefundQueuedEvent{
			RefundID:         e.ID,
			MintIndex:        e.MintIndex,
			Wallet:           e.Wallet,
			PaymentSignature: e.PaymentTxSignature,
			AmountLamports:   e.AmountLamports,
			Reason:           e.Reason,
			QueuedAt:         e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.pub.PublishRefundQueued(ctx, ev); err != nil {
			log.Printf("refund notifier: publish for entry %d failed: %v", e.ID, err)
			continue
		}
		if err := w.refunds.MarkNotified(ctx, e.ID); err != nil {
			log.Printf("refund notifier: marking entry %d notified failed: %v", e.ID, err)
		}
	}
}

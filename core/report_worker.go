package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const emptyQueueBackoff = 100 * time.Millisecond

var errVisibilityExceeded = errors.New("rendering outlived the visibility timeout")

// ReportWorker drains the report queue with a fixed number of goroutines.
type ReportWorker struct {
	Queue           ReportQueue
	Reports         ReportRepository
	Processor       *ReportProcessor
	State           *HeartbeatState
	Log             logrus.FieldLogger
	Concurrency     int
	Visibility      time.Duration
	ReclaimInterval time.Duration
	MaxRetries      int
}

// Run blocks until ctx is cancelled and every consumer returned.
func (w *ReportWorker) Run(ctx context.Context) {
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	reclaimDone := make(chan struct{})
	go func() {
		defer close(reclaimDone)
		w.reclaimLoop(ctx)
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w.consume(ctx, w.Log.WithField("consumer", n))
		}(i + 1)
	}
	wg.Wait()
	<-reclaimDone
}

func (w *ReportWorker) reclaimLoop(ctx context.Context) {
	interval := w.ReclaimInterval
	if interval <= 0 {
		interval = ReclaimInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Reclaim(ctx, time.Now())
		}
	}
}

// Reclaim puts reports whose visibility deadline passed back to pending.
// A reclaim counts as a retry; past the cap the report is marked failed and its queued id
// is skipped when reserved.
func (w *ReportWorker) Reclaim(ctx context.Context, now time.Time) int {
	ids, err := w.Queue.RequeueExpired(ctx, now)
	if err != nil {
		if ctx.Err() == nil {
			w.Log.WithError(err).Warn("requeue expired reports failed")
		}
		return 0
	}
	for _, id := range ids {
		w.reclaimOne(ctx, id)
	}
	if len(ids) > 0 {
		w.Log.WithField("count", len(ids)).Info("requeued expired reports")
	}
	return len(ids)
}

func (w *ReportWorker) reclaimOne(ctx context.Context, id string) {
	entry := w.Log.WithField("report", id)
	retry, err := w.Reports.IncrementRetry(ctx, id)
	if err != nil {
		entry.WithError(err).Warn("increment retry failed")
		return
	}
	entry = entry.WithField("retry_count", retry)
	if retry > w.maxRetries() {
		if err := w.Reports.SaveResult(ctx, id, ReportFailed, "", errVisibilityExceeded.Error()); err != nil {
			entry.WithError(err).Error("save failed report")
			return
		}
		entry.Error("report failed after retries")
		return
	}
	if err := w.Reports.MarkStatus(ctx, id, ReportPending); err != nil {
		entry.WithError(err).Warn("mark reclaimed report pending failed")
	}
}

func (w *ReportWorker) maxRetries() int {
	if w.MaxRetries <= 0 {
		return MaxReportRetries
	}
	return w.MaxRetries
}

func (w *ReportWorker) consume(ctx context.Context, log logrus.FieldLogger) {
	visibility := w.Visibility
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	for {
		id, err := w.Queue.Reserve(ctx, visibility)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				select {
				case <-ctx.Done():
					return
				case <-time.After(emptyQueueBackoff):
					continue
				}
			}
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("reserve failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.Handle(ctx, log, id)
	}
}

// Handle processes one reserved report and acks it whatever the outcome.
func (w *ReportWorker) Handle(ctx context.Context, log logrus.FieldLogger, id string) {
	entry := log.WithField("report", id)
	if w.State != nil {
		w.State.ReportStarted(id)
	}

	err := w.Processor.Process(ctx, id)
	switch {
	case err == nil:
		entry.Info("report rendered")
	case finished(err):
		entry.WithError(err).Info("report skipped")
		err = nil
	default:
		w.retryOrFail(ctx, entry, id, err)
	}

	if ackErr := w.Queue.Ack(ctx, id); ackErr != nil {
		entry.WithError(ackErr).Warn("ack failed")
	}
	if w.State != nil {
		w.State.ReportFinished(id, err)
	}
}

func (w *ReportWorker) retryOrFail(ctx context.Context, entry logrus.FieldLogger, id string, procErr error) {
	retry, err := w.Reports.IncrementRetry(ctx, id)
	if err != nil {
		entry.WithError(err).Warn("increment retry failed")
	}
	entry = entry.WithField("retry_count", retry)

	if retry <= w.maxRetries() {
		if err := w.Reports.MarkStatus(ctx, id, ReportPending); err != nil {
			entry.WithError(err).Warn("mark report pending failed")
		}
		if err := w.Queue.Enqueue(ctx, id); err != nil {
			entry.WithError(err).Error("re-enqueue failed")
			return
		}
		entry.WithError(procErr).Warn("report retried")
		return
	}
	if err := w.Reports.SaveResult(ctx, id, ReportFailed, "", procErr.Error()); err != nil {
		entry.WithError(err).Error("save failed report")
	}
	entry.WithError(procErr).Error("report failed after retries")
}

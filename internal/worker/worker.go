// Package worker runs the scheduled sync loop and drains webhook-triggered
// jobs from the queue.
package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/losverdes/membersync/internal/clock"
	"github.com/losverdes/membersync/internal/config"
	"github.com/losverdes/membersync/internal/etl"
	"github.com/losverdes/membersync/internal/queue"
)

// Worker periodically syncs every enabled source. Incremental runs happen on
// the sync interval; a full Squarespace and BigCommerce re-walk happens on
// the (much longer) full-sync interval.
type Worker struct {
	etl   *etl.Service
	queue *queue.RedisQueue
	clock clock.Clock
	log   *zap.Logger

	interval     time.Duration
	fullInterval time.Duration
	sources      []string

	lastFullSync time.Time
}

func New(cfg config.Config, svc *etl.Service, q *queue.RedisQueue, clk clock.Clock, log *zap.Logger) *Worker {
	sources := cfg.SyncEnabledSources
	if len(sources) == 0 {
		sources = []string{"squarespace", "bigcommerce", "minibc"}
	}
	return &Worker{
		etl:          svc,
		queue:        q,
		clock:        clk,
		log:          log.Named("worker"),
		interval:     time.Duration(cfg.SyncIntervalMinutes) * time.Minute,
		fullInterval: time.Duration(cfg.FullSyncIntervalHours) * time.Hour,
		sources:      sources,
	}
}

// RunForever runs sync rounds until the context is canceled.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce syncs each enabled source. A source failure is logged and the
// round continues; the next round retries over the same watermark window.
func (w *Worker) RunOnce(ctx context.Context) {
	full := false
	if w.fullInterval > 0 && w.clock.Now().Sub(w.lastFullSync) >= w.fullInterval {
		full = true
	}

	for _, source := range w.sources {
		var err error
		switch strings.ToLower(source) {
		case "squarespace":
			_, err = w.etl.SyncSquarespace(ctx, full)
		case "bigcommerce":
			_, err = w.etl.SyncBigCommerce(ctx, full)
		case "minibc":
			_, err = w.etl.SyncMinibc(ctx)
		default:
			w.log.Warn("unknown sync source", zap.String("source", source))
			continue
		}
		if err != nil && !errors.Is(err, etl.ErrRunInProgress) {
			w.log.Error("source sync failed", zap.String("source", source), zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}

	if full {
		w.lastFullSync = w.clock.Now()
	}
}

// ConsumeJobs drains webhook-triggered order syncs until the context is
// canceled.
func (w *Worker) ConsumeJobs(ctx context.Context) {
	err := w.queue.Consume(ctx, w.etl.SyncOrder)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.log.Error("job consumer stopped", zap.Error(err))
	}
}

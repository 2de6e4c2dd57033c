// Package queue moves webhook-triggered work off the request path. Jobs are
// pushed onto a Redis list by the HTTP handlers and drained by the sync
// worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	orderSyncKey = "membersync:jobs:order_sync"

	popTimeout = 5 * time.Second
)

// OrderSyncJob asks the worker to re-sync a single order from its source.
type OrderSyncJob struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	OrderID    string    `json:"order_id"`
	Topic      string    `json:"topic"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Publisher enqueues order-sync jobs.
type Publisher interface {
	PublishOrderSync(ctx context.Context, job OrderSyncJob) error
}

// RedisQueue is a Redis-list backed job queue. LPUSH on publish, BRPOP on
// consume, so jobs drain in FIFO order.
type RedisQueue struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisQueue(client *redis.Client, log *zap.Logger) *RedisQueue {
	return &RedisQueue{client: client, log: log.Named("queue")}
}

func (q *RedisQueue) PublishOrderSync(ctx context.Context, job OrderSyncJob) error {
	if strings.TrimSpace(job.OrderID) == "" {
		return errors.New("queue: order id is required")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, orderSyncKey, encoded).Err(); err != nil {
		return err
	}
	q.log.Info("order sync job enqueued",
		zap.String("job_id", job.ID),
		zap.String("source", job.Source),
		zap.String("order_id", job.OrderID),
	)
	return nil
}

// Handler processes one dequeued job. A returned error is logged and the job
// is dropped; sources are re-walked on the next scheduled sync anyway.
type Handler func(ctx context.Context, job OrderSyncJob) error

// Consume blocks draining the queue until the context is canceled.
func (q *RedisQueue) Consume(ctx context.Context, handle Handler) error {
	for {
		result, err := q.client.BRPop(ctx, popTimeout, orderSyncKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.log.Warn("queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		// BRPop returns [key, value].
		if len(result) != 2 {
			continue
		}
		var job OrderSyncJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			q.log.Warn("dropping malformed job", zap.Error(err))
			continue
		}
		if err := handle(ctx, job); err != nil {
			q.log.Error("order sync job failed",
				zap.String("job_id", job.ID),
				zap.String("source", job.Source),
				zap.String("order_id", job.OrderID),
				zap.Error(err),
			)
		}
	}
}

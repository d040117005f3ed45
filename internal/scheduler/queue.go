// Package scheduler is the durable work queue in front of the pipeline:
// ready tasks sit in a Redis list consumed with BRPOP, delayed tasks sit in
// a sorted set scored by due time and get promoted onto the list.
//
// The queue is deliberately not the source of truth. Dispatch is
// at-least-once, and a lost entry surfaces as a job stuck in a non-terminal
// status for the stuck monitor to reap, never as a queue-level automatic
// re-run; blind infra retries against paid provider APIs would double-charge.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"server/internal/infra"
)

const (
	readyKey     = "generation:queue"
	scheduledKey = "generation:scheduled"

	promoteBatch = 100
)

// Queue wraps the Redis transport.
type Queue struct {
	rdb    *redis.Client
	logger infra.Logger
	now    func() time.Time
}

func NewQueue(rdb *redis.Client, logger infra.Logger) *Queue {
	return &Queue{rdb: rdb, logger: logger, now: time.Now}
}

// Enqueue pushes a task for immediate execution.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	task.EnqueuedAt = q.now()
	raw, err := task.Encode()
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, readyKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	q.logger.Debug().Str("kind", string(task.Kind)).Str("job_id", task.JobID).Msg("queue: enqueued")
	return nil
}

// EnqueueAt schedules a task for later execution. A due time in the past
// executes immediately.
func (q *Queue) EnqueueAt(ctx context.Context, task Task, at time.Time) error {
	if !at.After(q.now()) {
		return q.Enqueue(ctx, task)
	}
	task.EnqueuedAt = q.now()
	raw, err := task.Encode()
	if err != nil {
		return err
	}
	if err := q.rdb.ZAdd(ctx, scheduledKey, redis.Z{Score: float64(at.Unix()), Member: raw}).Err(); err != nil {
		return fmt.Errorf("schedule task: %w", err)
	}
	q.logger.Debug().Str("kind", string(task.Kind)).Str("job_id", task.JobID).
		Time("at", at).Msg("queue: scheduled")
	return nil
}

// Dequeue blocks up to timeout for the next ready task. A nil task with a
// nil error means the wait timed out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.rdb.BRPop(ctx, timeout, readyKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue task: %w", err)
	}
	// BRPOP answers [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue task: unexpected reply of length %d", len(res))
	}
	task, err := DecodeTask(res[1])
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// PromoteDue moves tasks whose due time has arrived from the scheduled set
// onto the ready list. ZRem gating keeps a task from being promoted twice
// when several promoters race.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	due, err := q.rdb.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprint(q.now().Unix()),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list due tasks: %w", err)
	}

	promoted := 0
	for _, raw := range due {
		removed, err := q.rdb.ZRem(ctx, scheduledKey, raw).Result()
		if err != nil {
			return promoted, fmt.Errorf("claim due task: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, readyKey, raw).Err(); err != nil {
			return promoted, fmt.Errorf("promote due task: %w", err)
		}
		promoted++
	}
	if promoted > 0 {
		q.logger.Debug().Int("count", promoted).Msg("queue: promoted due tasks")
	}
	return promoted, nil
}

// RunPromoter promotes due tasks on a fixed cadence until the context ends.
func (q *Queue) RunPromoter(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := q.PromoteDue(ctx); err != nil {
				q.logger.Error().Err(err).Msg("queue: promote sweep failed")
			}
		}
	}
}

// GenerationEnqueuer adapts the queue to callers that only know a job ID.
type GenerationEnqueuer struct {
	Queue *Queue
}

func (e GenerationEnqueuer) Enqueue(ctx context.Context, jobID string) error {
	return e.Queue.Enqueue(ctx, Task{
		Kind:       TaskGenerateVideo,
		JobID:      jobID,
		EnqueuedAt: time.Now().UTC(),
	})
}

// EnqueueAt schedules a generation for a future time, used by content plans.
func (e GenerationEnqueuer) EnqueueAt(ctx context.Context, jobID string, at time.Time) error {
	return e.Queue.EnqueueAt(ctx, Task{
		Kind:       TaskGenerateVideo,
		JobID:      jobID,
		EnqueuedAt: time.Now().UTC(),
	}, at)
}

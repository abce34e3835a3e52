// Copyright 2025 James Ross
// Package broker is the Redis-backed durable queue: BRPopLPush reservation
// onto per-worker processing lists, heartbeat-key visibility timeouts,
// exponential backoff with jitter on nack, and a dead letter queue. It
// generalizes the single FIFO-with-priority-lanes design of the original
// job queue to the engine's three named lanes (video processing, image
// generation, maintenance).
package broker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/config"
	"github.com/videoforge/engine/internal/errs"
	"github.com/videoforge/engine/internal/obs"
)

// Lanes is the priority order lanes are polled in: video processing
// outranks image generation, which outranks maintenance, so periodic
// housekeeping never starves user-submitted jobs from a scan that happens
// to check maintenance first.
type Lanes struct {
	VideoProcessing string
	ImageGeneration string
	Maintenance     string
}

type Broker struct {
	cfg   *config.Config
	rdb   *redis.Client
	log   *zap.Logger
	lanes []string
}

func New(cfg *config.Config, rdb *redis.Client, log *zap.Logger) *Broker {
	return &Broker{
		cfg: cfg,
		rdb: rdb,
		log: log,
		lanes: []string{
			cfg.Queues.VideoProcessing,
			cfg.Queues.ImageGeneration,
			cfg.Queues.Maintenance,
		},
	}
}

// Enqueue pushes a task onto the named lane.
func (b *Broker) Enqueue(ctx context.Context, queue string, task Task) error {
	payload, err := task.Marshal()
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := b.rdb.LPush(ctx, queue, payload).Err(); err != nil {
		return errs.NewTransientServiceError("redis", err)
	}
	obs.JobsEnqueued.Inc()
	return nil
}

// Reservation is a task plus the bookkeeping needed to Ack or Nack it.
type Reservation struct {
	Task        Task
	SourceQueue string
	payload     string
	procList    string
	hbKey       string
}

// Reserve blocks (up to BRPopLPushTimeout per lane) across all lanes in
// priority order until a task is available, moving it onto workerID's
// processing list and setting its heartbeat key. Returns (nil, nil) on a
// timeout with no work across every lane, so callers loop.
func (b *Broker) Reserve(ctx context.Context, workerID string) (*Reservation, error) {
	procList := fmt.Sprintf(b.cfg.Worker.ProcessingListPattern, workerID)
	hbKey := fmt.Sprintf(b.cfg.Worker.HeartbeatKeyPattern, workerID)

	for _, lane := range b.lanes {
		if lane == "" {
			continue
		}
		v, err := b.rdb.BRPopLPush(ctx, lane, procList, b.cfg.Worker.BRPopLPushTimeout).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errs.NewTransientServiceError("redis", err)
		}
		task, err := UnmarshalTask(v)
		if err != nil {
			// poison payload: drop it rather than loop forever
			_ = b.rdb.LRem(ctx, procList, 1, v).Err()
			b.log.Error("dropped unparseable task", obs.Err(err), obs.String("queue", lane))
			continue
		}
		if err := b.rdb.Set(ctx, hbKey, v, b.cfg.Worker.HeartbeatTTL).Err(); err != nil {
			b.log.Warn("heartbeat set failed", obs.Err(err))
		}
		obs.JobsDequeued.Inc()
		return &Reservation{Task: task, SourceQueue: lane, payload: v, procList: procList, hbKey: hbKey}, nil
	}
	return nil, nil
}

// Ack removes a completed reservation from the processing list and clears
// its heartbeat key.
func (b *Broker) Ack(ctx context.Context, r *Reservation) error {
	if err := b.rdb.LRem(ctx, r.procList, 1, r.payload).Err(); err != nil {
		return fmt.Errorf("lrem processing: %w", err)
	}
	if err := b.rdb.Del(ctx, r.hbKey).Err(); err != nil {
		b.log.Warn("heartbeat del failed", obs.Err(err))
	}
	return nil
}

// Nack classifies the failure. Transient failures are requeued onto the
// source lane with exponential backoff and jitter up to worker.max_retries;
// beyond that, and for any permanent failure, the task moves to the dead
// letter queue.
func (b *Broker) Nack(ctx context.Context, r *Reservation, cause error) error {
	defer func() {
		if err := b.rdb.LRem(ctx, r.procList, 1, r.payload).Err(); err != nil {
			b.log.Warn("lrem processing failed", obs.Err(err))
		}
		if err := b.rdb.Del(ctx, r.hbKey).Err(); err != nil {
			b.log.Warn("heartbeat del failed", obs.Err(err))
		}
	}()

	retryable := errs.IsRetryable(cause) && !errs.IsPermanent(cause)
	if retryable && r.Task.Retries < b.cfg.Worker.MaxRetries {
		r.Task.Retries++
		delay := Backoff(r.Task.Retries, b.cfg.Worker.Backoff.Base, b.cfg.Worker.Backoff.Max, b.cfg.Worker.Backoff.Jitter)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		payload, err := r.Task.Marshal()
		if err != nil {
			return fmt.Errorf("marshal retried task: %w", err)
		}
		if err := b.rdb.LPush(ctx, r.SourceQueue, payload).Err(); err != nil {
			return fmt.Errorf("lpush retry: %w", err)
		}
		obs.JobsRetried.Inc()
		return nil
	}

	if err := b.rdb.LPush(ctx, b.cfg.Worker.DeadLetterQueue, r.payload).Err(); err != nil {
		return fmt.Errorf("lpush dead letter: %w", err)
	}
	obs.JobsDeadLetter.Inc()
	return nil
}

// Backoff computes an exponential delay capped at max, with optional full
// jitter (uniform in [0, delay)) to avoid thundering-herd retries.
func Backoff(retries int, base, max time.Duration, jitter bool) time.Duration {
	if retries < 1 {
		retries = 1
	}
	d := base << uint(retries-1)
	if d <= 0 || d > max {
		d = max
	}
	if jitter && d > 0 {
		d = time.Duration(rand.Int63n(int64(d)))
	}
	return d
}

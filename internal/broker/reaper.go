// Copyright 2025 James Ross
package broker

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/obs"
)

// Reaper periodically scans worker processing lists for tasks left behind
// by a worker whose heartbeat key has expired, and requeues them onto
// their source lane. It recovers in-flight reservations; the scheduler's
// reset_stuck_jobs recovers executions stuck in the durable store.
// cmd/engine does not start a Reaper, so abandoned reservations stay on
// their processing list. Reserve sets the heartbeat key once, with
// Worker.HeartbeatTTL, and nothing refreshes it while a task runs.
type Reaper struct {
	broker *Broker
	rdb    *redis.Client
	log    *zap.Logger
}

func NewReaper(b *Broker, rdb *redis.Client, log *zap.Logger) *Reaper {
	return &Reaper{broker: b, rdb: rdb, log: log}
}

func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ScanOnce(ctx)
		}
	}
}

// ScanOnce sweeps all `*:processing` lists once. Run calls it on every
// tick; nothing else in the engine calls it.
func (r *Reaper) ScanOnce(ctx context.Context) {
	var cursor uint64
	for {
		keys, cur, err := r.rdb.Scan(ctx, cursor, "jobengine:worker:*:processing", 100).Result()
		if err != nil {
			r.log.Warn("reaper scan error", obs.Err(err))
			return
		}
		cursor = cur
		for _, plist := range keys {
			r.drainIfAbandoned(ctx, plist)
		}
		if cursor == 0 {
			return
		}
	}
}

func (r *Reaper) drainIfAbandoned(ctx context.Context, procList string) {
	parts := strings.Split(procList, ":")
	if len(parts) < 4 {
		return
	}
	workerID := parts[2]
	hbKey := strings.Replace(r.broker.cfg.Worker.HeartbeatKeyPattern, "%s", workerID, 1)

	exists, err := r.rdb.Exists(ctx, hbKey).Result()
	if err != nil {
		r.log.Warn("reaper heartbeat check error", obs.Err(err))
		return
	}
	if exists == 1 {
		return // worker still healthy, it owns this task
	}

	for {
		payload, err := r.rdb.RPop(ctx, procList).Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			r.log.Warn("reaper rpop error", obs.Err(err))
			return
		}
		task, err := UnmarshalTask(payload)
		if err != nil {
			continue
		}
		if err := r.rdb.LPush(ctx, task.Queue, payload).Err(); err != nil {
			r.log.Error("reaper requeue failed", obs.Err(err))
			continue
		}
		obs.ReaperRecovered.Inc()
		r.log.Warn("requeued abandoned task",
			obs.String("execution_id", strconv.FormatInt(task.ExecutionID, 10)),
			obs.String("queue", task.Queue),
			obs.String("trace_id", task.TraceID),
		)
	}
}

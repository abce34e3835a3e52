// Copyright 2025 James Ross
// Package workerrt is the long-lived worker process from spec.md §4.7: a
// bounded pool of goroutines, each reserving tasks from the broker and
// running one job-executor invocation per task, with a circuit breaker and
// soft/hard deadline enforcement.
package workerrt

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/breaker"
	"github.com/videoforge/engine/internal/broker"
	"github.com/videoforge/engine/internal/config"
	"github.com/videoforge/engine/internal/executor"
	"github.com/videoforge/engine/internal/obs"
	"github.com/videoforge/engine/internal/store"
)

type Runtime struct {
	cfg    *config.Config
	br     *broker.Broker
	exec   *executor.Executor
	store  *store.Store
	rdb    *redis.Client
	log    *zap.Logger
	cb     *breaker.CircuitBreaker
	baseID string
}

func New(cfg *config.Config, br *broker.Broker, exec *executor.Executor, st *store.Store, rdb *redis.Client, log *zap.Logger) *Runtime {
	cb := breaker.New(cfg.CircuitBreaker.Window, cfg.CircuitBreaker.CooldownPeriod, cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.MinSamples)
	host, _ := os.Hostname()
	base := fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
	return &Runtime{cfg: cfg, br: br, exec: exec, store: st, rdb: rdb, log: log, cb: cb, baseID: base}
}

// Run blocks until ctx is cancelled, dispatching reserved tasks across
// cfg.Worker.Count goroutines.
func (r *Runtime) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Worker.Count; i++ {
		wg.Add(1)
		id := fmt.Sprintf("%s-%d", r.baseID, i)
		go func(workerID string) {
			defer wg.Done()
			obs.WorkerActive.Inc()
			defer obs.WorkerActive.Dec()
			r.loop(ctx, workerID)
		}(id)
	}

	go r.reportBreakerState(ctx)

	wg.Wait()
	return nil
}

func (r *Runtime) loop(ctx context.Context, workerID string) {
	for ctx.Err() == nil {
		if !r.cb.Allow() {
			time.Sleep(r.cfg.Worker.BreakerPause)
			continue
		}

		res, err := r.br.Reserve(ctx, workerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("reserve failed", obs.Err(err), obs.String("worker_id", workerID))
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if res == nil {
			continue // no work across any lane within the poll timeout
		}

		ok := r.handle(ctx, workerID, res)
		prev := r.cb.State()
		r.cb.Record(ok)
		if curr := r.cb.State(); prev != curr && curr == breaker.Open {
			obs.CircuitBreakerTrips.WithLabelValues("worker").Inc()
		}
	}
}

// handle enforces the soft/hard deadline pair from spec.md §4.7: a soft
// timeout (default 55m) is handed to the executor as its context so
// pipeline steps observe cancellation between steps; a hard timeout
// (default 60m) bounds how long this goroutine waits before giving up and
// nacking regardless of whether the executor goroutine has returned.
func (r *Runtime) handle(ctx context.Context, workerID string, res *broker.Reservation) bool {
	start := time.Now()
	spanCtx, span := obs.ContextWithJobSpan(ctx, obs.TaskSpanInfo{
		ExecutionID:  res.Task.ExecutionID,
		JobID:        res.Task.JobID,
		Queue:        res.Task.Queue,
		Retries:      res.Task.Retries,
		CreationTime: res.Task.CreationTime,
		TraceID:      res.Task.TraceID,
		SpanID:       res.Task.SpanID,
	})
	defer span.End()

	softCtx, cancelSoft := context.WithTimeout(spanCtx, r.cfg.Worker.SoftTimeout)
	defer cancelSoft()

	hardTimer := time.NewTimer(r.cfg.Worker.HardTimeout)
	defer hardTimer.Stop()

	done := make(chan error, 1)
	go func() {
		done <- r.exec.Execute(softCtx, res.Task)
	}()

	var execErr error
	select {
	case execErr = <-done:
	case <-hardTimer.C:
		execErr = fmt.Errorf("task exceeded hard timeout of %s", r.cfg.Worker.HardTimeout)
	case <-ctx.Done():
		execErr = ctx.Err()
	}

	obs.JobProcessingDuration.Observe(time.Since(start).Seconds())

	if execErr == nil {
		obs.SetSpanSuccess(spanCtx)
		if err := r.br.Ack(ctx, res); err != nil {
			r.log.Error("ack failed", obs.Err(err), obs.Int64("execution_id", res.Task.ExecutionID))
		}
		obs.JobsCompleted.Inc()
		r.log.Info("job completed", obs.Int64("execution_id", res.Task.ExecutionID), obs.Int64("job_id", res.Task.JobID), obs.String("worker_id", workerID))
		return true
	}

	obs.JobsFailed.Inc()
	obs.RecordError(spanCtx, execErr)
	if err := r.br.Nack(ctx, res, execErr); err != nil {
		r.log.Error("nack failed", obs.Err(err), obs.Int64("execution_id", res.Task.ExecutionID))
	}
	r.log.Warn("job failed", obs.Err(execErr), obs.Int64("execution_id", res.Task.ExecutionID), obs.String("worker_id", workerID))
	return false
}

func (r *Runtime) reportBreakerState(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch r.cb.State() {
			case breaker.Closed:
				obs.CircuitBreakerState.WithLabelValues("worker").Set(0)
			case breaker.HalfOpen:
				obs.CircuitBreakerState.WithLabelValues("worker").Set(1)
			case breaker.Open:
				obs.CircuitBreakerState.WithLabelValues("worker").Set(2)
			}
		}
	}
}

// Ready reports whether the store and broker's backing Redis are both
// reachable, per spec.md §4.7's readiness contract.
func (r *Runtime) Ready(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}
	return nil
}

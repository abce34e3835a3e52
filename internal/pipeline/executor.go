// Copyright 2025 James Ross
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/errs"
	"github.com/videoforge/engine/internal/obs"
)

// ExecutionUpdater is the slice of ExecutionRepository the executor needs;
// narrowed to an interface so tests can fake it without a database.
type ExecutionUpdater interface {
	TransitionTo(ctx context.Context, id int64, from, to domain.ExecutionStatus, statusDetail string) error
	TouchRunning(ctx context.Context, id int64, statusDetail string) error
	SetExecutionMetadata(ctx context.Context, id int64, records []domain.StepExecutionRecord) error
}

// ResultPersister writes a completed run's step results to durable storage
// before the execution row is marked SUCCESS. Run calls it after the last
// step and before the terminal transition, per spec.md §4.4 step 4 / §4.6
// step 4: a crash between persisting results and flipping the status must
// never be possible, so the write happens first and the transition only
// fires once it has succeeded.
type ResultPersister interface {
	PersistResults(ctx context.Context, executionID int64, results map[string]StepResult) error
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithResultPersister registers the hook Run invokes before the SUCCESS
// transition. Callers that don't need durable result persistence (most
// tests) omit it.
func WithResultPersister(p ResultPersister) Option {
	return func(e *Executor) { e.resultPersister = p }
}

// Executor runs one Pipeline against one PipelineContext, functional mode
// only: each step's output is a StepResult, never a context mutation. This
// collapses the original two-mode design per the decision recorded in
// DESIGN.md — context-mutation compatibility is not carried forward.
type Executor struct {
	execs           ExecutionUpdater
	log             *zap.Logger
	resultPersister ResultPersister
}

func NewExecutor(execs ExecutionUpdater, log *zap.Logger, opts ...Option) *Executor {
	e := &Executor{execs: execs, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every step in order, persisting execution-row status
// transitions around the run, and returns the full result map on success.
func (e *Executor) Run(ctx context.Context, p *Pipeline, pctx *PipelineContext) (map[string]StepResult, error) {
	steps := p.Steps()
	n := len(steps)

	if err := e.execs.TransitionTo(ctx, pctx.Execution.ID, domain.StatusPending, domain.StatusRunning,
		fmt.Sprintf("Pipeline started, %d steps", n)); err != nil {
		return nil, fmt.Errorf("start pipeline: %w", err)
	}

	results := NewResultManager()
	var history []domain.StepExecutionRecord

	for i, step := range steps {
		if ctx.Err() != nil {
			return nil, e.fail(ctx, pctx, history, "", fmt.Errorf("execution cancelled before step %q", step.Name()))
		}

		record := domain.StepExecutionRecord{Name: step.Name(), StartedAt: time.Now()}

		if cs, ok := step.(ConditionalStep); ok && !cs.ShouldExecute(pctx) {
			record.Status = "skipped"
			now := time.Now()
			record.CompletedAt = &now
			history = append(history, record)
			e.log.Info("step skipped", obs.String("step", step.Name()), obs.Int64("job_id", pctx.JobID))
			continue
		}

		inputs := resolveInputs(step.Name(), results)

		result, err := e.runStep(ctx, step, pctx, inputs)
		if err != nil {
			record.Status = "failed"
			record.Error = err.Error()
			now := time.Now()
			record.CompletedAt = &now
			history = append(history, record)
			return nil, e.fail(ctx, pctx, history, step.Name(), err)
		}

		results.Set(step.Name(), result)
		step.PostProcess(pctx, result)

		record.Status = "ok"
		now := time.Now()
		record.CompletedAt = &now
		history = append(history, record)

		detail := fmt.Sprintf("Running: %s (%d/%d)", step.Name(), i+1, n)
		if err := e.execs.TouchRunning(ctx, pctx.Execution.ID, detail); err != nil {
			// a progress update racing a concurrent terminal transition is
			// logged, not fatal: the next step's own transition attempt
			// will surface a real problem if one exists
			e.log.Warn("status detail update skipped", obs.Err(err), obs.String("step", step.Name()))
		}
	}

	if e.resultPersister != nil {
		if err := e.resultPersister.PersistResults(ctx, pctx.Execution.ID, results.All()); err != nil {
			return nil, e.fail(ctx, pctx, history, "", fmt.Errorf("persist results: %w", err))
		}
	}

	if err := e.execs.TransitionTo(ctx, pctx.Execution.ID, domain.StatusRunning, domain.StatusSuccess, "completed"); err != nil {
		return nil, fmt.Errorf("mark success: %w", err)
	}
	if err := e.execs.SetExecutionMetadata(ctx, pctx.Execution.ID, history); err != nil {
		e.log.Warn("failed to persist step history", obs.Err(err), obs.Int64("job_id", pctx.JobID))
	}
	return results.All(), nil
}

func (e *Executor) runStep(ctx context.Context, step Step, pctx *PipelineContext, inputs StepInputs) (result StepResult, err error) {
	tracer := otel.Tracer("pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.step."+step.Name())
	defer span.End()

	start := time.Now()
	defer func() {
		obs.StepDuration.WithLabelValues(step.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			obs.StepFailures.WithLabelValues(step.Name()).Inc()
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err = step.Validate(pctx); err != nil {
		return nil, errs.NewStepError(step.Name(), err)
	}
	result, err = step.Execute(ctx, pctx, inputs)
	if err != nil {
		return nil, errs.NewStepError(step.Name(), err)
	}
	return result, nil
}

// fail persists the terminal FAILED transition and returns a PipelineError
// wrapping the failing step's error, per spec.md §4.4 step 3.
func (e *Executor) fail(ctx context.Context, pctx *PipelineContext, history []domain.StepExecutionRecord, failingStep string, cause error) error {
	msg := fmt.Sprintf("Failed step '%s'", failingStep)
	if terr := e.execs.TransitionTo(ctx, pctx.Execution.ID, domain.StatusRunning, domain.StatusFailed, msg); terr != nil {
		e.log.Error("failed to persist FAILED transition", obs.Err(terr), obs.Int64("job_id", pctx.JobID))
	}
	if terr := e.execs.SetExecutionMetadata(ctx, pctx.Execution.ID, history); terr != nil {
		e.log.Warn("failed to persist step history", obs.Err(terr), obs.Int64("job_id", pctx.JobID))
	}
	return errs.NewPipelineError(pctx.JobID, failingStep, cause)
}

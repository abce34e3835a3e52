// Copyright 2025 James Ross
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/errs"
)

// ExecutionRepository persists JobExecution rows. Status transitions are
// enforced here, not at the caller: every status-changing UPDATE
// (TransitionTo, TouchRunning) carries a "WHERE status = ..." guard so a
// concurrent writer can never race a terminal-state transition through.
type ExecutionRepository struct {
	q querier
}

func NewExecutionRepository(s *Store) *ExecutionRepository { return &ExecutionRepository{q: s.DB} }

func (r *ExecutionRepository) withTx(tx querier) *ExecutionRepository { return &ExecutionRepository{q: tx} }

func (r *ExecutionRepository) Get(ctx context.Context, id int64) (*domain.JobExecution, error) {
	var e domain.JobExecution
	err := r.q.GetContext(ctx, &e, `SELECT * FROM job_executions WHERE id = $1`, id)
	if isNoRows(err) {
		return nil, errs.NewNotFoundError("job_execution", fmt.Sprint(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get job_execution %d: %w", id, err)
	}
	return &e, nil
}

// LatestForJob returns the most recent execution for a job, used by the
// control API's GetJob handler to report a job's current execution.
func (r *ExecutionRepository) LatestForJob(ctx context.Context, jobID int64) (*domain.JobExecution, error) {
	var e domain.JobExecution
	err := r.q.GetContext(ctx, &e,
		`SELECT * FROM job_executions WHERE job_id = $1 ORDER BY created_at DESC LIMIT 1`, jobID)
	if isNoRows(err) {
		return nil, errs.NewNotFoundError("job_execution", fmt.Sprintf("job:%d", jobID))
	}
	if err != nil {
		return nil, fmt.Errorf("latest execution for job %d: %w", jobID, err)
	}
	return &e, nil
}

func (r *ExecutionRepository) List(ctx context.Context, opts ListOptions) ([]domain.JobExecution, error) {
	where, args := buildWhere(opts.Filters, false, true)
	order := buildOrderBy(opts.OrderBy)
	limitOffset, loArgs := buildLimitOffset(opts.Limit, opts.Offset, len(args)+1)
	args = append(args, loArgs...)

	query := fmt.Sprintf("SELECT * FROM job_executions %s %s %s", where, order, limitOffset)
	var rows []domain.JobExecution
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list job_executions: %w", err)
	}
	return rows, nil
}

func (r *ExecutionRepository) Create(ctx context.Context, jobID int64) (*domain.JobExecution, error) {
	var e domain.JobExecution
	err := r.q.GetContext(ctx, &e, `
		INSERT INTO job_executions (job_id, status, status_detail, retry_count, created_at, updated_at)
		VALUES ($1, $2, '', 0, now(), now())
		RETURNING *`, jobID, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("create job_execution: %w", err)
	}
	return &e, nil
}

// TransitionTo moves an execution to `to`, failing if the move is not a
// legal edge per domain.CanTransition or if a concurrent writer already
// moved the row out from under `from`.
func (r *ExecutionRepository) TransitionTo(ctx context.Context, id int64, from, to domain.ExecutionStatus, statusDetail string) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	var setClauses string
	switch to {
	case domain.StatusRunning:
		setClauses = ", started_at = now()"
	case domain.StatusSuccess, domain.StatusFailed, domain.StatusCancelled, domain.StatusTimeout:
		setClauses = ", finished_at = now()"
	}
	query := fmt.Sprintf(`
		UPDATE job_executions
		SET status = $1, status_detail = $2, updated_at = now() %s
		WHERE id = $3 AND status = $4`, setClauses)
	res, err := r.q.ExecContext(ctx, query, to, statusDetail, id, from)
	if err != nil {
		return fmt.Errorf("transition job_execution %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition job_execution %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transition job_execution %d: execution was not in status %s", id, from)
	}
	return nil
}

// TouchRunning updates status_detail and bumps updated_at for an execution
// still RUNNING, without going through domain.CanTransition — RUNNING to
// RUNNING is not a legal edge (it's a same-state progress update, not a
// transition), so TransitionTo would reject it unconditionally. Callers use
// this for the per-step progress string spec.md §4.4 step 2 requires; the
// updated_at bump also keeps a healthy long-running execution from looking
// stuck to StuckSince/resetStuckJobs between status transitions.
func (r *ExecutionRepository) TouchRunning(ctx context.Context, id int64, statusDetail string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE job_executions SET status_detail = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		statusDetail, id, domain.StatusRunning)
	if err != nil {
		return fmt.Errorf("touch job_execution %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch job_execution %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("touch job_execution %d: execution was not RUNNING", id)
	}
	return nil
}

// IncrementRetry bumps retry_count monotonically; it never decreases even
// across process restarts, since the counter lives on the row, not memory.
func (r *ExecutionRepository) IncrementRetry(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `UPDATE job_executions SET retry_count = retry_count + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment retry for job_execution %d: %w", id, err)
	}
	return nil
}

func (r *ExecutionRepository) SetWorkerHostname(ctx context.Context, id int64, hostname string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE job_executions SET worker_hostname = $1, updated_at = now() WHERE id = $2`, hostname, id)
	if err != nil {
		return fmt.Errorf("set worker hostname for job_execution %d: %w", id, err)
	}
	return nil
}

func (r *ExecutionRepository) SetResultKeys(ctx context.Context, id int64, bundle domain.ResultKeyBundle) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal result keys: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `UPDATE job_executions SET result_key = $1, updated_at = now() WHERE id = $2`, raw, id)
	if err != nil {
		return fmt.Errorf("set result keys for job_execution %d: %w", id, err)
	}
	return nil
}

func (r *ExecutionRepository) SetExecutionMetadata(ctx context.Context, id int64, records []domain.StepExecutionRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal execution metadata: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `UPDATE job_executions SET execution_metadata = $1, updated_at = now() WHERE id = $2`, raw, id)
	if err != nil {
		return fmt.Errorf("set execution metadata for job_execution %d: %w", id, err)
	}
	return nil
}

func (r *ExecutionRepository) SetErrorMessage(ctx context.Context, id int64, msg string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE job_executions SET error_message = $1, updated_at = now() WHERE id = $2`, msg, id)
	if err != nil {
		return fmt.Errorf("set error message for job_execution %d: %w", id, err)
	}
	return nil
}

// StuckSince finds RUNNING executions whose updated_at predates the
// threshold, for the scheduler's reset_stuck_jobs job.
func (r *ExecutionRepository) StuckSince(ctx context.Context, threshold time.Duration) ([]domain.JobExecution, error) {
	var rows []domain.JobExecution
	err := r.q.SelectContext(ctx, &rows, `
		SELECT * FROM job_executions
		WHERE status = $1 AND updated_at < now() - $2::interval
		ORDER BY updated_at ASC`, domain.StatusRunning, fmt.Sprintf("%d seconds", int(threshold.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("stuck executions: %w", err)
	}
	return rows, nil
}

// OlderThan finds terminal executions ready for the scheduler's
// cleanup_old_jobs job.
func (r *ExecutionRepository) OlderThan(ctx context.Context, retention time.Duration) ([]domain.JobExecution, error) {
	var rows []domain.JobExecution
	err := r.q.SelectContext(ctx, &rows, `
		SELECT * FROM job_executions
		WHERE status IN ($1, $2, $3, $4) AND finished_at < now() - $5::interval`,
		domain.StatusSuccess, domain.StatusFailed, domain.StatusCancelled, domain.StatusTimeout,
		fmt.Sprintf("%d seconds", int(retention.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("old executions: %w", err)
	}
	return rows, nil
}

// CountByStatus groups all executions by status, for the
// scheduler's health-check job.
func (r *ExecutionRepository) CountByStatus(ctx context.Context) (map[domain.ExecutionStatus]int64, error) {
	var rows []struct {
		Status domain.ExecutionStatus `db:"status"`
		Count  int64                  `db:"count"`
	}
	if err := r.q.SelectContext(ctx, &rows, `SELECT status, count(*) AS count FROM job_executions GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count executions by status: %w", err)
	}
	counts := make(map[domain.ExecutionStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *ExecutionRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM job_executions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job_execution %d: %w", id, err)
	}
	return nil
}

// Copyright 2025 James Ross
package store

import (
	"context"
	"fmt"

	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/errs"
)

type JobRepository struct {
	q querier
}

func NewJobRepository(s *Store) *JobRepository { return &JobRepository{q: s.DB} }

func (r *JobRepository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	var j domain.Job
	err := r.q.GetContext(ctx, &j, `SELECT * FROM jobs WHERE id = $1 AND deleted_at IS NULL`, id)
	if isNoRows(err) {
		return nil, errs.NewNotFoundError("job", fmt.Sprint(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return &j, nil
}

func (r *JobRepository) List(ctx context.Context, opts ListOptions) ([]domain.Job, error) {
	where, args := buildWhere(opts.Filters, true, opts.IncludeDeleted)
	order := buildOrderBy(opts.OrderBy)
	limitOffset, loArgs := buildLimitOffset(opts.Limit, opts.Offset, len(args)+1)
	args = append(args, loArgs...)

	query := fmt.Sprintf("SELECT * FROM jobs %s %s %s", where, order, limitOffset)
	var rows []domain.Job
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return rows, nil
}

func (r *JobRepository) Create(ctx context.Context, j *domain.Job) (*domain.Job, error) {
	var created domain.Job
	err := r.q.GetContext(ctx, &created, `
		INSERT INTO jobs (user_id, title, content, language_id, voice_id, topic_id, account_id,
			speech_speed, is_horizontal, extra, run_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING *`,
		j.OwnerID, j.Title, j.Content, j.LanguageID, j.VoiceID, j.TopicID, j.AccountID,
		j.SpeechSpeed, j.IsHorizontal, j.Extra, j.RunOrder)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &created, nil
}

func (r *JobRepository) SoftDelete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `UPDATE jobs SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete job %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NewNotFoundError("job", fmt.Sprint(id))
	}
	return nil
}

// SplitRepository persists the per-scene JobSplit rows a job decomposes into.
type SplitRepository struct {
	q querier
}

func NewSplitRepository(s *Store) *SplitRepository { return &SplitRepository{q: s.DB} }

func (r *SplitRepository) ListForJob(ctx context.Context, jobID int64) ([]domain.JobSplit, error) {
	var rows []domain.JobSplit
	err := r.q.SelectContext(ctx, &rows, `SELECT * FROM job_splits WHERE job_id = $1 ORDER BY index ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list splits for job %d: %w", jobID, err)
	}
	return rows, nil
}

func (r *SplitRepository) ReplaceForJob(ctx context.Context, jobID int64, splits []domain.JobSplit) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM job_splits WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("clear splits for job %d: %w", jobID, err)
	}
	for _, s := range splits {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO job_splits (job_id, index, start_ms, end_ms, text, prompt, images, selected, video_path, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`,
			jobID, s.Index, s.StartMS, s.EndMS, s.Text, s.Prompt, s.Images, s.Selected, s.VideoPath)
		if err != nil {
			return fmt.Errorf("insert split %d for job %d: %w", s.Index, jobID, err)
		}
	}
	return nil
}

func (r *SplitRepository) UpdateVideoPath(ctx context.Context, jobID int64, index int, path string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE job_splits SET video_path = $1, updated_at = now() WHERE job_id = $2 AND index = $3`, path, jobID, index)
	if err != nil {
		return fmt.Errorf("update split video path job=%d index=%d: %w", jobID, index, err)
	}
	return nil
}

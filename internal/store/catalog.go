// Copyright 2025 James Ross
package store

import (
	"context"
	"fmt"

	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/errs"
)

// CatalogRepository fronts the small reference tables a job is assembled
// from: languages, voices, topics and accounts. All four are soft-deleted
// tables read the same way, so one repository covers them instead of four
// near-identical types. It offers Get for all four and List for languages
// and voices; it has no Create methods.
type CatalogRepository struct {
	q querier
}

func NewCatalogRepository(s *Store) *CatalogRepository { return &CatalogRepository{q: s.DB} }

func (r *CatalogRepository) GetLanguage(ctx context.Context, id int64) (*domain.Language, error) {
	var v domain.Language
	err := r.q.GetContext(ctx, &v, `SELECT * FROM languages WHERE id = $1 AND deleted_at IS NULL`, id)
	if isNoRows(err) {
		return nil, errs.NewNotFoundError("language", fmt.Sprint(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get language %d: %w", id, err)
	}
	return &v, nil
}

func (r *CatalogRepository) ListLanguages(ctx context.Context, opts ListOptions) ([]domain.Language, error) {
	var rows []domain.Language
	where, args := buildWhere(opts.Filters, true, opts.IncludeDeleted)
	if err := r.q.SelectContext(ctx, &rows, fmt.Sprintf("SELECT * FROM languages %s ORDER BY id ASC", where), args...); err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	return rows, nil
}

func (r *CatalogRepository) GetVoice(ctx context.Context, id int64) (*domain.Voice, error) {
	var v domain.Voice
	err := r.q.GetContext(ctx, &v, `SELECT * FROM voices WHERE id = $1 AND deleted_at IS NULL`, id)
	if isNoRows(err) {
		return nil, errs.NewNotFoundError("voice", fmt.Sprint(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get voice %d: %w", id, err)
	}
	return &v, nil
}

func (r *CatalogRepository) ListVoices(ctx context.Context, opts ListOptions) ([]domain.Voice, error) {
	var rows []domain.Voice
	where, args := buildWhere(opts.Filters, true, opts.IncludeDeleted)
	if err := r.q.SelectContext(ctx, &rows, fmt.Sprintf("SELECT * FROM voices %s ORDER BY id ASC", where), args...); err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return rows, nil
}

func (r *CatalogRepository) GetTopic(ctx context.Context, id int64) (*domain.Topic, error) {
	var v domain.Topic
	err := r.q.GetContext(ctx, &v, `SELECT * FROM topics WHERE id = $1 AND deleted_at IS NULL`, id)
	if isNoRows(err) {
		return nil, errs.NewNotFoundError("topic", fmt.Sprint(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get topic %d: %w", id, err)
	}
	return &v, nil
}

func (r *CatalogRepository) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var v domain.Account
	err := r.q.GetContext(ctx, &v, `SELECT * FROM accounts WHERE id = $1 AND deleted_at IS NULL`, id)
	if isNoRows(err) {
		return nil, errs.NewNotFoundError("account", fmt.Sprint(id))
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return &v, nil
}

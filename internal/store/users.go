// Copyright 2025 James Ross
package store

import (
	"context"
	"fmt"

	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/errs"
)

type UserRepository struct {
	q querier
}

func NewUserRepository(s *Store) *UserRepository { return &UserRepository{q: s.DB} }

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.q.GetContext(ctx, &u, `SELECT * FROM users WHERE username = $1`, username)
	if isNoRows(err) {
		return nil, errs.NewNotFoundError("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return &u, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE users SET last_login_at = now() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("touch last_login_at for user %q: %w", userID, err)
	}
	return nil
}

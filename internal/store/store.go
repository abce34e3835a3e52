// Copyright 2025 James Ross
// Package store is the durable Postgres layer: a thin sqlx wrapper plus one
// repository per entity, generalized from the interface-segregated backend
// abstraction the broker historically exposed for its own queue storage.
// Here the same shape — List/Get/Create/SoftDelete plus Store.Transact —
// fronts rows instead of queue entries; not every repository has every
// method, and none has a generic Update method.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/videoforge/engine/internal/config"
)

type Store struct {
	DB *sqlx.DB
}

func Open(cfg *config.Database) (*Store, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Transact runs fn inside a transaction, committing on nil return and
// rolling back otherwise, including on panic.
func (s *Store) Transact(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}

// querier is satisfied by both *sqlx.DB and *sqlx.Tx, letting every
// repository method run either standalone or inside Transact.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func isNoRows(err error) bool { return err == sql.ErrNoRows }

// Copyright 2025 James Ross
package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/videoforge/engine/internal/domain"
)

func newMockRepo(t *testing.T) (*ExecutionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	sx := sqlx.NewDb(db, "postgres")
	return &ExecutionRepository{q: sx}, mock
}

func TestExecutionRepositoryTransitionToRejectsIllegalEdge(t *testing.T) {
	repo, _ := newMockRepo(t)
	err := repo.TransitionTo(context.Background(), 1, domain.StatusSuccess, domain.StatusRunning, "")
	if err == nil {
		t.Fatal("expected error transitioning from a terminal status")
	}
}

func TestExecutionRepositoryTransitionToAffectsNoRowsWhenRaced(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE job_executions").
		WithArgs(domain.StatusRunning, "", int64(1), domain.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.TransitionTo(context.Background(), 1, domain.StatusPending, domain.StatusRunning, "")
	if err == nil {
		t.Fatal("expected error when no row matched the from-status guard")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestExecutionRepositoryTransitionToSucceeds(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE job_executions").
		WithArgs(domain.StatusRunning, "started", int64(1), domain.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TransitionTo(context.Background(), 1, domain.StatusPending, domain.StatusRunning, "started"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestExecutionRepositoryStuckSince(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows([]string{"id", "job_id", "status", "status_detail", "worker_hostname", "retry_count", "created_at", "updated_at"}).
		AddRow(1, 1, "RUNNING", "", "host-1", 0, time.Now(), time.Now())
	mock.ExpectQuery("SELECT \\* FROM job_executions").WillReturnRows(rows)

	got, err := repo.StuckSince(context.Background(), 20*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 stuck execution, got %d", len(got))
	}
}

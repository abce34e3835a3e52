// Copyright 2025 James Ross
package workerrt

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoforge/engine/internal/store"
)

func TestReadySucceedsWhenStoreAndRedisReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectPing().WillReturnError(nil)

	s := &store.Store{DB: sqlx.NewDb(db, "postgres")}
	rt := &Runtime{store: s, rdb: rdb}

	err = rt.Ready(context.Background())
	assert.NoError(t, err)
}

func TestReadyFailsWhenRedisUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = rdb.Close() })

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectPing().WillReturnError(nil)

	s := &store.Store{DB: sqlx.NewDb(db, "postgres")}
	rt := &Runtime{store: s, rdb: rdb}

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	err = rt.Ready(ctx)
	assert.Error(t, err)
}

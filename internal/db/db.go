package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DB wraps pgxpool.Pool for the audit trail
type DB struct {
	pool  execer
	close func()
}

// NewDB creates a new DB connection pool and checks connectivity
func NewDB(ctx context.Context, url string) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{pool: pool, close: pool.Close}, nil
}

// Close closes the connection pool
func (d *DB) Close() {
	if d.close != nil {
		d.close()
	}
}

package syncer

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// PostgresLocker uses session-level advisory locks. Each held lock pins one
// pooled connection until release, because advisory locks belong to the
// session that took them.
type PostgresLocker struct {
	db *sql.DB
}

// NewPostgresLocker opens a dedicated lib/pq pool for advisory locks.
func NewPostgresLocker(dsn string) (*PostgresLocker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock pool: %w", err)
	}
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PostgresLocker{db: db}, nil
}

func NewPostgresLockerWithDB(db *sql.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

func (l *PostgresLocker) TryAcquire(ctx context.Context, tenantID string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", tenantID).Scan(&acquired); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return nil, ErrSyncInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			var released bool
			_ = conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", tenantID).Scan(&released)
			conn.Close()
		})
	}, nil
}

func (l *PostgresLocker) Close() error {
	return l.db.Close()
}

// Package store provides the SQLite-backed period store and settings table.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a sql.DB with period-store operations.
type DB struct {
	conn  *sql.DB
	locks rowLocks
}

// Open opens (or creates) the SQLite database and applies pending migrations.
//
// Transactions are opened with BEGIN IMMEDIATE so a read-modify-write takes the
// write lock up front and waits on busy_timeout instead of failing on upgrade.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// PingContext reports whether the database is reachable.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// rowLocks serializes writers per entry date inside this process.
// Mutexes are never evicted; there is one per calendar day.
type rowLocks struct {
	m sync.Map // date -> *sync.Mutex
}

func (l *rowLocks) lock(date string) func() {
	v, _ := l.m.LoadOrStore(date, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

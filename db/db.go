// Package db is the content store: local accounts and categories,
// topics and posts, plus the federation-specific indices (remote
// mirrors, handles, recipient sets, inboxes, delivery queue). Read
// methods return (error, *T); scalar reads return (T, error).
package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite connection.
type DB struct {
	conn *sql.DB
}

// Connect opens (and migrates) the sqlite database at path.
func Connect(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows one writer; serialize at the pool level.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	d := &DB{conn: conn}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate() error {
	for _, ddl := range allTables {
		if _, err := d.conn.Exec(ddl); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// NextID issues the next value of a named sequence as a decimal string.
// Used for local entity ids (uid, cid, tid, pid).
func (d *DB) NextID(name string) (string, error) {
	var value int64
	err := d.conn.QueryRow(`
		INSERT INTO sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`, name).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	return strconv.FormatInt(value, 10), nil
}

func toUnix(t time.Time) int64 {
	return t.UnixMilli()
}

func fromUnix(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toUnix(*t)
}

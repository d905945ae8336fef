package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/slyt3/Quorum/internal/assert"
	"github.com/slyt3/Quorum/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const timeLayout = time.RFC3339Nano

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries holds every repository method. DB runs them on the pool, Tx inside a transaction.
type Queries struct {
	q queryer
}

// DB wraps the SQLite database connection
type DB struct {
	Queries
	conn *sql.DB
}

// Tx is one serializable unit of work. Every BEGIN is IMMEDIATE, so a Tx holds
// the database write lock from its first statement until commit or rollback.
type Tx struct {
	Queries
	tx *sql.Tx
}

// NewDB creates a new database connection and initializes the schema
func NewDB(dbPath string, busyTimeout time.Duration) (*DB, error) {
	if err := assert.Check(dbPath != "", "database path must not be empty"); err != nil {
		return nil, err
	}
	if err := assert.Check(busyTimeout >= 0, "busy timeout must not be negative"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Set("_busy_timeout", fmt.Sprint(busyTimeout.Milliseconds()))
	params.Set("_foreign_keys", "on")
	conn, err := sql.Open("sqlite3", "file:"+dbPath+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode so readers never block the single writer
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("enabling WAL mode: %v; closing database: %w", err, closeErr)
		}
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("executing schema: %v; closing database: %w", err, closeErr)
		}
		return nil, fmt.Errorf("executing schema: %w", err)
	}

	return &DB{Queries: Queries{q: conn}, conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection, used by readiness probes.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WithTx runs fn in one transaction. fn's error rolls everything back; a
// cancelled ctx aborts the transaction without committing anything.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	if err := assert.NotNil(fn, "transaction func"); err != nil {
		return err
	}
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = fmt.Errorf("%w; rolling back: %v", err, rbErr)
		}
	}()

	if err = fn(&Tx{Queries: Queries{q: sqlTx}, tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// IsConflict reports whether err is a concurrent-write race that a retry can resolve:
// a busy or locked database, a UNIQUE violation, or a failed compare-and-swap.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, models.ErrConflict) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		case sqlite3.ErrConstraint:
			return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
				se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
		}
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func expectOneRow(res sql.Result, what string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if rows != 1 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}

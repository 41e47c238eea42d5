// Package diagnostics records failed AI intents so malformed or missing
// responses can be inspected after the fact.
package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// MaxRecent is the most failures Recent is asked for, and how many a
// MemoryLogger keeps.
const MaxRecent = 200

var urlQuery = regexp.MustCompile(`(https?://[^\s"?]+)\?[^\s"]*`)

// Redact renders err for storage. Query strings of any URLs the error quotes
// are removed.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return urlQuery.ReplaceAllString(err.Error(), "$1")
}

// Schema creates the table used by PostgresLogger.
const Schema = `CREATE TABLE IF NOT EXISTS intent_failures (
	id          BIGSERIAL PRIMARY KEY,
	intent      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	snippet     TEXT NOT NULL DEFAULT '',
	document    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Failure describes one intent that did not produce a usable result.
type Failure struct {
	Intent   string `json:"intent"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Snippet  string `json:"snippet,omitempty"`
	Document string `json:"document,omitempty"`
	// CreatedAt defaults to the time of logging.
	CreatedAt time.Time `json:"created_at"`
}

func (f Failure) validate() error {
	if f.Intent == "" {
		return fmt.Errorf("intent is required")
	}
	if f.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	return nil
}

// FailureLogger defines failure recording behavior.
type FailureLogger interface {
	LogFailure(ctx context.Context, f Failure) error
}

// Store records failures and reads back the newest ones.
type Store interface {
	FailureLogger
	Recent(ctx context.Context, limit int) ([]Failure, error)
}

// NopLogger ignores all failures.
type NopLogger struct{}

func (NopLogger) LogFailure(context.Context, Failure) error {
	return nil
}

func (NopLogger) Recent(context.Context, int) ([]Failure, error) {
	return nil, nil
}

// MemoryLogger keeps the newest failures in memory.
type MemoryLogger struct {
	mu       sync.Mutex
	failures []Failure
	capacity int
}

func NewMemoryLogger() *MemoryLogger {
	return NewMemoryLoggerSize(MaxRecent)
}

// NewMemoryLoggerSize creates a MemoryLogger that keeps at most n failures.
func NewMemoryLoggerSize(n int) *MemoryLogger {
	if n <= 0 {
		n = MaxRecent
	}
	return &MemoryLogger{failures: make([]Failure, 0, n), capacity: n}
}

func (l *MemoryLogger) LogFailure(_ context.Context, f Failure) error {
	if err := f.validate(); err != nil {
		return err
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	l.mu.Lock()
	if len(l.failures) == l.capacity {
		copy(l.failures, l.failures[1:])
		l.failures = l.failures[:len(l.failures)-1]
	}
	l.failures = append(l.failures, f)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLogger) Failures() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Failure{}, l.failures...)
}

func (l *MemoryLogger) Recent(_ context.Context, limit int) ([]Failure, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Failure, 0, min(limit, len(l.failures)))
	for i := len(l.failures) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.failures[i])
	}
	return out, nil
}

// PostgresLogger inserts failures into the intent_failures table.
type PostgresLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresLogger(pool *pgxpool.Pool) *PostgresLogger {
	return &PostgresLogger{pool: pool}
}

func (l *PostgresLogger) LogFailure(ctx context.Context, f Failure) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("failure logger pool is nil")
	}
	if err := f.validate(); err != nil {
		return err
	}
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// The caller's request may already be cancelled; the record should still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dbTimeout)
	defer cancel()

	_, err := l.pool.Exec(ctx,
		`INSERT INTO intent_failures (intent, kind, message, snippet, document, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		f.Intent, f.Kind, f.Message, f.Snippet, f.Document, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}

	slog.Debug("intent failure recorded", "intent", f.Intent, "kind", f.Kind)
	return nil
}

// Recent returns the newest failures, most recent first.
func (l *PostgresLogger) Recent(ctx context.Context, limit int) ([]Failure, error) {
	if l == nil || l.pool == nil {
		return nil, fmt.Errorf("failure logger pool is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT intent, kind, message, snippet, document, created_at
		 FROM intent_failures ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Intent, &f.Kind, &f.Message, &f.Snippet, &f.Document, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// # internal/cache/store.go

// Package cache persists per-module analysis results keyed by content
// digest, so unchanged modules can skip re-analysis across runs.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"pyrite/internal/core/errors"
	"pyrite/internal/semanal"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "cache path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, errors.Newf(errors.CodeValidationError, "cache path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite cache %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Save records one module's results, replacing any previous entry. runID
// stamps which analysis run produced the entry.
func (s *Store) Save(module, digest, runID string, diags []semanal.Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("save module", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM diagnostics WHERE module = ?`, module); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`
INSERT INTO modules (module, digest, run_id, diag_count, checked_at_utc)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(module) DO UPDATE SET
  digest=excluded.digest,
  run_id=excluded.run_id,
  diag_count=excluded.diag_count,
  checked_at_utc=excluded.checked_at_utc
`, module, digest, runID, len(diags), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, d := range diags {
			if _, err := tx.Exec(`
INSERT INTO diagnostics (module, target, file, line, col, code, message)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, module, d.Target, d.Loc.File, d.Loc.Line, d.Loc.Column, string(d.Code), d.Message); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// Lookup returns the cached diagnostics for a module if the stored
// digest matches the current content.
func (s *Store) Lookup(module, digest string) ([]semanal.Diagnostic, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored string
	err := s.withRetry("lookup module", func() error {
		return s.db.QueryRow(`SELECT digest FROM modules WHERE module = ?`, module).Scan(&stored)
	})
	if err != nil {
		if strings.Contains(err.Error(), sql.ErrNoRows.Error()) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if stored != digest {
		return nil, false, nil
	}

	var rows *sql.Rows
	err = s.withRetry("load diagnostics", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT target, file, line, col, code, message FROM diagnostics WHERE module = ? ORDER BY line, col
`, module)
		return qErr
	})
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	diags := make([]semanal.Diagnostic, 0)
	for rows.Next() {
		var d semanal.Diagnostic
		var code string
		if err := rows.Scan(&d.Target, &d.Loc.File, &d.Loc.Line, &d.Loc.Column, &code, &d.Message); err != nil {
			return nil, false, fmt.Errorf("scan diagnostic row: %w", err)
		}
		d.Code = errors.ErrorCode(code)
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate diagnostic rows: %w", err)
	}
	return diags, true, nil
}

// Invalidate drops the entries for the named modules, forcing
// re-analysis on the next run.
func (s *Store) Invalidate(modules []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("invalidate modules", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, m := range modules {
			if _, err := tx.Exec(`DELETE FROM diagnostics WHERE module = ?`, m); err != nil {
				_ = tx.Rollback()
				return err
			}
			if _, err := tx.Exec(`DELETE FROM modules WHERE module = ?`, m); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

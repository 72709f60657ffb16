package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	domainerrors "callctx/internal/core/errors"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName      = "sqlite"
	maxAttempts     = 5
	DefaultRunLimit = 20
)

// Store persists analysis runs in SQLite.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, domainerrors.New(domainerrors.CodeValidationError, "history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, domainerrors.New(domainerrors.CodeValidationError, fmt.Sprintf("history path %q is a directory, expected file", cleanPath))
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeIO, fmt.Sprintf("create history directory %q", dir))
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeIO, fmt.Sprintf("open sqlite history %q", cleanPath))
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, domainerrors.Wrap(err, domainerrors.CodeIO, fmt.Sprintf("ping sqlite history %q", cleanPath))
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, domainerrors.Wrap(err, domainerrors.CodeIO, fmt.Sprintf("initialize sqlite schema %q", cleanPath))
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun stores a run with its functions and edges in one transaction and
// returns the run with its ID and timestamp filled in.
func (s *Store) SaveRun(ctx context.Context, detail RunDetail) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := detail.Run
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.FunctionCount = len(detail.Functions)
	run.EdgeCount = len(detail.Edges)

	err := s.withRetry("save run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := insertRun(ctx, tx, run, detail); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return Run{}, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeIO, "save run"), domainerrors.CtxRunID, run.ID)
	}
	return run, nil
}

func insertRun(ctx context.Context, tx *sql.Tx, run Run, detail RunDetail) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (
  id, created_at_utc, root, seed_file, seed, classifier, max_depth,
  function_count, edge_count, unresolved_count, diagnostic_count
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.Root,
		run.SeedFile,
		run.Seed,
		run.Classifier,
		run.MaxDepth,
		run.FunctionCount,
		run.EdgeCount,
		run.UnresolvedCount,
		run.DiagnosticCount,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, fn := range detail.Functions {
		isProject := 0
		if fn.IsProject {
			isProject = 1
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO functions (
  run_id, position, signature, qualified_name, class_name, file_path,
  line, end_line, depth, package_name, is_project, source_text
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, fn.Signature, fn.QualifiedName, fn.ClassName, fn.FilePath,
			fn.Line, fn.EndLine, fn.Depth, fn.PackageName, isProject, fn.SourceText,
		); err != nil {
			return fmt.Errorf("insert function %q: %w", fn.Signature, err)
		}
	}

	for i, edge := range detail.Edges {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO edges (run_id, position, from_signature, to_signature) VALUES (?, ?, ?, ?)`,
			run.ID, i, edge.From, edge.To,
		); err != nil {
			return fmt.Errorf("insert edge %q -> %q: %w", edge.From, edge.To, err)
		}
	}
	return nil
}

// ListRuns returns the newest runs first. A non-positive limit uses DefaultRunLimit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = DefaultRunLimit
	}

	var rows *sql.Rows
	err := s.withRetry("list runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, runColumns+` ORDER BY created_at_utc DESC, id ASC LIMIT ?`, limit)
		return qErr
	})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeIO, "list runs")
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// LoadRun returns a stored run. An unknown id yields a NOT_FOUND error.
func (s *Store) LoadRun(ctx context.Context, id string) (RunDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	var detail RunDetail

	row := s.db.QueryRowContext(ctx, runColumns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunDetail{}, domainerrors.AddContext(domainerrors.New(domainerrors.CodeNotFound, "run not found"), domainerrors.CtxRunID, id)
	}
	if err != nil {
		return RunDetail{}, domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeIO, "load run"), domainerrors.CtxRunID, id)
	}
	detail.Run = run

	// Each query drains its rows before the next one; the pool holds one connection.
	functions, err := s.loadFunctions(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	edges, err := s.loadEdges(ctx, id)
	if err != nil {
		return RunDetail{}, err
	}
	detail.Functions = functions
	detail.Edges = edges

	return detail, nil
}

func (s *Store) loadFunctions(ctx context.Context, id string) ([]FunctionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT position, signature, qualified_name, class_name, file_path, line, end_line,
  depth, package_name, is_project, source_text
FROM functions WHERE run_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeIO, "load run functions")
	}
	defer rows.Close()

	var out []FunctionRecord
	for rows.Next() {
		var (
			fn        FunctionRecord
			isProject int
		)
		if err := rows.Scan(&fn.Position, &fn.Signature, &fn.QualifiedName, &fn.ClassName, &fn.FilePath,
			&fn.Line, &fn.EndLine, &fn.Depth, &fn.PackageName, &isProject, &fn.SourceText); err != nil {
			return nil, fmt.Errorf("scan function row: %w", err)
		}
		fn.IsProject = isProject != 0
		out = append(out, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate function rows: %w", err)
	}
	return out, nil
}

func (s *Store) loadEdges(ctx context.Context, id string) ([]EdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT from_signature, to_signature FROM edges WHERE run_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeIO, "load run edges")
	}
	defer rows.Close()

	var out []EdgeRecord
	for rows.Next() {
		var edge EdgeRecord
		if err := rows.Scan(&edge.From, &edge.To); err != nil {
			return nil, fmt.Errorf("scan edge row: %w", err)
		}
		out = append(out, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edge rows: %w", err)
	}
	return out, nil
}

const runColumns = `
SELECT id, created_at_utc, root, seed_file, seed, classifier, max_depth,
  function_count, edge_count, unresolved_count, diagnostic_count
FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run   Run
		tsRaw string
	)
	if err := row.Scan(&run.ID, &tsRaw, &run.Root, &run.SeedFile, &run.Seed, &run.Classifier, &run.MaxDepth,
		&run.FunctionCount, &run.EdgeCount, &run.UnresolvedCount, &run.DiagnosticCount); err != nil {
		return Run{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return Run{}, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
	}
	run.CreatedAt = ts.UTC()
	return run, nil
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

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}

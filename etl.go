package sheetsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/campusinsight/sheetsql/domain/model"
)

const (
	// DriverName is the database/sql driver used for the store
	DriverName = "sqlite"
	// DefaultLockTimeout bounds the destination lock probe
	DefaultLockTimeout = time.Second
)

// LoaderConfig describes one ETL run.
type LoaderConfig struct {
	// Source yields the workbook.
	Source Source
	// DestinationPath is the SQLite file; it is created when missing.
	DestinationPath string
	// Retry governs opening the source. The zero value makes one attempt.
	Retry RetryPolicy
	// LockTimeout bounds the wait for the destination write lock.
	// Zero uses DefaultLockTimeout.
	LockTimeout time.Duration
}

// RunReport summarizes an ETL run, including a partial one.
type RunReport struct {
	RunID       string
	Source      string
	Destination string
	Tables      []TableSummary
	// Skipped lists table names of sheets without data rows.
	Skipped    []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger for the run and its materializer.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithMaterializer replaces the default materializer.
func WithMaterializer(m *Materializer) LoaderOption {
	return func(l *Loader) {
		l.materializer = m
	}
}

// Loader drives sanitize, infer and materialize for every sheet of a workbook.
type Loader struct {
	cfg          LoaderConfig
	logger       *slog.Logger
	materializer *Materializer
	now          func() time.Time
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig, opts ...LoaderOption) *Loader {
	l := &Loader{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.materializer == nil {
		l.materializer = NewMaterializer(WithMaterializerLogger(l.logger))
	}
	return l
}

// Run executes the load. Tables are replaced one at a time in sheet order;
// when one fails the run stops and the returned report lists the tables
// completed before the failure.
func (l *Loader) Run(ctx context.Context) (*RunReport, error) {
	if l.cfg.Source == nil {
		return nil, errors.New("sheetsql: loader has no source")
	}

	report := &RunReport{
		RunID:       uuid.NewString(),
		Source:      l.cfg.Source.Describe(),
		Destination: l.cfg.DestinationPath,
		StartedAt:   l.now(),
	}
	logger := l.logger.With(slog.String("run_id", report.RunID))
	defer func() {
		report.FinishedAt = l.now()
	}()

	wb, err := l.openSource(ctx, logger)
	if err != nil {
		return report, err
	}
	if len(wb.Sheets) == 0 {
		return report, NewErrorContext("load", report.Source).Error(ErrNoSheets)
	}
	logger.Info("workbook opened",
		slog.String("source", report.Source),
		slog.Any("sheets", wb.SheetNames()),
	)

	db, conn, err := l.openDestination(ctx)
	if err != nil {
		return report, err
	}
	defer func() {
		_ = conn.Close()
		_ = db.Close()
	}()

	used := make(map[string]struct{}, len(wb.Sheets))
	for _, sheet := range wb.Sheets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		tableName := model.UniqueTableName(model.Sanitize(sheet.Name), used)
		if sheet.IsEmpty() {
			report.Skipped = append(report.Skipped, tableName)
			logger.Info("sheet skipped",
				slog.String("sheet", sheet.Name),
				slog.String("table", tableName),
				slog.String("reason", "no data rows"),
			)
			continue
		}

		sheet.Header = model.SanitizeAll(sheet.Header)
		table := model.InferTable(tableName, sheet)

		summary, err := l.materializer.Materialize(ctx, conn, table)
		if err != nil {
			logger.Error("table failed", slog.String("table", tableName), slog.Any("error", err))
			return report, err
		}
		report.Tables = append(report.Tables, summary)
	}

	logger.Info("load finished",
		slog.Int("tables", len(report.Tables)),
		slog.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// openSource opens the workbook under the retry policy.
func (l *Loader) openSource(ctx context.Context, logger *slog.Logger) (model.Workbook, error) {
	policy := l.cfg.Retry
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error) {
			logger.Warn("source busy, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", policy.Delay),
				slog.Any("error", err),
			)
		}
	}

	var wb model.Workbook
	err := policy.Do(ctx, func(ctx context.Context) error {
		var openErr error
		wb, openErr = l.cfg.Source.Open(ctx)
		return openErr
	})
	switch {
	case err == nil:
		return wb, nil
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrSourceUnavailable):
		return model.Workbook{}, err
	default:
		return model.Workbook{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
}

// openDestination opens the store, verifies no other writer holds it and
// applies the bulk-load pragmas. The returned conn is used for the whole run.
func (l *Loader) openDestination(ctx context.Context) (*sql.DB, *sql.Conn, error) {
	errCtx := NewErrorContext("open destination", l.cfg.DestinationPath)
	if strings.TrimSpace(l.cfg.DestinationPath) == "" {
		return nil, nil, errCtx.WithDetails("empty path").Error(nil)
	}

	timeout := l.cfg.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	db, err := OpenStore(l.cfg.DestinationPath, timeout)
	if err != nil {
		return nil, nil, errCtx.Error(err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, errCtx.Error(lockAware(err))
	}

	if err := checkNotLocked(ctx, conn); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, nil, errCtx.Error(err)
	}
	if err := applyLoadPragmas(ctx, conn); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, nil, errCtx.Error(lockAware(err))
	}
	return db, conn, nil
}

// OpenStore opens the SQLite file at path with the given busy timeout.
func OpenStore(path string, busyTimeout time.Duration) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return db, nil
}

// checkNotLocked takes and releases the write lock once. A busy store means
// another process is writing to it.
func checkNotLocked(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		return lockAware(err)
	}
	if _, err := conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return lockAware(err)
	}
	return nil
}

func applyLoadPragmas(ctx context.Context, conn *sql.Conn) error {
	var mode string
	if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	return nil
}

// lockAware wraps SQLite busy/locked failures with ErrDestinationLocked.
func lockAware(err error) error {
	if err == nil || !isLockError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDestinationLocked, err)
}

func isLockError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

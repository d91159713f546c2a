package sheetsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Store hands out dedicated connections. *sql.DB satisfies it.
type Store interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// DefaultTable is the base table for strategies and fallbacks.
	// Empty means the first table created in the store.
	DefaultTable string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for resolution diagnostics.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// Resolver answers named report requests against a store whose schema is
// derived from the data. A name is resolved in three stages: a table or view
// of that name, a dynamic strategy that locates its columns by role, and a
// fixed fallback query over the base table.
type Resolver struct {
	store  Store
	cfg    ResolverConfig
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store Store, cfg ResolverConfig, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  store,
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// errNoBaseTable means the store holds no user tables.
var errNoBaseTable = errors.New("no tables in store")

// Resolve produces the report named view. Only a missing table moves
// resolution past the direct stage; any other store error is returned.
// Each call uses one connection and releases it before returning.
func (r *Resolver) Resolve(ctx context.Context, view string, opts ...ReportOption) (*Result, error) {
	if err := validateIdent(view); err != nil {
		return nil, err
	}
	options := newReportOptions(opts)

	conn, err := r.store.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	columns, rows, err := queryResult(ctx, conn, "SELECT * FROM "+quoteIdent(view))
	if err == nil {
		r.logger.Debug("view resolved directly", slog.String("view", view))
		return &Result{View: view, Source: SourceView, Columns: columns, Rows: rows}, nil
	}
	if !isNoSuchTable(err) {
		return nil, NewErrorContext("resolve view", "").WithTable(view).Error(err)
	}
	// A view over a dropped table also fails with "no such table".
	exists, existsErr := schemaObjectExists(ctx, conn, view)
	if existsErr != nil || exists {
		return nil, NewErrorContext("resolve view", "").WithTable(view).Error(errors.Join(err, existsErr))
	}
	notFound := err

	key := normalizeViewName(view)
	if s, ok := lookupStrategy(key); ok {
		return r.runStrategy(ctx, conn, view, s, options)
	}
	if f, ok := fallbacks[key]; ok {
		return r.runFallback(ctx, conn, view, f)
	}

	r.logger.Debug("view not resolved", slog.String("view", view))
	return nil, fmt.Errorf("%w: %s: %w", ErrUnknownView, view, notFound)
}

func (r *Resolver) runStrategy(ctx context.Context, conn *sql.Conn, view string, s strategy, options reportOptions) (*Result, error) {
	base, err := r.baseTable(ctx, conn)
	if err != nil {
		return nil, r.baseTableError(view, err)
	}
	schema, err := tableColumns(ctx, conn, base)
	if err != nil {
		return nil, NewErrorContext("read schema", "").WithTable(base).Error(err)
	}

	columns, rows, err := s.run(ctx, conn, strategyInput{base: base, schema: schema, options: options})
	if err != nil {
		return nil, NewErrorContext("strategy "+s.name, "").WithTable(base).Error(err)
	}
	r.logger.Debug("view resolved by strategy",
		slog.String("view", view),
		slog.String("strategy", s.name),
		slog.String("table", base),
		slog.Int("rows", len(rows)),
	)
	return &Result{View: view, Source: SourceDynamic, Columns: columns, Rows: rows}, nil
}

func (r *Resolver) runFallback(ctx context.Context, conn *sql.Conn, view string, f fallback) (*Result, error) {
	base, err := r.baseTable(ctx, conn)
	if err != nil {
		return nil, r.baseTableError(view, err)
	}
	columns, rows, err := queryResult(ctx, conn, fmt.Sprintf(f.query, quoteIdent(base)))
	if err != nil {
		return nil, NewErrorContext("fallback "+f.name, "").WithTable(base).Error(err)
	}
	r.logger.Debug("view resolved by fallback",
		slog.String("view", view),
		slog.String("fallback", f.name),
		slog.String("table", base),
	)
	return &Result{View: view, Source: SourceFallback, Columns: columns, Rows: rows}, nil
}

func (r *Resolver) baseTableError(view string, err error) error {
	if errors.Is(err, errNoBaseTable) {
		return fmt.Errorf("%w: %s: %w", ErrUnknownView, view, err)
	}
	return NewErrorContext("find base table", "").Error(err)
}

// baseTable returns the table that strategies and fallbacks read.
func (r *Resolver) baseTable(ctx context.Context, conn *sql.Conn) (string, error) {
	if r.cfg.DefaultTable != "" {
		return r.cfg.DefaultTable, nil
	}
	var name string
	err := conn.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid LIMIT 1`,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errNoBaseTable
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// tableColumns reads the live column names of table.
func tableColumns(ctx context.Context, conn *sql.Conn, table string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var columns []string
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   sql.NullString
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// ListViews returns the strategy and fallback names, sorted.
func (r *Resolver) ListViews() []string {
	names := make([]string, 0, len(strategies)+len(fallbacks))
	for name := range strategies {
		names = append(names, name)
	}
	for name := range fallbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeViewName folds case and treats '-' and '_' as equivalent.
func normalizeViewName(view string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(view)), "-", "_")
}

// schemaObjectExists reports whether a table or view called name is defined.
// SQLite compares identifiers case-insensitively.
func schemaObjectExists(ctx context.Context, conn *sql.Conn, name string) (bool, error) {
	var n int
	err := conn.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ? COLLATE NOCASE`,
		name,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func isNoSuchTable(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such table")
}

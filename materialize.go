package sheetsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campusinsight/sheetsql/domain/model"
)

// surrogateKeyColumn is appended when a table has none of the natural key columns.
const surrogateKeyColumn = "__rowid__"

// naturalKeyColumns suppress the surrogate key when any of them is present.
var naturalKeyColumns = []string{"id", "student_id", "application_id", "offer_id"}

// indexedColumns get a secondary index when present, in this order.
var indexedColumns = []string{
	"id", "student_id", "application_id", "offer_id", "enrollment_id", "visa_id",
	"agent_id", "term", "intake", "status", "date", "created_at", "updated_at",
	"offer_date", "expiry_date", "granted_date", "lodged_date", "startdate", "finishdate",
}

// TableSummary describes one materialized table.
type TableSummary struct {
	Table   string
	Rows    int
	Columns []model.ColumnSchema
	// Indexes lists the indexes that were created or already existed.
	Indexes []string
	// IndexErrors holds skipped index failures, each wrapping ErrIndexCreation.
	IndexErrors []error
}

// String renders the summary as "table: N rows → col:TYPE, ...".
func (s TableSummary) String() string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = c.Name + ":" + c.Kind.SQLType()
	}
	return fmt.Sprintf("%s: %d rows → %s", s.Table, s.Rows, strings.Join(cols, ", "))
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*Materializer)

// WithMaterializerLogger sets the logger used for summaries and index warnings.
func WithMaterializerLogger(logger *slog.Logger) MaterializerOption {
	return func(m *Materializer) {
		m.logger = logger
	}
}

// Materializer replaces a table in the store with the contents of an inferred table.
type Materializer struct {
	logger *slog.Logger
}

// NewMaterializer creates a Materializer.
func NewMaterializer(opts ...MaterializerOption) *Materializer {
	m := &Materializer{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Materialize drops and recreates table.Name, inserts every row and builds
// the secondary indexes. Drop, create and insert share one transaction, so a
// failure leaves any previous version of the table in place. Index failures
// are logged and reported in the summary without failing the table.
func (m *Materializer) Materialize(ctx context.Context, conn *sql.Conn, table model.Table) (TableSummary, error) {
	errCtx := NewErrorContext("materialize", "").WithTable(table.Name)
	if len(table.Columns) == 0 {
		return TableSummary{}, errCtx.WithDetails("no columns").Error(ErrInvalidIdentifier)
	}

	if err := validateIdent(table.Name); err != nil {
		return TableSummary{}, errCtx.Error(err)
	}
	for _, col := range table.Columns {
		if err := validateIdent(col.Name); err != nil {
			return TableSummary{}, errCtx.Error(err)
		}
	}
	name := quoteIdent(table.Name)

	if err := m.replaceTable(ctx, conn, name, table); err != nil {
		return TableSummary{}, errCtx.Error(err)
	}

	summary := TableSummary{
		Table:   table.Name,
		Rows:    table.RowCount,
		Columns: table.Schema(),
	}
	m.createIndexes(ctx, conn, table, &summary)

	m.logger.Info("table materialized",
		slog.String("table", table.Name),
		slog.Int("rows", summary.Rows),
		slog.String("summary", summary.String()),
	)
	return summary, nil
}

func (m *Materializer) replaceTable(ctx context.Context, conn *sql.Conn, name string, table model.Table) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("failed to rollback: %w", rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	if _, err = tx.ExecContext(ctx, buildCreateTableQuery(name, table)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, buildInsertQuery(name, table))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close() // Ignore close error during statement cleanup
	}()

	for i := range table.RowCount {
		if _, err = stmt.ExecContext(ctx, table.Row(i)...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i+1, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// buildCreateTableQuery constructs the CREATE TABLE statement in column order.
func buildCreateTableQuery(name string, table model.Table) string {
	columns := make([]string, 0, len(table.Columns)+1)
	for _, col := range table.Columns {
		columns = append(columns, fmt.Sprintf(`%s %s`, quoteIdent(col.Name), col.Kind.SQLType()))
	}
	if !hasNaturalKey(table) {
		columns = append(columns, fmt.Sprintf(`"%s" INTEGER PRIMARY KEY AUTOINCREMENT`, surrogateKeyColumn))
	}
	return fmt.Sprintf(`CREATE TABLE %s (%s)`, name, strings.Join(columns, ", "))
}

// buildInsertQuery names the columns explicitly so the surrogate key is generated.
func buildInsertQuery(name string, table model.Table) string {
	columns := make([]string, len(table.Columns))
	placeholders := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		columns[i] = quoteIdent(col.Name)
		placeholders[i] = "?"
	}
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		name, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
}

func hasNaturalKey(table model.Table) bool {
	for _, key := range naturalKeyColumns {
		if table.HasColumn(key) {
			return true
		}
	}
	return false
}

func (m *Materializer) createIndexes(ctx context.Context, conn *sql.Conn, table model.Table, summary *TableSummary) {
	for _, col := range indexedColumns {
		if !table.HasColumn(col) {
			continue
		}
		indexName, err := createIndex(ctx, conn, table.Name, col)
		if err != nil {
			indexErr := fmt.Errorf("%w: %s: %w", ErrIndexCreation, indexName, err)
			summary.IndexErrors = append(summary.IndexErrors, indexErr)
			m.logger.Warn("index creation skipped",
				slog.String("table", table.Name),
				slog.String("index", indexName),
				slog.Any("error", err),
			)
			continue
		}
		summary.Indexes = append(summary.Indexes, indexName)
	}
}

// createIndex creates idx_<table>_<col>. That name can belong to an index of
// another table ("x_visa"."id" and "x"."visa_id"); the index is then named
// idx_<table>__<col>, which sanitized names cannot produce.
func createIndex(ctx context.Context, conn *sql.Conn, tableName, col string) (string, error) {
	indexName := fmt.Sprintf("idx_%s_%s", tableName, col)
	owner, err := indexOwner(ctx, conn, indexName)
	if err != nil {
		return indexName, err
	}
	if owner != "" && owner != tableName {
		indexName = fmt.Sprintf("idx_%s__%s", tableName, col)
	}

	query := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
		quoteIdent(indexName), quoteIdent(tableName), quoteIdent(col))
	if _, err := conn.ExecContext(ctx, query); err != nil {
		return indexName, err
	}

	owner, err = indexOwner(ctx, conn, indexName)
	if err != nil {
		return indexName, err
	}
	if owner != tableName {
		return indexName, fmt.Errorf("index name already used by table %s", owner)
	}
	return indexName, nil
}

// indexOwner returns the table an index belongs to, or "" if there is no
// index of that name.
func indexOwner(ctx context.Context, conn *sql.Conn, indexName string) (string, error) {
	var owner string
	err := conn.QueryRowContext(ctx,
		`SELECT tbl_name FROM sqlite_master WHERE type = 'index' AND name = ? COLLATE NOCASE`,
		indexName,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return owner, err
}

// validateIdent rejects names that cannot be used as identifiers.
func validateIdent(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// quoteIdent returns name as a double-quoted SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

package sheetsql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/campusinsight/sheetsql/domain/model"
)

// Granularity is the bucket size of time-series reports.
type Granularity string

const (
	// GranularityDay buckets by calendar day (YYYY-MM-DD)
	GranularityDay Granularity = "day"
	// GranularityMonth buckets by calendar month (YYYY-MM)
	GranularityMonth Granularity = "month"
)

// ParseGranularity accepts "day" or "month"; empty means month.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case "", GranularityMonth:
		return GranularityMonth, nil
	case GranularityDay:
		return GranularityDay, nil
	default:
		return "", fmt.Errorf("sheetsql: invalid granularity %q", s)
	}
}

func (g Granularity) layout() string {
	if g == GranularityDay {
		return "2006-01-02"
	}
	return "2006-01"
}

// ReportOption adjusts a single Resolve call.
type ReportOption func(*reportOptions)

type reportOptions struct {
	granularity Granularity
}

// WithGranularity sets the bucket size for time-series reports.
func WithGranularity(g Granularity) ReportOption {
	return func(o *reportOptions) {
		o.granularity = g
	}
}

func newReportOptions(opts []ReportOption) reportOptions {
	o := reportOptions{granularity: GranularityMonth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.granularity != GranularityDay {
		o.granularity = GranularityMonth
	}
	return o
}

type strategyInput struct {
	base    string
	schema  []string
	options reportOptions
}

type strategy struct {
	name    string
	columns []string
	run     func(ctx context.Context, conn *sql.Conn, in strategyInput) ([]string, [][]any, error)
}

// Result columns of each strategy, also used for empty results.
var (
	visaColumns     = []string{"visa_type", "count"}
	expiryColumns   = []string{"period", "count"}
	deferredColumns = []string{"intake", "deferred", "total"}
)

// strategies are keyed by canonical name.
var strategies = map[string]strategy{
	"visa_breakdown": {
		name:    "visa_breakdown",
		columns: visaColumns,
		run:     visaBreakdown,
	},
	"offer_expiry_surge": {
		name:    "offer_expiry_surge",
		columns: expiryColumns,
		run:     offerExpirySurge,
	},
	"deferred_offers_overview": {
		name:    "deferred_offers_overview",
		columns: deferredColumns,
		run:     deferredOffersOverview,
	},
}

// strategyAliases map alternate report names, including the dashboard's
// route names, to canonical strategy names.
var strategyAliases = map[string]string{
	"visa_status_breakdown": "visa_breakdown",
	"visa_status":           "visa_breakdown",
	"offer_expiry":          "offer_expiry_surge",
	"deferred_offers":       "deferred_offers_overview",
}

func lookupStrategy(key string) (strategy, bool) {
	if canonical, ok := strategyAliases[key]; ok {
		key = canonical
	}
	s, ok := strategies[key]
	return s, ok
}

// emptyResult is returned when a required role has no column.
func emptyResult(columns []string) ([]string, [][]any, error) {
	return append([]string(nil), columns...), [][]any{}, nil
}

func visaBreakdown(ctx context.Context, conn *sql.Conn, in strategyInput) ([]string, [][]any, error) {
	col, ok := ResolveRole(in.schema, VisaRole)
	if !ok {
		return emptyResult(visaColumns)
	}
	query := fmt.Sprintf(
		`SELECT COALESCE(NULLIF(TRIM(CAST(%s AS TEXT)), ''), 'Unknown') AS "visa_type", COUNT(*) AS "count"
		FROM %s GROUP BY 1 ORDER BY "count" DESC, "visa_type"`,
		quoteIdent(col), quoteIdent(in.base),
	)
	return queryResult(ctx, conn, query)
}

func deferredOffersOverview(ctx context.Context, conn *sql.Conn, in strategyInput) ([]string, [][]any, error) {
	flag, ok := ResolveRole(in.schema, DeferredRole)
	if !ok {
		return emptyResult(deferredColumns)
	}
	deferredExpr := fmt.Sprintf(
		`COALESCE(SUM(CASE WHEN LOWER(TRIM(CAST(%s AS TEXT))) IN ('1', 'true', 'yes', 'y') THEN 1 ELSE 0 END), 0)`,
		quoteIdent(flag),
	)

	var query string
	if intake, ok := ResolveRole(in.schema, IntakeRole); ok {
		query = fmt.Sprintf(
			`SELECT COALESCE(NULLIF(TRIM(CAST(%s AS TEXT)), ''), 'Unknown') AS "intake", %s AS "deferred", COUNT(*) AS "total"
			FROM %s GROUP BY 1 ORDER BY 1`,
			quoteIdent(intake), deferredExpr, quoteIdent(in.base),
		)
	} else {
		query = fmt.Sprintf(
			`SELECT 'All' AS "intake", %s AS "deferred", COUNT(*) AS "total" FROM %s`,
			deferredExpr, quoteIdent(in.base),
		)
	}
	return queryResult(ctx, conn, query)
}

func offerExpirySurge(ctx context.Context, conn *sql.Conn, in strategyInput) ([]string, [][]any, error) {
	col, ok := ResolveRole(in.schema, ExpiryRole)
	if !ok {
		return emptyResult(expiryColumns)
	}

	rows, err := conn.QueryContext(ctx, fmt.Sprintf(
		`SELECT CAST(%s AS TEXT) FROM %s WHERE %s IS NOT NULL`,
		quoteIdent(col), quoteIdent(in.base), quoteIdent(col),
	))
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	layout := in.options.granularity.layout()
	counts := make(map[string]int64)
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, nil, err
		}
		t, ok := parseReportDate(raw.String)
		if !ok {
			continue
		}
		counts[t.Format(layout)]++
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	periods := make([]string, 0, len(counts))
	for p := range counts {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	out := make([][]any, len(periods))
	for i, p := range periods {
		out[i] = []any{p, counts[p]}
	}
	return append([]string(nil), expiryColumns...), out, nil
}

// dayFirstLayouts are the dashboard's dd/mm/yyyy renderings.
var dayFirstLayouts = []string{"2/1/2006", "2/1/2006 15:04", "2/1/2006 15:04:05"}

// parseReportDate accepts the stored ISO forms, then day-first dates,
// then any layout the inference engine recognizes.
func parseReportDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{model.DateLayout, model.DatetimeLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return model.ParseTemporal(s)
}

type fallback struct {
	name string
	// query has one %s verb for the quoted base table.
	query string
}

// fallbacks are fixed queries over the base table. Column references use
// brackets so a missing column is an error rather than a string literal.
var fallbacks = map[string]fallback{
	"total_records": {
		name:  "total_records",
		query: `SELECT COUNT(*) AS "total_records" FROM %s`,
	},
	"application_status": {
		name:  "application_status",
		query: `SELECT [status], COUNT(*) AS "count" FROM %s GROUP BY [status] ORDER BY "count" DESC, [status]`,
	},
	"agent_performance": {
		name:  "agent_performance",
		query: `SELECT [agent_id], COUNT(*) AS "count" FROM %s GROUP BY [agent_id] ORDER BY "count" DESC, [agent_id]`,
	},
	"campus_breakdown": {
		name:  "campus_breakdown",
		query: `SELECT [campus_name], COUNT(*) AS "count" FROM %s GROUP BY [campus_name] ORDER BY "count" DESC, [campus_name]`,
	},
	"nationality_breakdown": {
		name:  "nationality_breakdown",
		query: `SELECT [nationality], COUNT(*) AS "count" FROM %s GROUP BY [nationality] ORDER BY "count" DESC, [nationality]`,
	},
}

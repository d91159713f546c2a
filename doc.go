// Package sheetsql loads spreadsheet workbooks into a SQLite store and serves
// aggregate reports from it without a fixed schema.
//
// The load pipeline reads every sheet of a workbook, turns sheet and column
// labels into safe SQL identifiers, infers a storage kind for each column
// from its values and replaces one table per sheet. The report resolver then
// answers named reports against whatever schema the last load produced.
//
// # Loading
//
//	report, err := sheetsql.NewLoader(sheetsql.LoaderConfig{
//	    Source:          sheetsql.NewFileSource("dummy_data.xlsx"),
//	    DestinationPath: "dummy_data.db",
//	    Retry:           sheetsql.DefaultRetryPolicy(),
//	}).Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, t := range report.Tables {
//	    fmt.Println(t)
//	}
//
// Supported sources are Excel (.xlsx), CSV, TSV and Parquet files, each
// optionally compressed with gzip, bzip2, xz or zstandard. XLSX workbooks
// produce one table per sheet; the other formats produce a single table.
//
// # Type Inference
//
// Each column is tested in a fixed order and the first match wins:
//   - boolean when at least 90% of non-null values are one of
//     true/false, yes/no, y/n, 1/0 (stored as INTEGER 0/1)
//   - date or datetime when at least max(3, 80%) of non-null values parse
//     as dates (stored as ISO8601 TEXT)
//   - integer or real when at least max(3, 80%) of non-null values parse
//     as numbers
//   - text otherwise
//
// Values that do not fit the chosen kind are stored as NULL.
//
// # Table Naming
//
// Identifiers are lowercase and underscore-delimited:
//   - "Student ID" becomes "student_id"
//   - "2024 Intake" becomes "t_2024_intake"
//   - "Order" becomes "order_col"
//   - repeated column names become "name", "name_1", "name_2"
//   - repeated sheet names become "offers", "offers_2"
//
// # Reports
//
// Resolver.Resolve first reads a table of the requested name, then tries a
// dynamic strategy (visa_breakdown, offer_expiry_surge,
// deferred_offers_overview) that locates its columns by role in the base
// table, then a fixed fallback query (total_records, application_status,
// agent_performance, campus_breakdown, nationality_breakdown).
package sheetsql

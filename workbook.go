package sheetsql

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"github.com/campusinsight/sheetsql/domain/model"
)

// File format delimiters
const (
	csvDelimiter = ','
	tsvDelimiter = '\t'
)

// ctxCheckInterval is how many rows are read between context checks.
const ctxCheckInterval = 1000

const utf8BOM = "\ufeff"

// ReadWorkbook parses an uncompressed document of type ft.
// XLSX keeps every sheet in document order; CSV, TSV and Parquet produce a
// single sheet named after the document.
func ReadWorkbook(ctx context.Context, name string, r io.Reader, ft FileType) (model.Workbook, error) {
	switch ft {
	case FileTypeXLSX:
		return readXLSX(ctx, name, r)
	case FileTypeCSV:
		return readDelimited(ctx, name, r, csvDelimiter)
	case FileTypeTSV:
		return readDelimited(ctx, name, r, tsvDelimiter)
	case FileTypeParquet:
		return readParquet(ctx, name, r)
	default:
		return model.Workbook{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// readXLSX reads every sheet with the streaming rows iterator.
// Leading empty rows are skipped and the first non-empty row is the header.
func readXLSX(ctx context.Context, name string, r io.Reader) (model.Workbook, error) {
	xlsxFile, err := excelize.OpenReader(r)
	if err != nil {
		return model.Workbook{}, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer func() {
		_ = xlsxFile.Close() // Ignore close error
	}()

	props, err := xlsxFile.GetWorkbookProps()
	if err != nil {
		return model.Workbook{}, fmt.Errorf("failed to read workbook properties: %w", err)
	}
	cv := &cellValues{
		file:     xlsxFile,
		date1904: props.Date1904 != nil && *props.Date1904,
		formats:  make(map[int]numFmtKind),
	}

	wb := model.Workbook{Name: name}
	for _, sheetName := range xlsxFile.GetSheetList() {
		rows, err := readXLSXRows(ctx, xlsxFile, sheetName)
		if err != nil {
			return model.Workbook{}, err
		}
		if err := cv.apply(sheetName, rows); err != nil {
			return model.Workbook{}, err
		}
		wb.Sheets = append(wb.Sheets, sheetFromRows(sheetName, rows))
	}
	return wb, nil
}

// readXLSXRows returns the stored cell values of a sheet, without number
// formats applied. Row i of the result is worksheet row i+1.
func readXLSXRows(ctx context.Context, xlsxFile *excelize.File, sheetName string) ([][]string, error) {
	iter, err := xlsxFile.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to open rows iterator for sheet %s: %w", sheetName, err)
	}
	defer func() {
		_ = iter.Close()
	}()

	var rows [][]string
	for n := 0; iter.Next(); n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := iter.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read row in sheet %s: %w", sheetName, err)
		}
		rows = append(rows, row)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate sheet %s: %w", sheetName, err)
	}
	return rows, nil
}

// sheetFromRows turns raw rows into a sheet. Blank rows are dropped, the
// first remaining row is the header, and the header is widened to the
// widest row so no cell is lost.
func sheetFromRows(name string, rows [][]string) model.Sheet {
	var (
		header []string
		data   [][]string
		width  int
	)
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if header == nil {
			header = row
			continue
		}
		data = append(data, row)
		width = max(width, len(row))
	}
	if header == nil {
		return model.Sheet{Name: name}
	}
	for len(header) < width {
		header = append(header, "")
	}
	return model.NewSheet(name, header, data)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// readDelimited parses CSV or TSV data into a one-sheet workbook.
func readDelimited(ctx context.Context, name string, r io.Reader, delimiter rune) (model.Workbook, error) {
	csvReader := csv.NewReader(r)
	csvReader.Comma = delimiter
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	var rows [][]string
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return model.Workbook{}, err
			}
		}
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Workbook{}, fmt.Errorf("failed to read %s: %w", name, err)
		}
		rows = append(rows, record)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], utf8BOM)
	}

	sheetName := tableFromFilePath(name)
	return model.Workbook{Name: name, Sheets: []model.Sheet{sheetFromRows(sheetName, rows)}}, nil
}

// readParquet loads a Parquet document into a one-sheet workbook.
// Cells are rendered with the arrow value formatter; nulls stay null.
func readParquet(ctx context.Context, name string, r io.Reader) (model.Workbook, error) {
	// Parquet requires random access
	data, err := io.ReadAll(r)
	if err != nil {
		return model.Workbook{}, fmt.Errorf("failed to read parquet data: %w", err)
	}
	if len(data) == 0 {
		return model.Workbook{}, errors.New("empty parquet file")
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return model.Workbook{}, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer func() {
		_ = pqReader.Close()
	}()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return model.Workbook{}, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return model.Workbook{}, fmt.Errorf("failed to read table: %w", err)
	}
	defer table.Release()

	schema := table.Schema()
	header := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		header[i] = field.Name
	}

	tableReader := array.NewTableReader(table, 0)
	defer tableReader.Release()

	var rows [][]string
	for tableReader.Next() {
		batch := tableReader.Record()
		for i := range int(batch.NumRows()) {
			row := make([]string, batch.NumCols())
			for j, col := range batch.Columns() {
				if !col.IsNull(i) {
					row[j] = col.ValueStr(i)
				}
			}
			rows = append(rows, row)
		}
	}
	if err := tableReader.Err(); err != nil {
		return model.Workbook{}, fmt.Errorf("error reading table records: %w", err)
	}

	sheet := model.NewSheet(tableFromFilePath(name), header, rows)
	return model.Workbook{Name: name, Sheets: []model.Sheet{sheet}}, nil
}

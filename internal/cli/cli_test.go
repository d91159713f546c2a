package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeStudents(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	require.NoError(t, f.SetSheetName("Sheet1", "Students"))
	rows := [][]any{
		{"Student ID", "Visa Status", "Offer Expiry Date"},
		{1, "F-1", "2024-01-15"},
		{2, "F-1", "2024-01-20"},
		{3, "J-1", "2024-02-01"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Students", cell, &row))
	}

	path := filepath.Join(t.TempDir(), "students.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadAndReport(t *testing.T) {
	t.Parallel()

	src := writeStudents(t)
	db := filepath.Join(t.TempDir(), "store.db")

	out, err := run(t, "load", "--source", src, "--db", db, "--retries", "1", "--wait", "10ms")
	require.NoError(t, err)
	assert.Contains(t, out, "students: 3 rows → student_id:INTEGER, visa_status:TEXT, offer_expiry_date:TEXT")

	out, err = run(t, "report", "visa_breakdown", "--db", db, "--format", "json")
	require.NoError(t, err)
	var result struct {
		Source string           `json:"source"`
		Rows   []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "dynamic", result.Source)
	assert.Equal(t, []map[string]any{
		{"visa_type": "F-1", "count": float64(2)},
		{"visa_type": "J-1", "count": float64(1)},
	}, result.Rows)

	out, err = run(t, "report", "offer-expiry", "--db", db, "--granularity", "month")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01")
	assert.Contains(t, out, "(2 rows, dynamic)")

	out, err = run(t, "report", "students", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "(3 rows, view)")

	out, err = run(t, "report", "visa_status", "--db", db, "-f", "csv")
	require.NoError(t, err)
	assert.Equal(t, "visa_type,count\nF-1,2\nJ-1,1\n", out)

	out, err = run(t, "report", "--list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "deferred_offers_overview\n")
}

func TestReport_Errors(t *testing.T) {
	t.Parallel()

	db := filepath.Join(t.TempDir(), "empty.db")

	_, err := run(t, "report", "nothing", "--db", db)
	require.Error(t, err)

	_, err = run(t, "report", "visa_breakdown", "--db", db, "--granularity", "week")
	require.Error(t, err)

	_, err = run(t, "report", "--db", db)
	require.Error(t, err)
}

func TestLoad_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := run(t, "load", "--retries", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry.attempts")

	_, err = run(t, "load", "--log-format", "xml")
	require.Error(t, err)
}

func TestLoad_MissingSource(t *testing.T) {
	t.Parallel()

	_, err := run(t, "load",
		"--source", filepath.Join(t.TempDir(), "missing.xlsx"),
		"--db", filepath.Join(t.TempDir(), "out.db"),
		"--retries", "1",
	)
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sheetsql v"+Version)
}

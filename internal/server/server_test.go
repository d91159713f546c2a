package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusinsight/sheetsql"
	"github.com/campusinsight/sheetsql/internal/testutil"
)

const testSecret = "test-secret-key-32-bytes-long!!"

func newReportStore(t *testing.T) *sheetsql.Resolver {
	t.Helper()

	db, err := sheetsql.Open(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	for _, stmt := range []string{
		`CREATE TABLE students (student_id INTEGER, visa_status TEXT, offer_expiry_date TEXT)`,
		`INSERT INTO students VALUES (1, 'F-1', '2024-01-15'), (2, 'F-1', '2024-01-20'), (3, 'J-1', '2024-02-01')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return sheetsql.NewResolver(db, sheetsql.ResolverConfig{})
}

type failingReporter struct{}

func (failingReporter) Resolve(context.Context, string, ...sheetsql.ReportOption) (*sheetsql.Result, error) {
	return nil, errors.New("disk I/O error at /secret/path")
}

func (failingReporter) ListViews() []string { return nil }

// sessionCookie returns a cookie carrying role, signed by srv's store.
func sessionCookie(t *testing.T, srv *Server, role string) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := srv.sessionStore.Get(req, SessionName)
	require.NoError(t, err)
	session.Values[RoleKey] = role
	require.NoError(t, session.Save(req, rec))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Report(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{Reporter: newReportStore(t), Logger: testutil.NewTestLogger(t)})
	h := srv.Handler()

	t.Run("dynamic report", func(t *testing.T) {
		t.Parallel()

		rec := get(t, h, "/api/reports/visa_breakdown")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{
			"view": "visa_breakdown",
			"source": "dynamic",
			"columns": ["visa_type", "count"],
			"rows": [{"visa_type": "F-1", "count": 2}, {"visa_type": "J-1", "count": 1}]
		}`, rec.Body.String())
	})

	t.Run("granularity", func(t *testing.T) {
		t.Parallel()

		rec := get(t, h, "/api/reports/offer_expiry_surge?granularity=day")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Rows []map[string]any `json:"rows"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Rows, 3)
	})

	t.Run("bad granularity", func(t *testing.T) {
		t.Parallel()

		rec := get(t, h, "/api/reports/offer_expiry_surge?granularity=week")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown report", func(t *testing.T) {
		t.Parallel()

		rec := get(t, h, "/api/reports/nothing_here")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error": "unknown report: nothing_here"}`, rec.Body.String())
	})

	t.Run("list", func(t *testing.T) {
		t.Parallel()

		rec := get(t, h, "/api/reports")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string][]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["reports"], "visa_breakdown")
		assert.Contains(t, body["reports"], "total_records")
	})
}

func TestServer_InternalErrorIsShort(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{Reporter: failingReporter{}, Logger: testutil.NewTestLogger(t)})
	rec := get(t, srv.Handler(), "/api/reports/visa_breakdown")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "report failed"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "/secret/path")
}

func TestServer_RoleGate(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{
		Reporter:      newReportStore(t),
		SessionSecret: testSecret,
		Roles: map[string][]string{
			"admin": {"*"},
			"agent": {"visa_breakdown"},
		},
	})
	h := srv.Handler()

	tests := []struct {
		name   string
		target string
		role   string
		want   int
	}{
		{name: "no session", target: "/api/reports/visa_breakdown", want: http.StatusUnauthorized},
		{name: "unknown role", target: "/api/reports/visa_breakdown", role: "guest", want: http.StatusForbidden},
		{name: "allowed report", target: "/api/reports/visa_breakdown", role: "agent", want: http.StatusOK},
		{name: "denied report", target: "/api/reports/total_records", role: "agent", want: http.StatusForbidden},
		{name: "wildcard", target: "/api/reports/total_records", role: "admin", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var cookies []*http.Cookie
			if tt.role != "" {
				cookies = append(cookies, sessionCookie(t, srv, tt.role))
			}
			assert.Equal(t, tt.want, get(t, h, tt.target, cookies...).Code)
		})
	}

	t.Run("list is filtered by role", func(t *testing.T) {
		t.Parallel()

		rec := get(t, h, "/api/reports", sessionCookie(t, srv, "agent"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"reports": ["visa_breakdown"]}`, rec.Body.String())
	})
}

func TestServer_Serve(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{Reporter: failingReporter{}, Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

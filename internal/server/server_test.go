package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/foodstats"
	"github.com/tordrt/foodstats/internal/snapshot"
	"github.com/tordrt/foodstats/internal/snapshot/snapshottest"
)

type resultBody struct {
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "csv")
	require.NoError(t, snapshot.WriteCSVDir(snapshottest.Sample(t), dir))

	session, err := foodstats.Open(context.Background(), "csv://"+dir, &foodstats.Options{Today: snapshottest.Today})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	ts := httptest.NewServer(New(session, Options{Timeout: 5 * time.Second}).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, data := do(t, ts, http.MethodGet, "/api/questions", "")
	require.Equal(t, http.StatusOK, status)
	var questions []foodstats.Question
	require.NoError(t, json.Unmarshal(data, &questions))
	require.Len(t, questions, 12)
	assert.Equal(t, 1, questions[0].ID)

	status, data = do(t, ts, http.MethodGet, "/api/views", "")
	require.Equal(t, http.StatusOK, status)
	var views []foodstats.View
	require.NoError(t, json.Unmarshal(data, &views))
	assert.Len(t, views, len(foodstats.Views()))

	status, data = do(t, ts, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","backend":"memory"}`, string(data))
}

func TestQuestionEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, data := do(t, ts, http.MethodGet, "/api/questions/5", "")
	require.Equal(t, http.StatusOK, status)
	var res resultBody
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, "Providers with expired food listings", res.Title)
	assert.Equal(t, [][]any{{"Apex", 1.0}, {"Gray Inc", 1.0}}, res.Rows)

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{path: "/api/questions/99", status: http.StatusNotFound, message: "unknown query: 99"},
		{path: "/api/questions/abc", status: http.StatusNotFound, message: "unknown query: abc"},
		{path: "/api/views/nope", status: http.StatusNotFound, message: "unknown view"},
		{path: "/api/views/claims_by_city?top=x", status: http.StatusBadRequest, message: "top must be"},
		{path: "/api/tables/users", status: http.StatusNotFound, message: "unknown table"},
		{path: "/api/tables/claims?limit=-1", status: http.StatusBadRequest, message: "limit must be"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, data := do(t, ts, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, status)
			var body errorBody
			require.NoError(t, json.Unmarshal(data, &body))
			assert.Contains(t, body.Error, tt.message)
			assert.Nil(t, body.Position)
		})
	}
}

func TestViewEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, data := do(t, ts, http.MethodGet, "/api/views/claims_by_city?top=1", "")
	require.Equal(t, http.StatusOK, status)

	var got struct {
		View   foodstats.View `json:"view"`
		Result resultBody     `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "claims_by_city", got.View.Name)
	assert.Equal(t, [][]any{{"Chennai", 3.0}}, got.Result.Rows)
}

func TestKPIAndTableEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, data := do(t, ts, http.MethodGet, "/api/kpis", "")
	require.Equal(t, http.StatusOK, status)
	var kpis resultBody
	require.NoError(t, json.Unmarshal(data, &kpis))
	assert.Equal(t, []any{"Claims", 5.0}, kpis.Rows[3])

	status, data = do(t, ts, http.MethodGet, "/api/tables/providers?limit=2", "")
	require.Equal(t, http.StatusOK, status)
	var preview resultBody
	require.NoError(t, json.Unmarshal(data, &preview))
	assert.Len(t, preview.Rows, 2)
	assert.Equal(t, "providers", preview.Title)
}

func TestAdhocEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, data := do(t, ts, http.MethodPost, "/api/adhoc", `{"query": "claims | limit 1"}`)
	require.Equal(t, http.StatusOK, status)
	var res resultBody
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Len(t, res.Rows, 1)

	status, data = do(t, ts, http.MethodPost, "/api/adhoc", `{"query": "users | limit 1"}`)
	require.Equal(t, http.StatusBadRequest, status)
	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body))
	require.NotNil(t, body.Position)
	assert.Equal(t, 0, *body.Position)

	status, _ = do(t, ts, http.MethodPost, "/api/adhoc", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestReloadAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	status, _ := do(t, ts, http.MethodPost, "/api/reload", "")
	require.Equal(t, http.StatusOK, status)
	do(t, ts, http.MethodGet, "/api/questions/1", "")
	do(t, ts, http.MethodPost, "/api/adhoc", `{"query": "users"}`)

	status, data := do(t, ts, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	text := string(data)
	assert.Contains(t, text, `foodstats_operations_total{backend="memory",operation="reload",status="ok"} 1`)
	assert.Contains(t, text, `foodstats_operations_total{backend="memory",operation="query",status="ok"} 1`)
	assert.Contains(t, text, `foodstats_operations_total{backend="memory",operation="adhoc",status="syntax"} 1`)
	assert.Contains(t, text, "foodstats_operation_duration_seconds_bucket")
}

// failingSession fails every call with err.
type failingSession struct {
	err error
}

func (f failingSession) Backend() string {
	return "postgres"
}

func (f failingSession) RunQuery(context.Context, int) (*foodstats.Result, error) {
	return nil, f.err
}

func (f failingSession) RunView(context.Context, string, foodstats.ViewOptions) (*foodstats.ViewResult, error) {
	return nil, f.err
}

func (f failingSession) KPIs(context.Context) (*foodstats.Result, error) {
	return nil, f.err
}

func (f failingSession) Preview(context.Context, string, int) (*foodstats.Result, error) {
	return nil, f.err
}

func (f failingSession) Adhoc(context.Context, string) (*foodstats.Result, error) {
	return nil, f.err
}

func (f failingSession) Reload(context.Context) error {
	return f.err
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "data access", err: fmt.Errorf("%w: connection refused", foodstats.ErrDataAccess), status: http.StatusBadGateway},
		{name: "deadline", err: fmt.Errorf("%w: %w", foodstats.ErrDataAccess, context.DeadlineExceeded), status: http.StatusGatewayTimeout},
		{name: "syntax without position", err: &foodstats.SyntaxError{Pos: -1, Msg: "no such column"}, status: http.StatusBadRequest},
		{name: "other", err: fmt.Errorf("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(New(failingSession{err: tt.err}, Options{}).Handler())
			defer ts.Close()

			status, data := do(t, ts, http.MethodGet, "/api/kpis", "")
			assert.Equal(t, tt.status, status)
			var body errorBody
			require.NoError(t, json.Unmarshal(data, &body))
			assert.Equal(t, tt.err.Error(), body.Error)
			assert.Nil(t, body.Position)
		})
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	srv := New(failingSession{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

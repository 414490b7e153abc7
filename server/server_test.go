package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.nextspeaker.dev/nextspeaker/roster"
	"go.nextspeaker.dev/nextspeaker/selector"
	"go.nextspeaker.dev/nextspeaker/simulate"
	"go.nextspeaker.dev/nextspeaker/store"
)

type testEnv struct {
	srv        *Server
	store      *store.File
	metrics    *Metrics
	selMetrics *selector.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewFile(t.TempDir())
	require.NoError(t, err)

	log := testLogger()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	selMetrics := selector.NewMetrics(reg)
	sl := selector.New(selector.WithLogger(log), selector.WithMetrics(selMetrics))
	srv := New(log, st, sl, metrics)

	return &testEnv{srv: srv, store: st, metrics: metrics, selMetrics: selMetrics}
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStateEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, roster.New(), decode[roster.Roster](t, rec))
}

func TestEditRoster(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPut, "/candidates", "ann\nbob\n\ncat\n")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ann", "bob", "cat"}, decode[roster.Roster](t, rec).Candidates)

	rec = env.do(t, http.MethodPut, "/history", "bob\nann")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/halflife", "3/2")
	require.Equal(t, http.StatusOK, rec.Code)

	r, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, roster.Roster{
		Candidates: []string{"ann", "bob", "cat"},
		History:    []string{"bob", "ann"},
		Halflife:   1.5,
	}, r)

	assert.Equal(t, 3.0, promtestutil.ToFloat64(env.metrics.Candidates))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(env.metrics.HistoryLength))

	rec = env.do(t, http.MethodPut, "/halflife", "0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	r, err = env.store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, r.History)
}

func TestPatchState(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, "/state", `{"candidates": ["ann", "bob"], "halflife": 4}`)
	require.Equal(t, http.StatusOK, rec.Code)

	r := decode[roster.Roster](t, rec)
	assert.Equal(t, []string{"ann", "bob"}, r.Candidates)
	assert.Equal(t, 4.0, r.Halflife)

	rec = env.do(t, http.MethodPatch, "/state", `{"halflife": -2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/state", `nope`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChoose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/choose", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no candidates yet")

	require.NoError(t, env.store.Save(ctx, roster.Roster{
		Candidates: []string{"ann", "bob", "cat", "dan"},
		History:    []string{"former", "ann", "bob"},
		Halflife:   10,
	}))

	rec = env.do(t, http.MethodPost, "/choose", "")
	require.Equal(t, http.StatusOK, rec.Code)

	sel := decode[Selection](t, rec)
	assert.Len(t, sel.ID, 26)
	// bob is in the recency window
	assert.Contains(t, []string{"ann", "cat", "dan"}, sel.Name)

	r, err := env.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"former", "ann", "bob", sel.Name}, r.History)
}

func TestSimulate(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.store.Save(context.Background(), roster.Roster{
		Candidates: []string{"ann", "bob"},
		Halflife:   10,
	}))

	rec := env.do(t, http.MethodGet, "/simulate?n=200", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[simulationResponse](t, rec)
	assert.Equal(t, 200, resp.Runs)
	assert.Equal(t, 200, resp.Results.Total())
	assert.Len(t, resp.Results, 2)

	rec = env.do(t, http.MethodGet, "/simulate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, simulate.DefaultRuns, decode[simulationResponse](t, rec).Results.Total())

	for _, n := range []string{"0", "-3", "many"} {
		rec = env.do(t, http.MethodGet, "/simulate?n="+n, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "n=%s", n)
	}
}

func TestSimulateSkipsChoiceMetrics(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.store.Save(context.Background(), roster.Roster{
		Candidates: []string{"ann", "bob"},
		History:    []string{"ann", "bob"},
		Halflife:   10,
	}))

	rec := env.do(t, http.MethodGet, "/simulate?n=50", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 50, decode[simulationResponse](t, rec).Results.Total())

	assert.Zero(t, promtestutil.ToFloat64(env.selMetrics.Choices.WithLabelValues("ann")))
	assert.Zero(t, promtestutil.ToFloat64(env.selMetrics.Choices.WithLabelValues("bob")))
	assert.Zero(t, promtestutil.ToFloat64(env.selMetrics.RecencyFallback))

	rec = env.do(t, http.MethodPost, "/choose", "")
	require.Equal(t, http.StatusOK, rec.Code)
	name := decode[Selection](t, rec).Name
	assert.Equal(t, 1.0, promtestutil.ToFloat64(env.selMetrics.Choices.WithLabelValues(name)))
}

func TestSchemaMismatch(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.store.Path(), []byte(`["v2","{}"]`), 0o600))

	rec := env.do(t, http.MethodGet, "/state", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etf-chunk-lab/internal/lookup"
	"etf-chunk-lab/internal/observability"
	"etf-chunk-lab/internal/orchestrator"
	"etf-chunk-lab/internal/simulation"
	"etf-chunk-lab/internal/storage/memory"
)

// sawtooth climbs 8% over 20 days, then drops back. Offsets stagger symbols.
func sawtooth(days, offset int) []float64 {
	out := make([]float64, days)
	for d := range out {
		out[d] = 100 * (1 + 0.08*float64((d+offset)%20)/20)
	}
	return out
}

func testHistory() *lookup.History {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	return lookup.FromCloses(start, []string{"EEM", "QQQ", "SPY"}, map[string][]float64{
		"EEM": sawtooth(120, 0),
		"QQQ": sawtooth(120, 7),
		"SPY": sawtooth(120, 13),
	})
}

func newTestServer(t *testing.T, history lookup.PriceSeries) *httptest.Server {
	t.Helper()
	_, ts := newServerPair(t, history)
	return ts
}

func newServerPair(t *testing.T, history lookup.PriceSeries) (*Server, *httptest.Server) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("etf_test", reg)
	runs := memory.NewRunStore()
	trades := memory.NewTradeRecordStore()
	equity := memory.NewEquityCurveStore()

	orch := orchestrator.New(orchestrator.Options{
		RunStore:         runs,
		TradeRecordStore: trades,
		EquityCurveStore: equity,
		Metrics:          m,
		ProgressEvery:    10,
	})

	srv := New(Config{
		Log:              zerolog.Nop(),
		Orchestrator:     orch,
		RunStore:         runs,
		TradeRecordStore: trades,
		EquityCurveStore: equity,
		History:          history,
		Metrics:          m,
		Gatherer:         reg,
		DevMode:          true,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return srv, ts
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

const runBody = `{"config":{"start_capital":100000,"number_of_chunks":5,"total_trading_days":100,"moving_average_window":5}}`

func startRun(t *testing.T, ts *httptest.Server) RunAccepted {
	t.Helper()

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/runs", runBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)

	var accepted RunAccepted
	require.NoError(t, json.Unmarshal([]byte(body), &accepted))
	require.NotEmpty(t, accepted.GlobalRunID)
	require.NotEmpty(t, accepted.ChunkRunID)
	require.NotEqual(t, accepted.GlobalRunID, accepted.ChunkRunID)
	return accepted
}

func waitCompleted(t *testing.T, ts *httptest.Server, runID string) RunView {
	t.Helper()

	var view RunView
	require.Eventually(t, func() bool {
		resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/runs/"+runID, "")
		if resp.StatusCode != http.StatusOK {
			return false
		}
		view = RunView{}
		if err := json.Unmarshal([]byte(body), &view); err != nil {
			return false
		}
		return view.Status == StatusCompleted && view.Summary != nil
	}, 10*time.Second, 20*time.Millisecond)
	return view
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, testHistory())

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestRunLifecycle(t *testing.T) {
	ts := newTestServer(t, testHistory())
	accepted := startRun(t, ts)
	assert.Equal(t, StatusRunning, accepted.Status)
	assert.Equal(t, 100, accepted.TotalDays)

	global := waitCompleted(t, ts, accepted.GlobalRunID)
	chunk := waitCompleted(t, ts, accepted.ChunkRunID)
	assert.Equal(t, 100, global.Summary.DaysSimulated)
	assert.Equal(t, "INDEPENDENT_CHUNK", string(chunk.Summary.Variant))

	// List
	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	assert.Len(t, list, 2)

	// Trades CSV
	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/runs/"+accepted.GlobalRunID+"/trades.csv", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(body, "day,date,action,symbol"))

	// Equity CSV: header plus one row per day
	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/runs/"+accepted.ChunkRunID+"/equity.csv", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	assert.Len(t, lines, 101)

	// Comparison report
	resp, body = doRequest(t, http.MethodGet,
		ts.URL+"/api/report?run="+accepted.GlobalRunID+"&run="+accepted.ChunkRunID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "# Strategy Comparison Report")
	assert.Contains(t, body, accepted.GlobalRunID)
	assert.NotContains(t, body, "No head-to-head comparison available.")
}

func TestCreateRun_Errors(t *testing.T) {
	ts := newTestServer(t, testHistory())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid config", `{"config":{"number_of_chunks":0}}`, http.StatusBadRequest},
		{"unknown field", `{"bogus":1}`, http.StatusBadRequest},
		{"bad date", `{"start":"01/02/2023"}`, http.StatusBadRequest},
		{"malformed json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/runs", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, body)
			assert.Contains(t, body, `"error"`)
		})
	}
}

func TestCreateRun_ConflictWhileRunning(t *testing.T) {
	srv, ts := newServerPair(t, testHistory())

	// a backtest with other ids is in flight
	now := time.Now().UTC()
	require.True(t, srv.jobs.start("busy-global", "busy-chunk", now))

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/runs", runBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)
	assert.Contains(t, body, "busy-global")

	_, err := srv.StartBacktest(context.Background(), orchestrator.Request{})
	assert.ErrorIs(t, err, errRunInProgress)

	srv.jobs.finish("busy-global", StatusCompleted, nil, now)
	srv.jobs.finish("busy-chunk", StatusCompleted, nil, now)

	accepted := startRun(t, ts)
	waitCompleted(t, ts, accepted.GlobalRunID)
	waitCompleted(t, ts, accepted.ChunkRunID)

	// the finished backtest releases the slot
	require.Eventually(t, func() bool {
		_, busy := srv.jobs.running()
		return !busy
	}, 5*time.Second, 10*time.Millisecond)
	startRun(t, ts)
}

func TestCreateRun_NoHistorySource(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/runs", runBody)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/rankings?day=3", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetRun_NotFound(t *testing.T) {
	ts := newTestServer(t, testHistory())

	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/runs/missing/trades.csv", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/report", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChunkSimulation(t *testing.T) {
	ts := newTestServer(t, testHistory())

	body := `{"start_capital":1000000,"number_of_chunks":10,"total_trading_days":250,"seed":42}`
	resp, out := doRequest(t, http.MethodPost, ts.URL+"/api/chunk-simulations", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)

	var result struct {
		RunID   string           `json:"run_id"`
		Chunks  []map[string]any `json:"chunks"`
		Summary struct {
			FinalCapital     float64 `json:"final_capital"`
			TotalDeployments int     `json:"total_deployments"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, result.Chunks, 10)
	assert.Positive(t, result.Summary.TotalDeployments)

	// Same seed, same outcome.
	_, again := doRequest(t, http.MethodPost, ts.URL+"/api/chunk-simulations", body)
	assert.JSONEq(t, out, again)

	resp, md := doRequest(t, http.MethodPost, ts.URL+"/api/chunk-simulations?format=markdown", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, md, "# Chunk Simulation Report")

	resp, _ = doRequest(t, http.MethodPost, ts.URL+"/api/chunk-simulations", `{"number_of_chunks":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRankings(t *testing.T) {
	ts := newTestServer(t, testHistory())

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/rankings?day=30&window=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var ranking RankingResponse
	require.NoError(t, json.Unmarshal([]byte(body), &ranking))
	assert.Equal(t, 30, ranking.Day)
	assert.Equal(t, "2023-02-01", ranking.Date)
	assert.Equal(t, 5, ranking.Window)
	require.Len(t, ranking.Candidates, 3)
	for i := 1; i < len(ranking.Candidates); i++ {
		assert.LessOrEqual(t, ranking.Candidates[i-1].Score, ranking.Candidates[i].Score)
	}

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/rankings?day=30&window=5&symbols=spy", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ranking = RankingResponse{}
	require.NoError(t, json.Unmarshal([]byte(body), &ranking))
	require.Len(t, ranking.Candidates, 1)
	assert.Equal(t, "SPY", ranking.Candidates[0].Symbol)

	// Before the window fills nothing is ranked.
	resp, body = doRequest(t, http.MethodGet, ts.URL+"/api/rankings?day=2&window=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"candidates":[]`)

	resp, md := doRequest(t, http.MethodGet, ts.URL+"/api/rankings?day=30&window=5&format=markdown", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, md, "# ETF Ranking: day 30 (2023-02-01)")

	for _, q := range []string{"", "day=-1", "day=x", "day=500", "day=3&window=0"} {
		resp, _ := doRequest(t, http.MethodGet, ts.URL+"/api/rankings?"+q, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, testHistory())
	accepted := startRun(t, ts)
	waitCompleted(t, ts, accepted.GlobalRunID)
	waitCompleted(t, ts, accepted.ChunkRunID)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `etf_test_simulation_runs_total{status="ok",variant="GLOBAL_COMPOUNDING"} 1`)
}

func TestProgressWebSocket(t *testing.T) {
	ts := newTestServer(t, testHistory())
	accepted := startRun(t, ts)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/runs/" + accepted.GlobalRunID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var last simulation.Progress
	received := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		require.NoError(t, json.Unmarshal(data, &last))
		received++
	}

	require.Positive(t, received)
	assert.Equal(t, accepted.GlobalRunID, last.RunID)
	assert.True(t, last.Done)
	assert.Equal(t, 100, last.Day)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"etf-chunk-lab/internal/domain"
	"etf-chunk-lab/internal/indicators"
	"etf-chunk-lab/internal/orchestrator"
	"etf-chunk-lab/internal/reporting"
	"etf-chunk-lab/internal/selection"
	"etf-chunk-lab/internal/simulation"
	"etf-chunk-lab/internal/storage"
)

var errRunInProgress = errors.New("backtest already running")

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// RunRequest is the body of POST /api/runs. Omitted config fields keep
// their defaults; dates are YYYY-MM-DD.
type RunRequest struct {
	Config  domain.SimulationConfig `json:"config"`
	Symbols []string                `json:"symbols,omitempty"`
	Start   string                  `json:"start,omitempty"`
	End     string                  `json:"end,omitempty"`
}

// RunAccepted is the response of POST /api/runs.
type RunAccepted struct {
	GlobalRunID string    `json:"global_run_id"`
	ChunkRunID  string    `json:"chunk_run_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	TotalDays   int       `json:"total_days"`
}

// RunView describes a run that is stored, in flight or ended without result.
type RunView struct {
	RunID    string               `json:"run_id"`
	Status   string               `json:"status"`
	Error    string               `json:"error,omitempty"`
	Progress *simulation.Progress `json:"progress,omitempty"`
	Summary  *domain.RunSummary   `json:"summary,omitempty"`
}

// RankingResponse is the response of GET /api/rankings.
type RankingResponse struct {
	Day        int                   `json:"day"`
	Date       string                `json:"date"`
	Window     int                   `json:"window"`
	Candidates []selection.Candidate `json:"candidates"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	body := RunRequest{Config: domain.DefaultSimulationConfig()}
	if !decodeBody(w, r, &body) {
		return
	}

	start, err := parseDate(body.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	end, err := parseDate(body.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}

	plan, err := s.StartBacktest(r.Context(), orchestrator.Request{
		Config:  body.Config,
		Symbols: body.Symbols,
		Start:   start,
		End:     end,
	})
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	days := plan.Config.TotalTradingDays
	if n := plan.History.Len(); n < days {
		days = n
	}
	writeJSON(w, http.StatusAccepted, RunAccepted{
		GlobalRunID: plan.GlobalRunID,
		ChunkRunID:  plan.ChunkRunID,
		Status:      StatusRunning,
		CreatedAt:   plan.CreatedAt,
		TotalDays:   days,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.List(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list runs")
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*domain.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	summary, err := s.runs.GetByID(r.Context(), runID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, RunView{RunID: runID, Status: StatusCompleted, Summary: summary})
		return
	case !errors.Is(err, storage.ErrNotFound):
		s.log.Error().Err(err).Str("run_id", runID).Msg("get run")
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	j, ok := s.jobs.get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	view := RunView{RunID: runID, Status: j.Status, Error: j.Error}
	if p, ok := s.hub.Last(runID); ok {
		view.Progress = &p
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTradesCSV(w http.ResponseWriter, r *http.Request) {
	s.serveRunCSV(w, r, func(res *domain.RunResult) (string, error) {
		return reporting.RenderTradesCSV(res.Trades)
	})
}

func (s *Server) handleEquityCSV(w http.ResponseWriter, r *http.Request) {
	s.serveRunCSV(w, r, func(res *domain.RunResult) (string, error) {
		return reporting.RenderEquityCSV(res.Equity)
	})
}

func (s *Server) serveRunCSV(w http.ResponseWriter, r *http.Request, render func(*domain.RunResult) (string, error)) {
	runID := chi.URLParam(r, "id")

	rep, err := s.generator.Generate(r.Context(), runID)
	if err != nil {
		s.writeStoreError(w, err, runID)
		return
	}
	out, err := render(rep.Results[0])
	if err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("render csv")
		writeError(w, http.StatusInternalServerError, "failed to render csv")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	runIDs := r.URL.Query()["run"]
	if len(runIDs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one run parameter is required")
		return
	}

	rep, err := s.generator.Generate(r.Context(), runIDs...)
	if err != nil {
		s.writeStoreError(w, err, strings.Join(runIDs, ","))
		return
	}
	if s.metrics != nil {
		s.metrics.ReportsGenerated.Inc()
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, rep.Runs)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(reporting.RenderComparisonMarkdown(rep)))
}

func (s *Server) handleChunkSimulation(w http.ResponseWriter, r *http.Request) {
	cfg := domain.DefaultStochasticConfig()
	if !decodeBody(w, r, &cfg) {
		return
	}

	result, err := s.orch.RunStochastic(r.Context(), cfg, nil)
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(reporting.RenderStochasticMarkdown(result)))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	day, err := strconv.Atoi(q.Get("day"))
	if err != nil || day < 0 {
		writeError(w, http.StatusBadRequest, "day must be a non-negative integer")
		return
	}
	window := domain.DefaultMovingAverageWindow
	if v := q.Get("window"); v != "" {
		window, err = strconv.Atoi(v)
		if err != nil || window <= 0 {
			writeError(w, http.StatusBadRequest, "window must be a positive integer")
			return
		}
	}

	history, err := s.loadHistory(r.Context())
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	if day >= history.Len() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("day %d is outside the history (%d days)", day, history.Len()))
		return
	}

	symbols := history.Symbols()
	if v := q.Get("symbols"); v != "" {
		symbols = splitSymbols(v)
	}

	sel := selection.NewSelector(history, indicators.NewCalculator(history, window))
	ranked := sel.Rank(symbols, day)

	if q.Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(reporting.RenderRankingMarkdown(day, history.Date(day), ranked)))
		return
	}
	writeJSON(w, http.StatusOK, RankingResponse{
		Day:        day,
		Date:       history.Date(day).Format(time.DateOnly),
		Window:     window,
		Candidates: ranked,
	})
}

// writeRunError maps simulation errors to status codes.
func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, simulation.ErrNoSymbols):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, simulation.ErrNoPriceHistory), errors.Is(err, orchestrator.ErrNoHistorySource):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, errRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeStoreError maps storage errors to status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, runID string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Str("run_id", runID).Msg("load run")
		writeError(w, http.StatusInternalServerError, "failed to load run")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, v)
}

func splitSymbols(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(strings.ToUpper(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

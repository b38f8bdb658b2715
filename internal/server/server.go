// Package server exposes backtests, stochastic simulations and rankings over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"etf-chunk-lab/internal/lookup"
	"etf-chunk-lab/internal/observability"
	"etf-chunk-lab/internal/orchestrator"
	"etf-chunk-lab/internal/reporting"
	"etf-chunk-lab/internal/simulation"
	"etf-chunk-lab/internal/storage"
)

// Config holds server configuration
type Config struct {
	Addr string
	Log  zerolog.Logger

	Orchestrator     *orchestrator.Orchestrator
	RunStore         storage.RunStore
	TradeRecordStore storage.TradeRecordStore
	EquityCurveStore storage.EquityCurveStore
	PriceBarStore    storage.PriceBarStore // used when History is nil

	// History, when set, backs every backtest and ranking.
	History lookup.PriceSeries

	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Hub      *HubConfig
	DevMode  bool
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	orch      *orchestrator.Orchestrator
	runs      storage.RunStore
	generator *reporting.Generator
	priceBars storage.PriceBarStore
	history   lookup.PriceSeries
	metrics   *observability.Metrics
	gatherer  prometheus.Gatherer
	hub       *Hub
	jobs      *jobTracker

	// Background backtests outlive their request; they stop on Shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	log := cfg.Log.With().Str("component", "server").Logger()
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		router:    chi.NewRouter(),
		log:       log,
		orch:      cfg.Orchestrator,
		runs:      cfg.RunStore,
		generator: reporting.NewGenerator(cfg.RunStore, cfg.TradeRecordStore, cfg.EquityCurveStore),
		priceBars: cfg.PriceBarStore,
		history:   cfg.History,
		metrics:   cfg.Metrics,
		gatherer:  gatherer,
		hub:       NewHub(cfg.Hub, cfg.Log, cfg.Metrics),
		jobs:      newJobTracker(),
		baseCtx:   baseCtx,
		cancel:    cancel,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(devMode bool) {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", observability.Handler(s.gatherer))

	// Progress streams are long-lived; keep them out of the API timeout.
	s.router.Get("/ws/runs/{id}", s.hub.ServeWS)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !devMode {
			r.Use(middleware.Compress(5))
		}

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.handleCreateRun)
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Get("/{id}/trades.csv", s.handleTradesCSV)
			r.Get("/{id}/equity.csv", s.handleEquityCSV)
		})
		r.Get("/report", s.handleReport)
		r.Post("/chunk-simulations", s.handleChunkSimulation)
		r.Get("/rankings", s.handleRankings)
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the progress hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown cancels running backtests and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.server.Shutdown(ctx)
}

// StartBacktest prepares req and runs it in the background.
// The returned plan carries both run ids.
func (s *Server) StartBacktest(ctx context.Context, req orchestrator.Request) (*orchestrator.Plan, error) {
	if id, busy := s.jobs.running(); busy {
		return nil, fmt.Errorf("%w: %s", errRunInProgress, id)
	}
	if req.History == nil {
		req.History = s.history
	}
	plan, err := s.orch.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if !s.jobs.start(plan.GlobalRunID, plan.ChunkRunID, time.Now().UTC()) {
		id, _ := s.jobs.running()
		return nil, fmt.Errorf("%w: %s", errRunInProgress, id)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(plan)
	}()
	return plan, nil
}

func (s *Server) execute(plan *orchestrator.Plan) {
	_, err := s.orch.Execute(s.baseCtx, plan, s.hub.Publish)

	status := StatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = StatusCancelled
	default:
		status = StatusFailed
		s.log.Error().Err(err).
			Str("global_run_id", plan.GlobalRunID).
			Str("chunk_run_id", plan.ChunkRunID).
			Msg("background backtest failed")
	}

	now := time.Now().UTC()
	for _, id := range []string{plan.GlobalRunID, plan.ChunkRunID} {
		s.jobs.finish(id, status, err, now)
		s.hub.Finish(id)
	}
}

// loadHistory returns the configured history or loads every stored bar.
func (s *Server) loadHistory(ctx context.Context) (lookup.PriceSeries, error) {
	if s.history != nil {
		return s.history, nil
	}
	if s.priceBars == nil {
		return nil, orchestrator.ErrNoHistorySource
	}
	return simulation.LoadHistory(ctx, s.priceBars, nil, time.Time{}, time.Time{})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

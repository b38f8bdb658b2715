package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"etf-chunk-lab/internal/observability"
	"etf-chunk-lab/internal/simulation"
)

// HubConfig configures progress streaming.
type HubConfig struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the per-subscriber queue length. Slow subscribers drop updates.
	Buffer int
}

// DefaultHubConfig returns default progress streaming configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		Buffer:       64,
	}
}

// Hub fans progress reports out to websocket subscribers, keyed by run id.
// The latest report of every run is kept so late subscribers start from it.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	log      zerolog.Logger
	metrics  *observability.Metrics

	mu     sync.Mutex
	subs   map[string]map[chan simulation.Progress]struct{}
	last   map[string]simulation.Progress
	closed map[string]bool
}

// NewHub creates a progress hub.
func NewHub(config *HubConfig, log zerolog.Logger, metrics *observability.Metrics) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log.With().Str("component", "progress_hub").Logger(),
		metrics: metrics,
		subs:    make(map[string]map[chan simulation.Progress]struct{}),
		last:    make(map[string]simulation.Progress),
		closed:  make(map[string]bool),
	}
}

// Publish delivers p to every subscriber of p.RunID without blocking.
func (h *Hub) Publish(p simulation.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed[p.RunID] {
		return
	}
	h.last[p.RunID] = p
	for ch := range h.subs[p.RunID] {
		select {
		case ch <- p:
		default:
		}
	}
}

// Finish marks runID as ended and closes its subscriber channels.
func (h *Hub) Finish(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed[runID] = true
	for ch := range h.subs[runID] {
		close(ch)
	}
	delete(h.subs, runID)
}

// Subscribe returns a channel of runID's reports and a cancel function.
// The channel starts with the latest report, if any, and is closed when the
// run finishes.
func (h *Hub) Subscribe(runID string) (<-chan simulation.Progress, func()) {
	ch := make(chan simulation.Progress, h.config.Buffer+1)

	h.mu.Lock()
	defer h.mu.Unlock()

	if p, ok := h.last[runID]; ok {
		ch <- p
	}
	if h.closed[runID] {
		close(ch)
		return ch, func() {}
	}

	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan simulation.Progress]struct{})
	}
	h.subs[runID][ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[runID][ch]; ok {
				delete(h.subs[runID], ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Last returns the latest report of runID.
func (h *Hub) Last(runID string) (simulation.Progress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.last[runID]
	return p, ok
}

// ServeWS streams a run's progress as JSON text frames until the run
// finishes or the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("run_id", runID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Time{})

	if h.metrics != nil {
		h.metrics.ProgressClients.Inc()
		defer h.metrics.ProgressClients.Dec()
	}

	updates, cancel := h.Subscribe(runID)
	defer cancel()

	// Reader goroutine detects client close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(h.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case p, ok := <-updates:
			if !ok {
				deadline := time.Now().Add(h.config.WriteTimeout)
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
				_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
				return
			}
			data, err := json.Marshal(p)
			if err != nil {
				h.log.Error().Err(err).Msg("marshal progress")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// Package api provides the HTTP REST API server for the route risk engine.
//
// It exposes endpoints for scoring routes, inspecting and refreshing the
// aggregated risk factors, listing indicator sources, Prometheus metrics,
// and WebSocket notifications of factor refreshes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/routerisk/internal/config"
	"github.com/seenimoa/routerisk/internal/metrics"
	"github.com/seenimoa/routerisk/internal/report"
	"github.com/seenimoa/routerisk/internal/risk"
	"github.com/seenimoa/routerisk/internal/source"
	"github.com/seenimoa/routerisk/pkg/models"
)

// Version is reported by the health endpoint; set at build time.
var Version = "dev"

// maxBatchRoutes bounds the size of a single scoring or factor request.
const maxBatchRoutes = 10000

// SourceLister lists the configured indicator sources.
type SourceLister interface {
	Sources() []source.Info
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	engine  *risk.Engine
	sources SourceLister
	metrics *metrics.Metrics
	wsHub   *WSHub
	logger  *slog.Logger
}

// NewServer creates a configured API server with all routes and middleware.
// sources and m may be nil.
func NewServer(cfg *config.Config, engine *risk.Engine, sources SourceLister, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		engine:  engine,
		sources: sources,
		metrics: m,
		wsHub:   NewWSHub(),
		logger:  logger,
	}
	engine.Subscribe(func(snap *risk.Snapshot) {
		s.wsHub.Broadcast(WSMessage{Type: EventFactorsRefreshed, Data: snapshotEvent(snap)})
	})
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// NotifyRefresh reports a background refresh result to WebSocket clients.
// Successful refreshes are already broadcast through the engine.
func (s *Server) NotifyRefresh(_ *risk.Snapshot, err error) {
	if err != nil {
		s.wsHub.Broadcast(WSMessage{Type: EventRefreshFailed, Data: map[string]string{"error": err.Error()}})
	}
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start WebSocket hub
	go s.wsHub.Run()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if s.cfg != nil && len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// Prometheus
	r.Handle("/metrics", s.metrics.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Policy and configuration
		r.Get("/policy", s.handlePolicy)
		r.Get("/config", s.handleGetConfig)

		// Risk factors
		r.Get("/factors", s.handleGetFactors)
		r.Post("/factors", s.handlePostFactors)
		r.Delete("/cache", s.handleClearCache)

		// Scoring
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Post("/score", s.handleScore)
			r.Post("/score/batch", s.handleScoreBatch)
			r.Post("/report", s.handleReport)
		})

		// Sources
		r.Get("/sources", s.handleSources)

		// WebSocket
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ScoreRequest is the body for POST /api/v1/score.
type ScoreRequest struct {
	Route models.Route `json:"route"`
	Fresh bool         `json:"fresh,omitempty"` // refresh stale factors before scoring
}

// ScoreResponse is the result of scoring one route.
type ScoreResponse struct {
	RouteID   string         `json:"route_id,omitempty"`
	Score     int            `json:"score"`
	Label     string         `json:"label"`
	Outcome   risk.Outcome   `json:"outcome,omitempty"`
	Breakdown risk.Breakdown `json:"breakdown"`
}

// RoutesRequest is the body for POST /api/v1/factors and /score/batch.
type RoutesRequest struct {
	Routes  []models.Route `json:"routes"`
	Refresh bool           `json:"refresh,omitempty"`
}

// FactorsResponse carries a factor list with its provenance.
type FactorsResponse struct {
	Factors []models.WeightedFactor `json:"factors"`
	Outcome risk.Outcome            `json:"outcome,omitempty"`
	Stats   *risk.RouteStats        `json:"stats,omitempty"`
	Cache   risk.CacheStatus        `json:"cache"`
}

// BatchScoreResponse scores many routes against the cached factors.
type BatchScoreResponse struct {
	Scores []models.RouteScore `json:"scores"`
	Stats  risk.RouteStats     `json:"stats"`
	Cache  risk.CacheStatus    `json:"cache"`
}

// PolicyEntry is one category share.
type PolicyEntry struct {
	Category models.Category `json:"category"`
	Share    float64         `json:"share"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":     "ok",
			"version":    Version,
			"cache":      s.engine.Status(),
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Policy()
	entries := make([]PolicyEntry, 0, len(p.Categories()))
	for _, c := range p.Categories() {
		share, _ := p.Share(c)
		entries = append(entries, PolicyEntry{Category: c, Share: share})
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: entries})
}

func (s *Server) handleGetFactors(w http.ResponseWriter, r *http.Request) {
	factors := []models.WeightedFactor{}
	if snap := s.engine.Snapshot(); snap != nil {
		factors = snap.Factors
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    FactorsResponse{Factors: factors, Cache: s.engine.Status()},
	})
}

func (s *Server) handlePostFactors(w http.ResponseWriter, r *http.Request) {
	var req RoutesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateRoutes(req.Routes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := FactorsResponse{}
	if req.Refresh {
		resp.Factors, resp.Outcome = s.engine.FetchRiskFactors(r.Context(), req.Routes)
	} else {
		resp.Factors = s.engine.CalculateRiskFactors(req.Routes)
	}
	stats := risk.SummarizeRoutes(req.Routes)
	resp.Stats = &stats
	resp.Cache = s.engine.Status()

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Route.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		b       risk.Breakdown
		outcome risk.Outcome
	)
	if req.Fresh {
		b, outcome = s.engine.ExplainRouteFresh(r.Context(), req.Route)
	} else {
		b = s.engine.ExplainRouteSync(req.Route)
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ScoreResponse{
			RouteID:   req.Route.ID,
			Score:     b.Score,
			Label:     models.RiskLabel(b.Score),
			Outcome:   outcome,
			Breakdown: b,
		},
	})
}

func (s *Server) handleScoreBatch(w http.ResponseWriter, r *http.Request) {
	var req RoutesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Routes) == 0 {
		writeError(w, http.StatusBadRequest, "routes is required")
		return
	}
	if err := validateRoutes(req.Routes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scores := make([]models.RouteScore, 0, len(req.Routes))
	for _, route := range req.Routes {
		score := s.engine.ScoreRouteSync(route)
		scores = append(scores, models.RouteScore{Route: route, Score: score, Label: models.RiskLabel(score)})
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: BatchScoreResponse{
			Scores: scores,
			Stats:  risk.SummarizeRoutes(req.Routes),
			Cache:  s.engine.Status(),
		},
	})
}

// handleReport renders a route risk report. The format query parameter
// selects html (default) or text.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req RoutesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Routes) == 0 {
		writeError(w, http.StatusBadRequest, "routes is required")
		return
	}
	if err := validateRoutes(req.Routes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := report.Collect(r.Context(), s.engine, req.Routes, req.Refresh)
	out, err := report.Generate(in, format, report.DefaultConfig())
	if err != nil {
		s.logger.Error("report generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "report generation failed")
		return
	}

	contentType := "text/html; charset=utf-8"
	if format == report.FormatText {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearCache()
	s.wsHub.Broadcast(WSMessage{Type: EventCacheCleared})
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"cleared": true, "cache": s.engine.Status()},
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	infos := []source.Info{}
	if s.sources != nil {
		infos = s.sources.Sources()
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: infos})
}

// ============================================================
// Helpers
// ============================================================

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func validateRoutes(routes []models.Route) error {
	if len(routes) > maxBatchRoutes {
		return fmt.Errorf("at most %d routes per request", maxBatchRoutes)
	}
	for _, route := range routes {
		if err := route.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func snapshotEvent(snap *risk.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"cycle_id":   snap.CycleID,
		"updated_at": snap.UpdatedAt,
		"factors":    len(snap.Factors),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// ============================================================
// WebSocket Hub
// ============================================================

// WebSocket event types.
const (
	EventFactorsRefreshed = "factors_refreshed"
	EventRefreshFailed    = "refresh_failed"
	EventCacheCleared     = "cache_cleared"
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// WSClient represents a single WebSocket connection. The hub owns and
// closes send; replies carries direct answers to client requests.
type WSClient struct {
	hub     *WSHub
	send    chan WSMessage
	replies chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub event loop.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}

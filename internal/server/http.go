package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vigliensoni/OSC-output-parser/internal/bridge"
	"github.com/vigliensoni/OSC-output-parser/internal/forward"
	"github.com/vigliensoni/OSC-output-parser/internal/metrics"
	"github.com/vigliensoni/OSC-output-parser/internal/tap"
)

// Components lists the moving parts the HTTP API reports on. Role-specific
// fields may be nil and are omitted from responses.
type Components struct {
	UDPServer   *UDPServer
	Client      *forward.UDPClient
	Splitter    *bridge.Splitter
	Reassembler *bridge.Reassembler
	Tap         *tap.Publisher
}

// HTTPServer provides HTTP API endpoints for monitoring and management
type HTTPServer struct {
	server     *http.Server
	logger     *slog.Logger
	service    string
	configView map[string]interface{}
	components Components
	metrics    *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server for the given role. configView
// is the sanitized configuration returned by the /config endpoint.
func NewHTTPServer(addr, service string, configView map[string]interface{},
	components Components, logger *slog.Logger, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:     logger,
		service:    service,
		configView: configView,
		components: components,
		metrics:    m,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Slot table inspection, reassembler role only
	if h.components.Reassembler != nil {
		mux.HandleFunc("/slots", h.withMetrics("/slots", h.handleSlots))
	}

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Wrap the response writer to capture the status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	components := map[string]interface{}{}

	if h.components.UDPServer != nil {
		udpStats := h.components.UDPServer.GetStatistics()
		components["udp_server"] = map[string]interface{}{
			"status":              "running",
			"packets_received":    udpStats.PacketsReceived,
			"messages_dispatched": udpStats.MessagesDispatched,
			"decode_errors":       udpStats.DecodeErrors,
			"queue_size":          udpStats.QueueSize,
		}
	}

	if h.components.Splitter != nil {
		stats := h.components.Splitter.GetStats()
		components["splitter"] = map[string]interface{}{
			"status":            "running",
			"messages_handled":  stats.MessagesHandled,
			"values_fanned_out": stats.ValuesFannedOut,
		}
	}

	if h.components.Reassembler != nil {
		stats := h.components.Reassembler.GetStats()
		components["reassembler"] = map[string]interface{}{
			"status":             "running",
			"messages_handled":   stats.MessagesHandled,
			"aggregates_emitted": stats.AggregatesEmitted,
			"slots_populated":    stats.SlotsPopulated,
			"value_count":        stats.ValueCount,
		}
	}

	if h.components.Client != nil {
		stats := h.components.Client.GetStats()
		components["sender"] = map[string]interface{}{
			"status":        "running",
			"target":        h.components.Client.Target(),
			"messages_sent": stats.MessagesSent,
			"send_errors":   stats.SendErrors,
		}
	}

	if h.components.Tap != nil {
		stats := h.components.Tap.GetStats()
		components["tap"] = map[string]interface{}{
			"status":             "running",
			"messages_published": stats.MessagesPublished,
			"publish_errors":     stats.PublishErrors,
		}
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    h.service,
			"version": "1.0.0",
		},
		"components": components,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.configView)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
	}

	if h.components.UDPServer != nil {
		stats["udp"] = h.components.UDPServer.GetStatistics()
	}
	if h.components.Splitter != nil {
		stats["splitter"] = h.components.Splitter.GetStats()
	}
	if h.components.Reassembler != nil {
		stats["reassembler"] = h.components.Reassembler.GetStats()
	}
	if h.components.Client != nil {
		stats["sender"] = h.components.Client.GetStats()
	}
	if h.components.Tap != nil {
		stats["tap"] = h.components.Tap.GetStats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleSlots implements the /slots endpoint, showing the current slot table
// of the reassembler.
func (h *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reassembler := h.components.Reassembler
	stats := reassembler.GetStats()

	response := map[string]interface{}{
		"value_count":     stats.ValueCount,
		"slots_populated": stats.SlotsPopulated,
		"slots":           reassembler.SlotValues(),
		"missing_indices": reassembler.MissingIndices(),
		"timestamp":       time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	endpoints := map[string]interface{}{
		"GET /":        "API documentation",
		"GET /health":  "Service health check",
		"GET /config":  "Get service configuration",
		"GET /stats":   "Get service statistics",
		"GET /metrics": "Prometheus metrics",
	}
	if h.components.Reassembler != nil {
		endpoints["GET /slots"] = "Inspect the reassembler slot table"
	}

	apiDoc := map[string]interface{}{
		"service":   h.service,
		"version":   "1.0.0",
		"endpoints": endpoints,
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/vigliensoni/OSC-output-parser/internal/bridge"
	"github.com/vigliensoni/OSC-output-parser/internal/config"
	"github.com/vigliensoni/OSC-output-parser/internal/osc"
)

// nullSender discards everything it is asked to send.
type nullSender struct{}

func (nullSender) Send(address string, args []osc.Argument) error { return nil }

// createReassemblerAPI builds an HTTP server for the reassembler role with
// a slot table of three values.
func createReassemblerAPI(t *testing.T) (*HTTPServer, *bridge.Reassembler) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	m := createTestMetrics()

	reassembler, err := bridge.NewReassembler("/parsed/output-", "/wek/outputs", 3, nullSender{}, logger, m)
	if err != nil {
		t.Fatalf("Failed to create reassembler: %v", err)
	}

	udp := NewUDPServer("127.0.0.1:0", createTestServerConfig(), logger, m)

	h := NewHTTPServer("127.0.0.1:0", "osc-reassembler", config.DefaultReassemblerConfig().Sanitized(),
		Components{UDPServer: udp, Reassembler: reassembler}, logger, m)

	return h, reassembler
}

// doRequest runs one request through the API mux without binding a socket.
func doRequest(t *testing.T, h *HTTPServer, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return body
}

func TestHTTPHealthEndpoint(t *testing.T) {
	h, _ := createReassemblerAPI(t)

	rec := doRequest(t, h, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", body["status"])
	}

	components, ok := body["components"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected components object, got %T", body["components"])
	}
	if _, ok := components["udp_server"]; !ok {
		t.Errorf("Expected udp_server component in health response")
	}
	if _, ok := components["reassembler"]; !ok {
		t.Errorf("Expected reassembler component in health response")
	}
}

func TestHTTPStatsEndpoint(t *testing.T) {
	h, reassembler := createReassemblerAPI(t)

	reassembler.HandleMessage(osc.NewMessage("/parsed/output-1", osc.Float32(0.1)))
	reassembler.HandleMessage(osc.NewMessage("/parsed/output-2", osc.Float32(0.2)))

	rec := doRequest(t, h, http.MethodGet, "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	stats, ok := body["reassembler"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected reassembler stats object, got %T", body["reassembler"])
	}
	if stats["values_stored"] != float64(2) {
		t.Errorf("Expected 2 stored values, got %v", stats["values_stored"])
	}
	if stats["slots_populated"] != float64(2) {
		t.Errorf("Expected 2 populated slots, got %v", stats["slots_populated"])
	}
}

func TestHTTPSlotsEndpoint(t *testing.T) {
	h, reassembler := createReassemblerAPI(t)

	reassembler.HandleMessage(osc.NewMessage("/parsed/output-1", osc.Float32(0.1)))
	reassembler.HandleMessage(osc.NewMessage("/parsed/output-2", osc.Float32(0.2)))

	rec := doRequest(t, h, http.MethodGet, "/slots")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["value_count"] != float64(3) {
		t.Errorf("Expected value count 3, got %v", body["value_count"])
	}
	if body["slots_populated"] != float64(2) {
		t.Errorf("Expected 2 populated slots, got %v", body["slots_populated"])
	}

	missing, ok := body["missing_indices"].([]interface{})
	if !ok || len(missing) != 1 || missing[0] != float64(3) {
		t.Errorf("Expected missing indices [3], got %v", body["missing_indices"])
	}

	slots, ok := body["slots"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected slots object, got %T", body["slots"])
	}
	if slots["1"] != "0.1" {
		t.Errorf("Expected slot 1 to show 0.1, got %v", slots["1"])
	}
}

func TestHTTPSlotsAbsentForSplitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	m := createTestMetrics()

	splitter := bridge.NewSplitter("/wek/outputs", "/parsed/output-", nullSender{}, logger, m)
	h := NewHTTPServer("127.0.0.1:0", "osc-splitter", config.DefaultSplitterConfig().Sanitized(),
		Components{Splitter: splitter}, logger, m)

	rec := doRequest(t, h, http.MethodGet, "/slots")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for splitter role, got %d", rec.Code)
	}
}

func TestHTTPConfigEndpoint(t *testing.T) {
	h, _ := createReassemblerAPI(t)

	rec := doRequest(t, h, http.MethodGet, "/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["value_count"] != float64(5) {
		t.Errorf("Expected default value count 5, got %v", body["value_count"])
	}

	tapView, ok := body["tap"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected tap object, got %T", body["tap"])
	}
	if _, present := tapView["password"]; present {
		t.Errorf("Expected password to be omitted from config view")
	}
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	h, _ := createReassemblerAPI(t)

	rec := doRequest(t, h, http.MethodPost, "/health")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestHTTPRootEndpoint(t *testing.T) {
	h, _ := createReassemblerAPI(t)

	rec := doRequest(t, h, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["service"] != "osc-reassembler" {
		t.Errorf("Expected service osc-reassembler, got %v", body["service"])
	}

	endpoints, ok := body["endpoints"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected endpoints object, got %T", body["endpoints"])
	}
	if _, ok := endpoints["GET /slots"]; !ok {
		t.Errorf("Expected /slots endpoint to be documented for the reassembler role")
	}

	rec = doRequest(t, h, http.MethodGet, "/unknown")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown path, got %d", rec.Code)
	}
}

func TestHTTPMetricsEndpoint(t *testing.T) {
	h, _ := createReassemblerAPI(t)

	rec := doRequest(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Errorf("Expected non-empty metrics exposition")
	}
}

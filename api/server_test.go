package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seenimoa/routerisk/internal/config"
	"github.com/seenimoa/routerisk/internal/metrics"
	"github.com/seenimoa/routerisk/internal/risk"
	"github.com/seenimoa/routerisk/internal/source"
	"github.com/seenimoa/routerisk/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// failingSource always reports an outage.
type failingSource struct{}

func (failingSource) FetchAllActiveIndicators(context.Context) (map[string]models.SourceSnapshot, error) {
	return nil, errors.New("upstream down")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCollector() *source.Collector {
	return source.NewCollector(source.DefaultDescriptors(),
		source.WithFetcher(source.KindSimulated, source.NewSimulatedFetcher(7, 0)),
		source.WithCollectorLogger(quietLogger()),
	)
}

func testServerWith(t *testing.T, src risk.IndicatorSource, sources SourceLister) *Server {
	t.Helper()
	cfg := &config.Config{
		API:     config.APIConfig{Host: "127.0.0.1", Port: 8080, CORSOrigins: []string{"*"}},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
	engine := risk.NewEngine(src, risk.WithLogger(quietLogger()))
	srv := NewServer(cfg, engine, sources, metrics.New(), quietLogger())
	go srv.Hub().Run()
	return srv
}

func testServer(t *testing.T) *Server {
	t.Helper()
	c := newCollector()
	return testServerWith(t, c, c)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// decodeData decodes the envelope's data field into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if v != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, v); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

// ════════════════════════════════════════════════════════════════════
// Health, policy, config
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := doRequest(t, srv, "GET", path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status: got %d, want %d", path, rec.Code, http.StatusOK)
		}

		resp := decodeResponse(t, rec)
		if !resp.Success {
			t.Errorf("%s: expected success=true", path)
		}
		data, ok := resp.Data.(map[string]interface{})
		if !ok {
			t.Fatal("data should be a map")
		}
		if data["status"] != "ok" {
			t.Errorf("status: got %q", data["status"])
		}
		for _, key := range []string{"version", "cache", "ws_clients"} {
			if _, ok := data[key]; !ok {
				t.Errorf("missing %s", key)
			}
		}
	}
}

func TestHandlePolicy(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/policy", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var entries []PolicyEntry
	decodeData(t, rec, &entries)
	if len(entries) != 4 {
		t.Fatalf("entries: got %d, want 4", len(entries))
	}
	var total float64
	for _, e := range entries {
		total += e.Share
	}
	if total < 0.999 || total > 1.001 {
		t.Errorf("shares sum to %v, want 1", total)
	}
	if entries[0].Category != models.CategorySupplyChain || entries[0].Share != 0.40 {
		t.Errorf("first entry: got %+v", entries[0])
	}
}

func TestHandleGetConfig(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var cfg ConfigResponse
	decodeData(t, rec, &cfg)
	if cfg.API.Port != 8080 {
		t.Errorf("api.port: got %d, want 8080", cfg.API.Port)
	}
}

func TestHandleGetConfig_NoConfig(t *testing.T) {
	engine := risk.NewEngine(failingSource{}, risk.WithLogger(quietLogger()))
	srv := NewServer(nil, engine, nil, nil, quietLogger())
	rec := doRequest(t, srv, "GET", "/api/v1/config", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Factors
// ════════════════════════════════════════════════════════════════════

func TestHandleGetFactors_Empty(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/factors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var fr FactorsResponse
	decodeData(t, rec, &fr)
	if fr.Factors == nil || len(fr.Factors) != 0 {
		t.Errorf("factors: got %v, want empty list", fr.Factors)
	}
	if fr.Cache.Populated {
		t.Error("cache should not be populated")
	}
}

func TestHandlePostFactors_Refresh(t *testing.T) {
	srv := testServer(t)
	body := `{"refresh":true,"routes":[
		{"id":"r1","eta_days":20,"eta_status":"delayed","volume":8000},
		{"id":"r2","eta_days":10,"eta_status":"on-time","volume":4000}]}`
	rec := doRequest(t, srv, "POST", "/api/v1/factors", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var fr FactorsResponse
	decodeData(t, rec, &fr)
	if fr.Outcome != risk.OutcomeLive {
		t.Errorf("outcome: got %q, want live", fr.Outcome)
	}
	if len(fr.Factors) < 2 {
		t.Fatalf("factors: got %d", len(fr.Factors))
	}
	if fr.Stats == nil || fr.Stats.DelayedPct != 50 {
		t.Errorf("stats: got %+v", fr.Stats)
	}
	if !fr.Cache.Populated || !fr.Cache.Fresh {
		t.Errorf("cache: got %+v", fr.Cache)
	}

	// Cached factors are now visible through GET.
	rec = doRequest(t, srv, "GET", "/api/v1/factors", "")
	var cached FactorsResponse
	decodeData(t, rec, &cached)
	if len(cached.Factors) == 0 {
		t.Error("expected cached factors after refresh")
	}
}

func TestHandlePostFactors_Fallback(t *testing.T) {
	srv := testServerWith(t, failingSource{}, nil)
	rec := doRequest(t, srv, "POST", "/api/v1/factors", `{"refresh":true,"routes":[{"eta_days":12,"volume":3000}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var fr FactorsResponse
	decodeData(t, rec, &fr)
	if fr.Outcome != risk.OutcomeFallback {
		t.Errorf("outcome: got %q, want fallback", fr.Outcome)
	}
	want := risk.DefaultTopExternalFactors + 2
	if len(fr.Factors) != want {
		t.Fatalf("factors: got %d, want %d", len(fr.Factors), want)
	}
	if last := fr.Factors[want-1]; last.Name != "Volume Complexity" {
		t.Errorf("route-derived factors should follow the fallback table, last is %q", last.Name)
	}
}

func TestHandlePostFactors_InvalidRoute(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/factors", `{"routes":[{"eta_days":-1,"volume":10}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestHandleClearCache(t *testing.T) {
	srv := testServer(t)
	doRequest(t, srv, "POST", "/api/v1/factors", `{"refresh":true,"routes":[]}`)

	rec := doRequest(t, srv, "DELETE", "/api/v1/cache", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if snap := srv.engine.Snapshot(); snap != nil {
		t.Error("cache should be empty after clear")
	}

	// Clearing twice is harmless.
	rec = doRequest(t, srv, "DELETE", "/api/v1/cache", "")
	if rec.Code != http.StatusOK {
		t.Errorf("second clear status: got %d", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Scoring
// ════════════════════════════════════════════════════════════════════

func TestHandleScore_EmptyCache(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/score", `{"route":{"id":"r1","eta_days":14,"volume":5000}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var sr ScoreResponse
	decodeData(t, rec, &sr)
	if sr.Score != 16 {
		t.Errorf("score: got %d, want 16", sr.Score)
	}
	if sr.Label != "low" {
		t.Errorf("label: got %q, want low", sr.Label)
	}
	if !sr.Breakdown.UsedDefaultImpact {
		t.Error("expected default external impact on empty cache")
	}
	if sr.Outcome != "" {
		t.Errorf("sync score should carry no outcome, got %q", sr.Outcome)
	}
}

func TestHandleScore_Fresh(t *testing.T) {
	srv := testServerWith(t, failingSource{}, nil)
	rec := doRequest(t, srv, "POST", "/api/v1/score", `{"fresh":true,"route":{"eta_days":30,"volume":9000}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var sr ScoreResponse
	decodeData(t, rec, &sr)
	if sr.Outcome != risk.OutcomeFallback {
		t.Errorf("outcome: got %q, want fallback", sr.Outcome)
	}
	if sr.Score < 0 || sr.Score > 100 {
		t.Errorf("score out of range: %d", sr.Score)
	}
	if sr.Breakdown.UsedDefaultImpact {
		t.Error("fallback factors should drive the external impact")
	}
}

func TestHandleScore_InvalidJSON(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/score", "not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Success || resp.Error == "" {
		t.Errorf("expected error response, got %+v", resp)
	}
}

func TestHandleScore_InvalidRoute(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative volume", `{"route":{"eta_days":5,"volume":-3}}`},
		{"negative eta", `{"route":{"eta_days":-5,"volume":3}}`},
		{"unknown status", `{"route":{"eta_days":5,"volume":3,"eta_status":"lost"}}`},
	}

	srv := testServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, "POST", "/api/v1/score", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleScoreBatch(t *testing.T) {
	srv := testServer(t)
	body := `{"routes":[
		{"id":"a","eta_days":14,"volume":5000},
		{"id":"b","eta_days":60,"eta_status":"delayed","volume":50000}]}`
	rec := doRequest(t, srv, "POST", "/api/v1/score/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var br BatchScoreResponse
	decodeData(t, rec, &br)
	if len(br.Scores) != 2 {
		t.Fatalf("scores: got %d, want 2", len(br.Scores))
	}
	if br.Scores[0].Route.ID != "a" || br.Scores[0].Score != 16 {
		t.Errorf("scores[0]: got %+v", br.Scores[0])
	}
	if br.Scores[1].Score <= br.Scores[0].Score {
		t.Errorf("longer, larger route should score higher: %d vs %d", br.Scores[1].Score, br.Scores[0].Score)
	}
	if br.Stats.DelayedPct != 50 {
		t.Errorf("delayed percent: got %v", br.Stats.DelayedPct)
	}
}

func TestHandleScoreBatch_Empty(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/score/batch", `{"routes":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestHandleReport(t *testing.T) {
	srv := testServer(t)
	body := `{"refresh":true,"routes":[{"id":"sh-rt","origin":"Shanghai","destination":"Rotterdam","eta_days":32,"volume":12000}]}`

	rec := doRequest(t, srv, "POST", "/api/v1/report", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "sh-rt") {
		t.Error("report missing route")
	}

	rec = doRequest(t, srv, "POST", "/api/v1/report?format=text", body)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "ROUTES") {
		t.Error("text report missing routes section")
	}
}

func TestHandleReport_BadRequests(t *testing.T) {
	srv := testServer(t)
	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown format", "/api/v1/report?format=pdf", `{"routes":[{"eta_days":1,"volume":1}]}`},
		{"no routes", "/api/v1/report", `{"routes":[]}`},
		{"invalid route", "/api/v1/report", `{"routes":[{"eta_days":-1,"volume":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, "POST", tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", rec.Code)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Sources and metrics
// ════════════════════════════════════════════════════════════════════

func TestHandleSources(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/sources", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var infos []source.Info
	decodeData(t, rec, &infos)
	if len(infos) != 4 {
		t.Fatalf("sources: got %d, want 4", len(infos))
	}
	if infos[0].ID != "economic-1" {
		t.Errorf("sources should be sorted by id, first is %q", infos[0].ID)
	}
}

func TestHandleSources_NoLister(t *testing.T) {
	srv := testServerWith(t, failingSource{}, nil)
	rec := doRequest(t, srv, "GET", "/api/v1/sources", "")
	var infos []source.Info
	decodeData(t, rec, &infos)
	if infos == nil || len(infos) != 0 {
		t.Errorf("sources: got %v, want empty list", infos)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	doRequest(t, srv, "POST", "/api/v1/factors", `{"refresh":true,"routes":[]}`)

	rec := doRequest(t, srv, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"routerisk_refresh_total", "routerisk_cached_factors"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, APIResponse{Success: true, Data: "ok"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status: got %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "bad input")

	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.Error != "bad input" {
		t.Errorf("Error: got %q", resp.Error)
	}
}

func TestValidateRoutes_TooMany(t *testing.T) {
	routes := make([]models.Route, maxBatchRoutes+1)
	if err := validateRoutes(routes); err == nil {
		t.Error("expected error for oversized batch")
	}
	if err := validateRoutes(routes[:maxBatchRoutes]); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDecodeBody_TooLarge(t *testing.T) {
	big := bytes.Repeat([]byte(" "), 9<<20)
	big = append(big, []byte(`{"routes":[]}`)...)
	req := httptest.NewRequest("POST", "/", bytes.NewReader(big))
	rec := httptest.NewRecorder()

	var v RoutesRequest
	if decodeBody(rec, req, &v) {
		t.Error("expected oversized body to be rejected")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket Hub tests
// ════════════════════════════════════════════════════════════════════

func TestWSHub_RegisterAndUnregister(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	client := &WSClient{hub: hub, send: make(chan WSMessage, 256)}

	hub.Register(client)
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 1 {
		t.Errorf("after register: ClientCount=%d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister: ClientCount=%d, want 0", hub.ClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestWSHub_Broadcast(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	client1 := &WSClient{hub: hub, send: make(chan WSMessage, 256)}
	client2 := &WSClient{hub: hub, send: make(chan WSMessage, 256)}
	hub.Register(client1)
	hub.Register(client2)

	hub.Broadcast(WSMessage{Type: EventCacheCleared})

	for i, c := range []*WSClient{client1, client2} {
		select {
		case got := <-c.send:
			if got.Type != EventCacheCleared {
				t.Errorf("client%d got type=%q", i+1, got.Type)
			}
		case <-time.After(time.Second):
			t.Errorf("client%d did not receive message", i+1)
		}
	}
}

func TestWSHub_DropsSlowClient(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	slow := &WSClient{hub: hub, send: make(chan WSMessage)}
	hub.Register(slow)
	hub.Broadcast(WSMessage{Type: "test"})

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("slow client not dropped, ClientCount=%d", hub.ClientCount())
	}
}

func TestWSHub_BroadcastDoesNotBlock(t *testing.T) {
	hub := NewWSHub()

	done := make(chan bool)
	go func() {
		for i := 0; i < 300; i++ {
			hub.Broadcast(WSMessage{Type: "test"})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked when buffer was full")
	}
}

func TestWSHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	var wg sync.WaitGroup
	numClients := 50
	clients := make([]*WSClient, numClients)
	for i := range clients {
		clients[i] = &WSClient{hub: hub, send: make(chan WSMessage, 8)}
	}

	for _, c := range clients {
		wg.Add(1)
		go func(c *WSClient) {
			defer wg.Done()
			hub.Register(c)
		}(c)
	}
	wg.Wait()
	if n := hub.ClientCount(); n != numClients {
		t.Errorf("after all registered: ClientCount=%d, want %d", n, numClients)
	}

	for _, c := range clients {
		wg.Add(1)
		go func(c *WSClient) {
			defer wg.Done()
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()
	time.Sleep(10 * time.Millisecond)
	if n := hub.ClientCount(); n != 0 {
		t.Errorf("after all unregistered: ClientCount=%d, want 0", n)
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket end-to-end
// ════════════════════════════════════════════════════════════════════

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *WSHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount=%d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_PingAndStatus(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn := dialWS(t, ts)
	if err := conn.WriteJSON(WSMessage{Type: "ping"}); err != nil {
		t.Fatal(err)
	}
	if msg := readWS(t, conn); msg.Type != "pong" {
		t.Errorf("got %q, want pong", msg.Type)
	}

	if err := conn.WriteJSON(WSMessage{Type: "status"}); err != nil {
		t.Fatal(err)
	}
	msg := readWS(t, conn)
	if msg.Type != "status" {
		t.Fatalf("got %q, want status", msg.Type)
	}
	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("status data: got %T", msg.Data)
	}
	if data["populated"] != false {
		t.Errorf("populated: got %v", data["populated"])
	}
}

func TestWebSocket_RefreshAndClearEvents(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	conn := dialWS(t, ts)
	waitForClients(t, srv.Hub(), 1)

	resp, err := http.Post(ts.URL+"/api/v1/factors", "application/json", strings.NewReader(`{"refresh":true,"routes":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	msg := readWS(t, conn)
	if msg.Type != EventFactorsRefreshed {
		t.Fatalf("got %q, want %s", msg.Type, EventFactorsRefreshed)
	}
	data, _ := msg.Data.(map[string]interface{})
	if n, _ := data["factors"].(float64); n == 0 {
		t.Errorf("factors count: got %v", data["factors"])
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/cache", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if msg := readWS(t, conn); msg.Type != EventCacheCleared {
		t.Errorf("got %q, want %s", msg.Type, EventCacheCleared)
	}
}

func TestNotifyRefresh_Failure(t *testing.T) {
	srv := testServer(t)
	client := &WSClient{hub: srv.Hub(), send: make(chan WSMessage, 4)}
	srv.Hub().Register(client)

	srv.NotifyRefresh(nil, fmt.Errorf("all sources failed"))
	srv.NotifyRefresh(&risk.Snapshot{}, nil)

	select {
	case msg := <-client.send:
		if msg.Type != EventRefreshFailed {
			t.Errorf("got %q, want %s", msg.Type, EventRefreshFailed)
		}
	case <-time.After(time.Second):
		t.Fatal("no refresh_failed event")
	}
	select {
	case msg := <-client.send:
		t.Errorf("unexpected event %q for successful refresh", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

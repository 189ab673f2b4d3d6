package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/promopipe/go-offers-backend/internal/config"
	"github.com/promopipe/go-offers-backend/internal/repo"
	"github.com/promopipe/go-offers-backend/internal/scraper"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:routerdb?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	deps := Deps{
		DB:      newTestDB(t),
		Scraper: scraper.NewClient("http://127.0.0.1:0", nil),
	}
	RegisterRoutes(r, deps, cfg)
	return r
}

func TestRegisterRoutes_Health_Metrics_Fallbacks(t *testing.T) {
	r := newTestRouter(t, testConfig())

	// Health
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health -> %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected ACAO *, got %q", got)
	}

	// Metrics endpoint is mounted
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics -> %d", w.Code)
	}

	// NoRoute fallback uses the JSON error envelope
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope -> %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON 404 body: %v", err)
	}
	if body["ok"] != false || body["error"] != "not_found" {
		t.Fatalf("unexpected 404 body: %v", body)
	}

	// NoMethod fallback
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /health -> %d", w.Code)
	}
}

func TestRegisterRoutes_WebhookIngestsThroughStack(t *testing.T) {
	r := newTestRouter(t, testConfig())

	// Malformed JSON is rejected before the service runs.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{nope"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed webhook -> %d; body=%s", w.Code, w.Body.String())
	}

	// A well-formed gateway delivery is ingested end to end.
	payload := map[string]any{
		"data": map[string]any{
			"instanceId": "inst-1",
			"key": map[string]any{
				"remoteJid": "556299999999-group@g.us",
				"id":        "MSG-ROUTER-1",
			},
			"message": map[string]any{
				"conversation": "Produto Teste por R$ 99,90 https://mercadolivre.com/sec/abc123",
			},
		},
	}
	raw, _ := json.Marshal(payload)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook -> %d; body=%s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["ok"] != true || body["duplicate"] != false {
		t.Fatalf("unexpected webhook body: %v", body)
	}

	// Same delivery again hashes identically and is dropped.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate webhook -> %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["duplicate"] != true {
		t.Fatalf("expected duplicate=true, got %v", body)
	}
}

func TestRegisterRoutes_GatewayUnconfiguredEndpoints(t *testing.T) {
	r := newTestRouter(t, testConfig())

	// Instance sync needs the gateway; with none injected it fails cleanly
	// instead of panicking.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/instancias/sync", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("POST /instancias/sync -> %d; body=%s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["ok"] != false {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRegisterRoutes_CORSAllowlist(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://painel.example.com"}
	r := newTestRouter(t, cfg)

	// Allowed origin is echoed back
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://painel.example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://painel.example.com" {
		t.Fatalf("expected origin echoed, got %q", got)
	}

	// Unknown origin is not
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "https://evil.example.com" {
		t.Fatalf("unexpected ACAO for disallowed origin: %q", got)
	}
}

func TestGroupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if g := groupWithPrefix(r, "/"); g.BasePath() != "/" {
		t.Fatalf("root prefix base path = %q", g.BasePath())
	}
	if g := groupWithPrefix(r, "/api/v1"); g.BasePath() != "/api/v1" {
		t.Fatalf("custom prefix base path = %q", g.BasePath())
	}
}

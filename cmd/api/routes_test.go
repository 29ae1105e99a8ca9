package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"contact-intake/internal/config"
	"contact-intake/internal/ratelimit"
	"contact-intake/internal/submissionlog"
	"contact-intake/pkg/logger"
	"contact-intake/pkg/utils"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "routes.db") + "?_time_format=sqlite"
	db, err := utils.OpenDatabase(context.Background(), utils.DriverSQLite, dsn, utils.PoolConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := submissionlog.Migrate(db.DB, utils.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		Auth:      config.AuthConfig{JWTSecret: "routes-test-secret"},
		RateLimit: config.RateLimitConfig{PerHour: 3},
		Retention: config.RetentionConfig{Days: 30, Schedule: "@daily"},
	}
	a, err := build(cfg, db, ratelimit.NewMemoryStore(), logger.Discard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(a.close)

	r := gin.New()
	registerRoutes(r, a, db)
	return r
}

func TestRoutes_Health(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestRoutes_FormTokenIsPublic(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/contact/token", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tok, _ := body["token"].(string); tok == "" {
		t.Fatalf("expected token in %v", body)
	}
}

func TestRoutes_AdminRequiresToken(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/admin/submissions", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

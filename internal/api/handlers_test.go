package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"undergame/internal/config"

	"github.com/gin-gonic/gin"
)

func TestHealthHandler_ReturnsOk(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", healthHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("expected response to contain 'ok', got: %s", w.Body.String())
	}
}

func TestConfigHandler_ReturnsConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Oracle.Delegate.Name = "delegate-model"
	cfg.Oracle.Judge.Name = "judge-model"
	cfg.Dialogue.SummaryTrigger = 30
	cfg.Server.JWTSecret = "supersecret"

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/config", configHandler(cfg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/config", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "delegate-model") {
		t.Errorf("expected response to contain oracle model names, got: %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "supersecret") {
		t.Errorf("config response must not leak the JWT secret: %s", w.Body.String())
	}
}

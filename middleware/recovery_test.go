package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/leonclem/one-minute-menu-sub003/config"
)

func TestRecoveryReturns500WithRequestID(t *testing.T) {
	buf := captureLogs(t)

	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/m/demo-cafe", func(c *gin.Context) {
		panic("nil menu dereference")
	})

	req := httptest.NewRequest("GET", "/m/demo-cafe", nil)
	req.Header.Set("X-Request-ID", "req-panic-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "req-panic-1") {
		t.Error("expected request id echoed in the error body")
	}
	out := buf.String()
	if !strings.Contains(out, "panic recovered") {
		t.Errorf("expected panic entry in log: %s", out)
	}
	if !strings.Contains(out, "request_id=req-panic-1") {
		t.Errorf("expected request id in log: %s", out)
	}
}

func TestRecoveryLogsAuthenticatedUser(t *testing.T) {
	buf := captureLogs(t)
	cfg := &config.AuthConfig{JWTSecret: "test-secret-key", TokenExpireHours: 1}

	router := gin.New()
	router.Use(RequestID(), Recovery(), AuthMiddleware(cfg))
	router.DELETE("/api/menus/:id", func(c *gin.Context) {
		panic("store gone away")
	})

	req := httptest.NewRequest("DELETE", "/api/menus/m1", nil)
	req.Header.Set("Authorization", bearerToken(t, cfg, "user-42"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(buf.String(), "user_id=user-42") {
		t.Errorf("expected user id in panic log: %s", buf.String())
	}
}

func TestRecoveryLeavesNormalRequestsAlone(t *testing.T) {
	router := gin.New()
	router.Use(Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/leonclem/one-minute-menu-sub003/pkg/logger"
)

func TestRequestIDGenerated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/m/demo-cafe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})

	req := httptest.NewRequest("GET", "/m/demo-cafe", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated X-Request-ID header")
	}
}

func TestRequestIDHonorsCallerID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.POST("/m/demo-cafe/scan", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest("POST", "/m/demo-cafe/scan", nil)
	req.Header.Set("X-Request-ID", "scan-trace-7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "scan-trace-7" {
		t.Errorf("X-Request-ID = %q, want %q", got, "scan-trace-7")
	}
}

func TestRequestIDReachesHandlerLogs(t *testing.T) {
	buf := captureLogs(t)

	router := gin.New()
	router.Use(RequestID())
	router.POST("/m/demo-cafe/scan", func(c *gin.Context) {
		logger.Info(c.Request.Context(), "scan recorded", "source", "qr")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest("POST", "/m/demo-cafe/scan", nil)
	req.Header.Set("X-Request-ID", "scan-trace-9")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if !strings.Contains(buf.String(), "request_id=scan-trace-9") {
		t.Errorf("expected request id on handler log entry: %s", buf.String())
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if GetRequestID(c) != "" {
		t.Error("expected empty id when middleware never ran")
	}
}

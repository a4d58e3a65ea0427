package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/leonclem/one-minute-menu-sub003/config"
	"github.com/leonclem/one-minute-menu-sub003/middleware"
	"github.com/leonclem/one-minute-menu-sub003/service"
)

// testEnv wires the handlers against the in-memory store the same way the
// server binary wires them against Postgres.
type testEnv struct {
	store  *service.MemStore
	cfg    *config.Config
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenExpireHours = 1
	cfg.Billing.WebhookSecret = "whsec-test"

	store := service.NewMemStore()

	authHandler := NewAuthHandler(store, cfg)
	menuHandler := NewMenuHandler(store, nil)
	itemHandler := NewItemHandler(store)
	jobHandler := NewJobHandler(store, nil)
	analyticsHandler := NewAnalyticsHandler(store)
	billingHandler := NewBillingHandler(store, cfg)

	r := gin.New()

	r.POST("/api/auth/register", authHandler.Register)
	r.POST("/api/auth/login", authHandler.Login)

	r.GET("/m/:slug", menuHandler.PublicBySlug)
	r.POST("/m/:slug/scan", analyticsHandler.RecordScan)
	r.POST("/webhooks/billing", billingHandler.HandleWebhook)

	api := r.Group("/api", middleware.AuthMiddleware(&cfg.Auth))
	{
		api.GET("/auth/me", authHandler.GetCurrentUser)

		api.POST("/menus", menuHandler.Create)
		api.GET("/menus", menuHandler.List)
		api.GET("/menus/:id", menuHandler.Get)
		api.PUT("/menus/:id", menuHandler.Update)
		api.DELETE("/menus/:id", menuHandler.Delete)
		api.POST("/menus/:id/publish", menuHandler.Publish)
		api.POST("/menus/:id/unpublish", menuHandler.Unpublish)

		api.POST("/menus/:id/items", itemHandler.Create)
		api.PUT("/menus/:id/items/:item_id", itemHandler.Update)
		api.DELETE("/menus/:id/items/:item_id", itemHandler.Delete)
		api.POST("/menus/:id/migrate-categories", itemHandler.MigrateCategories)
		api.GET("/menus/:id/analytics", analyticsHandler.GetScanStats)

		api.POST("/extraction/jobs", jobHandler.Submit)
		api.GET("/extraction/jobs/:id", jobHandler.Get)

		api.GET("/billing/purchases", billingHandler.ListPurchases)
	}

	return &testEnv{store: store, cfg: cfg, router: r}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T, email string) (token, userID string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":           email,
		"password":        "hunter2hunter2",
		"restaurant_name": "Testaurant",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", w.Code, w.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse register response: %v", err)
	}
	return resp.Token, resp.UserID
}

func (e *testEnv) createMenu(t *testing.T, token, name string) map[string]any {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/menus", token, gin.H{"name": name})
	if w.Code != http.StatusCreated {
		t.Fatalf("create menu returned %d: %s", w.Code, w.Body.String())
	}
	var menu map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &menu); err != nil {
		t.Fatalf("parse menu: %v", err)
	}
	return menu
}

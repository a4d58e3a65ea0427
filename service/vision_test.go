package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leonclem/one-minute-menu-sub003/config"
	"github.com/leonclem/one-minute-menu-sub003/model"
	"github.com/leonclem/one-minute-menu-sub003/pkg/retry"
)

func visionTestConfig(apiURL string) *config.VisionConfig {
	return &config.VisionConfig{
		APIURL:  apiURL,
		APIKey:  "test-key",
		Model:   "gpt-4o",
		Timeout: config.Duration(5 * time.Second),
	}
}

// fakeImageServer serves a small PNG-ish payload for download
func fakeImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	}))
}

func TestAnalyzeMenuImage(t *testing.T) {
	imageServer := fakeImageServer(t)
	defer imageServer.Close()

	resultJSON := `{"menu":{"categories":[{"name":"Mains","items":[{"name":"Burger","price":9.5,"confidence":0.9}],"confidence":0.9}]}}`

	providerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Expected Authorization header")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("Expected model gpt-4o, got %s", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Errorf("Expected 2 messages, got %d", len(req.Messages))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": resultJSON}},
			},
		})
	}))
	defer providerServer.Close()

	svc := NewVisionService(visionTestConfig(providerServer.URL))
	raw, err := svc.AnalyzeMenuImage(context.Background(), imageServer.URL+"/menu.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var result model.StructuredMenuResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("Result is not valid JSON: %v", err)
	}
	if len(result.Menu.Categories) != 1 {
		t.Fatalf("Expected 1 category, got %d", len(result.Menu.Categories))
	}
	if result.Menu.Categories[0].Items[0].Name != "Burger" {
		t.Errorf("Expected Burger, got %s", result.Menu.Categories[0].Items[0].Name)
	}
}

func TestAnalyzeMenuImageFencedJSON(t *testing.T) {
	imageServer := fakeImageServer(t)
	defer imageServer.Close()

	fenced := "```json\n{\"menu\":{\"categories\":[{\"name\":\"Drinks\",\"items\":[],\"confidence\":1}]}}\n```"

	providerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": fenced}},
			},
		})
	}))
	defer providerServer.Close()

	svc := NewVisionService(visionTestConfig(providerServer.URL))
	raw, err := svc.AnalyzeMenuImage(context.Background(), imageServer.URL+"/menu.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(string(raw), "Drinks") {
		t.Errorf("Expected fenced JSON unwrapped, got %s", raw)
	}
}

func TestAnalyzeMenuImageProviderRateLimit(t *testing.T) {
	imageServer := fakeImageServer(t)
	defer imageServer.Close()

	providerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer providerServer.Close()

	svc := NewVisionService(visionTestConfig(providerServer.URL))
	_, err := svc.AnalyzeMenuImage(context.Background(), imageServer.URL+"/menu.png")
	if err == nil {
		t.Fatal("Expected error")
	}
	if retry.CodeOf(err) != retry.CodeProviderRate {
		t.Errorf("Expected code %s, got %s (err: %v)", retry.CodeProviderRate, retry.CodeOf(err), err)
	}
	if retry.IsTransient(err) {
		t.Error("Provider rate limit must be terminal")
	}
}

func TestAnalyzeMenuImageProviderQuota(t *testing.T) {
	imageServer := fakeImageServer(t)
	defer imageServer.Close()

	providerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`))
	}))
	defer providerServer.Close()

	svc := NewVisionService(visionTestConfig(providerServer.URL))
	_, err := svc.AnalyzeMenuImage(context.Background(), imageServer.URL+"/menu.png")
	if retry.CodeOf(err) != retry.CodeProviderQuota {
		t.Errorf("Expected code %s, got %v", retry.CodeProviderQuota, err)
	}
}

func TestAnalyzeMenuImageInvalidJSON(t *testing.T) {
	imageServer := fakeImageServer(t)
	defer imageServer.Close()

	providerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Sorry, I cannot read this menu."}},
			},
		})
	}))
	defer providerServer.Close()

	svc := NewVisionService(visionTestConfig(providerServer.URL))
	_, err := svc.AnalyzeMenuImage(context.Background(), imageServer.URL+"/menu.png")
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("Expected invalid JSON error, got %v", err)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

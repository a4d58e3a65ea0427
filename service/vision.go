package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/leonclem/one-minute-menu-sub003/config"
	"github.com/leonclem/one-minute-menu-sub003/pkg/retry"
)

// VisionService turns a menu photograph into structured category/item JSON
// using a vision-capable chat completion provider.
type VisionService struct {
	config     *config.VisionConfig
	httpClient *http.Client
}

func NewVisionService(cfg *config.VisionConfig) *VisionService {
	return &VisionService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Std(),
		},
	}
}

const extractionSystemPrompt = `You are an assistant that reads photographs of restaurant menus and returns structured JSON. Respond with exactly this shape and nothing else:
{
  "menu": {
    "categories": [
      {
        "name": "Category name",
        "items": [
          {"name": "Dish name", "price": 9.50, "description": "", "confidence": 0.9}
        ],
        "subcategories": [],
        "confidence": 0.9
      }
    ]
  },
  "uncertain_items": [
    {"raw_text": "text you could not classify", "reason": "why", "confidence": 0.4, "suggested_category": "", "suggested_price": 0}
  ],
  "superfluous_text": ["opening hours, addresses, slogans"]
}
Prices are plain non-negative numbers with at most 2 decimal places. Nest subcategories where the menu nests them. Put text you cannot confidently classify as a priced menu item into uncertain_items instead of guessing. Do not add explanations outside the JSON.`

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// AnalyzeMenuImage downloads the image, sends it to the provider, and returns
// the raw structured-result JSON. Validation against the result schema is the
// caller's job; this layer only guarantees syntactically valid JSON.
func (s *VisionService) AnalyzeMenuImage(ctx context.Context, imageURL string) (json.RawMessage, error) {
	dataURL, err := s.downloadAndEncodeImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	reqBody := chatRequest{
		Model: s.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: []map[string]any{
				{"type": "text", "text": "Extract this menu."},
				{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
			}},
		},
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyProviderError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	content := stripCodeFences(result.Choices[0].Message.Content)

	var parsed json.RawMessage
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("provider returned invalid JSON: %w", err)
	}

	return parsed, nil
}

// classifyProviderError maps provider failures onto the shared error
// taxonomy so quota and rate-limit problems surface distinctly.
func classifyProviderError(resp *http.Response) error {
	apiErr := retry.FromResponse(resp)

	var body struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	_ = json.Unmarshal(apiErr.Body, &body)

	switch {
	case body.Error.Code == "insufficient_quota" || body.Error.Type == "insufficient_quota":
		apiErr.Code = retry.CodeProviderQuota
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Code = retry.CodeProviderRate
	}
	if body.Error.Message != "" {
		apiErr.Message = body.Error.Message
	}

	return apiErr
}

func (s *VisionService) downloadAndEncodeImage(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", retry.FromResponse(resp)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image data: %w", err)
	}

	imageType := http.DetectContentType(imageData)
	encoded := base64.StdEncoding.EncodeToString(imageData)
	return "data:" + imageType + ";base64," + encoded, nil
}

var codeFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// stripCodeFences unwraps a fenced JSON block if the provider added one
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if m := codeFenceRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return content
}

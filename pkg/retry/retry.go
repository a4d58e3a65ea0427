package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// Application-level error codes carried in API error bodies. These are
// terminal: retrying cannot fix them, the user has to act.
const (
	CodePlanLimit     = "PLAN_LIMIT_EXCEEDED"
	CodeRateLimited   = "RATE_LIMITED"
	CodeProviderQuota = "PROVIDER_QUOTA_EXCEEDED"
	CodeProviderRate  = "PROVIDER_RATE_LIMITED"
)

// Config controls retry behavior for a unit of work
type Config struct {
	Retries   int           // retries after the first attempt
	BaseDelay time.Duration // first backoff delay
	MaxDelay  time.Duration // backoff ceiling
	Timeout   time.Duration // per-attempt timeout, 0 = none
}

// DefaultConfig returns the retry settings used for API calls
func DefaultConfig() Config {
	return Config{
		Retries:   3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  8 * time.Second,
		Timeout:   30 * time.Second,
	}
}

// APIError is a classified HTTP failure exposing the status and response body
// so callers can branch on application-level error codes.
type APIError struct {
	Status  int
	Code    string
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status %d, code %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// Transient reports whether retrying the request could succeed. Known
// application codes are terminal regardless of HTTP status.
func (e *APIError) Transient() bool {
	switch e.Code {
	case CodePlanLimit, CodeRateLimited, CodeProviderQuota, CodeProviderRate:
		return false
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// errorBody is the wire shape of an API error response. Both the flat and
// the nested {"error": {...}} envelope are accepted.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FromResponse builds an APIError from a non-2xx response, consuming the body
func FromResponse(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{
		Status:  resp.StatusCode,
		Message: http.StatusText(resp.StatusCode),
		Body:    body,
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Error != nil {
			eb.Code, eb.Message = eb.Error.Code, eb.Error.Message
		}
		if eb.Code != "" {
			apiErr.Code = eb.Code
		}
		if eb.Message != "" {
			apiErr.Message = eb.Message
		}
	}

	return apiErr
}

// IsTransient classifies an error as retryable: network faults, timeouts,
// and HTTP 429/5xx without a terminal application code.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// url.Error wraps transport failures; unwrap handled by errors.As above,
	// anything else (encoding, validation) is terminal
	return false
}

// CodeOf returns the application-level error code carried by err, if any
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// Do executes fn with bounded exponential backoff. Each attempt runs under
// its own timeout; exceeding it counts as a transient failure. Terminal
// failures propagate immediately. After exhausting retries the last error is
// returned unchanged so callers can still classify it.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(cfg, attempt)); err != nil {
				return zero, err
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}

		result, err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, lastErr
}

// backoff computes the jittered delay before the given attempt (1-based)
func backoff(cfg Config, attempt int) time.Duration {
	base := cfg.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base << (attempt - 1)
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	// Jitter in [delay/2, delay)
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leonclem/one-minute-menu-sub003/model"
	"github.com/leonclem/one-minute-menu-sub003/pkg/retry"
)

// JobState is the client-side view of an extraction job's lifecycle:
// idle -> queued -> processing -> {completed | failed}
type JobState string

const (
	StateIdle       JobState = "idle"
	StateQueued     JobState = model.JobQueued
	StateProcessing JobState = model.JobProcessing
	StateCompleted  JobState = model.JobCompleted
	StateFailed     JobState = model.JobFailed
)

// JobErrorKind distinguishes why a job did not produce a usable result
type JobErrorKind string

const (
	// KindJobFailed is a genuine failed status reported by the server
	KindJobFailed JobErrorKind = "job_failed"
	// KindTimeout is the client-side polling ceiling being exceeded
	KindTimeout JobErrorKind = "timeout"
	// KindIncompleteResult is a completed status whose payload lacks the
	// expected structured shape even after the re-check
	KindIncompleteResult JobErrorKind = "incomplete_result"
)

// JobError is a terminal extraction failure with a user-facing message.
// Whatever happens, the caller still has the manual-entry path.
type JobError struct {
	Kind    JobErrorKind
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("extraction %s: %s", e.Kind, e.Message)
}

const (
	defaultPollInterval = 2 * time.Second
	defaultPollCeiling  = 4 * time.Minute
	defaultRecheckDelay = 1500 * time.Millisecond
)

// Client drives the extraction workflow against the API: submit a job, poll
// it to a terminal state, and bulk-add the reconciled drafts. It is
// deliberately free of any UI concerns.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retryCfg   retry.Config

	// PollInterval is the delay between status polls
	PollInterval time.Duration
	// PollCeiling is the hard wall-clock cap on polling; past it the job
	// is failed locally regardless of what the server would report
	PollCeiling time.Duration
	// RecheckDelay is the single grace delay before declaring a completed
	// job's missing result payload incomplete
	RecheckDelay time.Duration

	// OnTransition, when set, observes each state change of WaitForResult
	OnTransition func(JobState)
}

// NewClient creates an extraction client for the given API base URL.
// token is the bearer token of the authenticated user.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		retryCfg:     retry.DefaultConfig(),
		PollInterval: defaultPollInterval,
		PollCeiling:  defaultPollCeiling,
		RecheckDelay: defaultRecheckDelay,
	}
}

// SubmitJob submits an uploaded image for extraction. On success the job
// starts in the queued state.
func (c *Client) SubmitJob(ctx context.Context, menuID, imageURL string) (*model.ExtractionJob, error) {
	payload := map[string]string{
		"menu_id":   menuID,
		"image_url": imageURL,
	}
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) (*model.ExtractionJob, error) {
		var job model.ExtractionJob
		if err := c.doJSON(ctx, http.MethodPost, "/api/extraction/jobs", payload, &job); err != nil {
			return nil, err
		}
		return &job, nil
	})
}

// PollJob reads the current state of a job once
func (c *Client) PollJob(ctx context.Context, jobID string) (*model.ExtractionJob, error) {
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) (*model.ExtractionJob, error) {
		var job model.ExtractionJob
		if err := c.doJSON(ctx, http.MethodGet, "/api/extraction/jobs/"+jobID, nil, &job); err != nil {
			return nil, err
		}
		return &job, nil
	})
}

// WaitForResult polls a submitted job until it reaches a terminal state and
// returns the validated structured result.
//
// Polling runs on a fixed interval with a hard wall-clock ceiling; past the
// ceiling the job is failed locally (the server-side job is not cancelled).
// Transient poll faults are retried rather than failing the job; a repeated
// non-terminal status just means keep polling. A completed status without a
// usable payload gets exactly one short-delay re-check to absorb the race
// between the status flip and the result write.
func (c *Client) WaitForResult(ctx context.Context, jobID string) (*model.StructuredMenuResult, error) {
	state := StateQueued
	c.transition(state)

	deadline := time.Now().Add(c.PollCeiling)
	recheckUsed := false

	for {
		if time.Now().After(deadline) {
			c.transition(StateFailed)
			return nil, &JobError{
				Kind:    KindTimeout,
				Message: "Extraction timed out — try a smaller image or crop it into sections",
			}
		}

		job, err := c.PollJob(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Transient faults exhaust their own retry budget inside
			// PollJob; a terminal API error here means the job resource
			// itself is unreachable
			c.transition(StateFailed)
			return nil, err
		}

		switch job.Status {
		case model.JobQueued:
			// no transition; keep polling

		case model.JobProcessing:
			if state != StateProcessing {
				state = StateProcessing
				c.transition(state)
			}

		case model.JobFailed:
			c.transition(StateFailed)
			return nil, &JobError{
				Kind:    KindJobFailed,
				Message: friendlyJobMessage(job.ErrorMsg),
			}

		case model.JobCompleted:
			result, perr := c.usableResult(job)
			if perr == nil {
				c.transition(StateCompleted)
				return result, nil
			}
			if !recheckUsed {
				// One bounded re-check before giving up on the payload
				recheckUsed = true
				if err := sleep(ctx, c.RecheckDelay); err != nil {
					return nil, err
				}
				continue
			}
			c.transition(StateFailed)
			return nil, &JobError{
				Kind:    KindIncompleteResult,
				Message: "Extraction finished but the result was incomplete — try again or add items manually",
			}
		}

		if err := sleep(ctx, c.PollInterval); err != nil {
			return nil, err
		}
	}
}

// usableResult validates a completed job's payload shape
func (c *Client) usableResult(job *model.ExtractionJob) (*model.StructuredMenuResult, error) {
	if len(job.Result) == 0 {
		return nil, &SchemaError{Err: fmt.Errorf("missing result payload")}
	}
	result, err := ParseResult(job.Result)
	if err != nil {
		return nil, err
	}
	if !HasUsableResult(result) {
		return nil, &SchemaError{Err: fmt.Errorf("empty category list")}
	}
	return result, nil
}

func (c *Client) transition(state JobState) {
	if c.OnTransition != nil {
		c.OnTransition(state)
	}
}

// friendlyJobMessage rewrites known provider failure phrases into something
// a restaurant owner can act on
func friendlyJobMessage(serverMsg string) string {
	lower := strings.ToLower(serverMsg)
	switch {
	case strings.Contains(lower, "json") || strings.Contains(lower, "parse"):
		return "The menu could not be read — try again or crop the image into sections"
	case serverMsg == "":
		return "Extraction failed — try again or add items manually"
	default:
		return serverMsg
	}
}

// doJSON issues one API request and decodes the response into out.
// Non-2xx responses become classified APIErrors.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return retry.FromResponse(resp)
	}

	if out == nil {
		return iodiscard(resp.Body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func iodiscard(r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Package worker runs the extraction pipeline: it claims queued jobs,
// sends the menu image to the vision provider, validates the structured
// output, and writes the terminal state back to the store.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leonclem/one-minute-menu-sub003/config"
	"github.com/leonclem/one-minute-menu-sub003/extract"
	"github.com/leonclem/one-minute-menu-sub003/model"
	"github.com/leonclem/one-minute-menu-sub003/pkg/retry"
	"github.com/leonclem/one-minute-menu-sub003/service"
)

// Analyzer turns a menu image into raw structured JSON
type Analyzer interface {
	AnalyzeMenuImage(ctx context.Context, imageURL string) (json.RawMessage, error)
}

type Worker struct {
	store    service.Store
	analyzer Analyzer
	cfg      config.WorkerConfig
	logger   *slog.Logger
}

func New(store service.Store, analyzer Analyzer, cfg config.WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, analyzer: analyzer, cfg: cfg, logger: logger}
}

// Run claims and processes jobs until ctx is cancelled. Each concurrency
// slot runs its own claim loop; SKIP LOCKED claiming in the store keeps
// slots from stepping on each other.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		slot := i
		g.Go(func() error {
			return w.loop(ctx, slot)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context, slot int) error {
	logger := w.logger.With("slot", slot)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		job, err := w.store.ClaimQueuedJob(ctx)
		if err != nil {
			logger.Error("failed to claim job", "error", err)
			if err := sleep(ctx, w.cfg.PollInterval.Std()); err != nil {
				return err
			}
			continue
		}
		if job == nil {
			if err := sleep(ctx, w.cfg.PollInterval.Std()); err != nil {
				return err
			}
			continue
		}

		w.process(ctx, job, logger)
	}
}

// process drives one claimed job to a terminal state or back to the queue
func (w *Worker) process(ctx context.Context, job *model.ExtractionJob, logger *slog.Logger) {
	logger = logger.With("job_id", job.ID, "menu_id", job.MenuID)
	logger.Info("processing extraction job", "retry_count", job.RetryCount)

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.ProcessingTimeout.Std())
	defer cancel()

	start := time.Now()
	raw, err := w.analyzer.AnalyzeMenuImage(jobCtx, job.ImageURL)
	if err != nil {
		w.handleFailure(ctx, job, err, logger)
		return
	}

	// Validate before completing so a completed status always carries a
	// structurally sound payload
	result, err := extract.ParseResult(raw)
	if err != nil {
		w.handleFailure(ctx, job, err, logger)
		return
	}
	if !extract.HasUsableResult(result) {
		w.handleFailure(ctx, job, &extract.SchemaError{Err: errNoCategories}, logger)
		return
	}

	elapsed := time.Since(start).Milliseconds()
	if err := w.store.CompleteJob(ctx, job.ID, raw, elapsed); err != nil {
		logger.Error("failed to mark job completed", "error", err)
		return
	}
	logger.Info("extraction job completed", "processing_ms", elapsed,
		"categories", len(result.Menu.Categories),
		"uncertain_items", len(result.UncertainItems))
}

var errNoCategories = errors.New("result has no categories")

// handleFailure requeues transient faults until the retry budget runs out;
// terminal provider errors and schema violations fail the job immediately.
func (w *Worker) handleFailure(ctx context.Context, job *model.ExtractionJob, cause error, logger *slog.Logger) {
	if retry.IsTransient(cause) && ctx.Err() == nil {
		retries, err := w.store.IncrementJobRetry(ctx, job.ID)
		if err != nil {
			logger.Error("failed to bump retry count", "error", err)
			return
		}
		if retries < w.cfg.MaxRetries {
			logger.Warn("requeueing job after transient failure", "error", cause, "retry_count", retries)
			if err := w.store.RequeueJob(ctx, job.ID); err != nil {
				logger.Error("failed to requeue job", "error", err)
			}
			return
		}
		logger.Warn("retry budget exhausted", "retry_count", retries)
	}

	logger.Error("extraction job failed", "error", cause)
	if err := w.store.FailJob(ctx, job.ID, cause.Error()); err != nil {
		logger.Error("failed to mark job failed", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Package runner orchestrates a bounded-concurrency prediction run.
//
// For each pending job the runner acquires a pool slot, issues the
// streaming request, extracts the answer, and persists the result.
// Failures are isolated per job: one failed request never aborts its
// siblings. Jobs whose results already exist in the store are skipped
// before any work begins, which makes an interrupted run resumable.
package runner

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/evalforge/modelrun/pkg/extract"
	"github.com/evalforge/modelrun/pkg/inference"
	"github.com/evalforge/modelrun/pkg/job"
	"github.com/evalforge/modelrun/pkg/output"
	"github.com/evalforge/modelrun/pkg/prompt"
	"github.com/evalforge/modelrun/pkg/store"
)

// Config configures runner behavior.
type Config struct {
	// Concurrency is the number of jobs processed in parallel.
	// Default: 10. Values below 1 use the default.
	Concurrency int

	// RateLimit is the maximum requests per second to the endpoint.
	// Zero means unlimited.
	RateLimit float64
}

// DefaultConcurrency is the pool size when none is configured.
const DefaultConcurrency = 10

// Summary contains aggregate statistics from a completed run.
type Summary struct {
	// Total is the number of jobs submitted to the pool.
	Total int64

	// Completed is the number of jobs that produced a persisted result.
	Completed int64

	// Failed is the number of jobs that produced no result.
	Failed int64

	// Skipped is the number of jobs filtered out as already complete.
	Skipped int64

	// Duration is the total time spent running.
	Duration time.Duration
}

// Progress is a point-in-time snapshot of run counters.
type Progress struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Pending   int64 `json:"pending"`
	Skipped   int64 `json:"skipped"`
}

// Runner executes one prediction run.
//
// Runner is safe for single use only. Create a new Runner for each run.
type Runner struct {
	client *inference.Client
	store  store.Store
	writer output.Writer
	logger *zap.Logger
	config Config
	runID  string

	// Rate limiter (nil if unlimited)
	limiter *rate.Limiter

	// Atomic counters for stats
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

// New creates a runner.
//
// Parameters:
//   - client: Streaming inference client
//   - st: Result store (completion set already scanned at open)
//   - w: JSONL run-log writer
//   - logger: Structured logger; nil disables logging
//   - runID: Correlation ID for this run
//   - cfg: Runner configuration
func New(client *inference.Client, st store.Store, w output.Writer, logger *zap.Logger, runID string, cfg Config) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{
		client: client,
		store:  st,
		writer: w,
		logger: logger,
		config: cfg,
		runID:  runID,
	}

	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return r
}

// Progress returns a snapshot of the run counters.
func (r *Runner) Progress() Progress {
	total := r.total.Load()
	completed := r.completed.Load()
	failed := r.failed.Load()
	return Progress{
		Total:     total,
		Completed: completed,
		Failed:    failed,
		Pending:   total - completed - failed,
		Skipped:   r.skipped.Load(),
	}
}

// Run processes all pending jobs and returns the successful results.
//
// Jobs already present in the store's completion set are skipped.
// Failed jobs are logged and counted but contribute no result; only
// context cancellation makes Run itself return an error. Run blocks
// until every in-flight job has finished (no orphaned work).
func (r *Runner) Run(ctx context.Context, jobs []job.Job) ([]*store.Result, *Summary, error) {
	startTime := time.Now()

	pending := make([]job.Job, 0, len(jobs))
	for _, j := range jobs {
		if r.store.Exists(j.ID) {
			r.skipped.Add(1)
			continue
		}
		pending = append(pending, j)
	}
	r.total.Store(int64(len(pending)))

	r.logger.Info("Run starting",
		zap.String("run_id", r.runID),
		zap.Int("jobs", len(jobs)),
		zap.Int64("skipped", r.skipped.Load()),
		zap.Int("pending", len(pending)),
		zap.Int("concurrency", r.config.Concurrency))

	r.writeProgress(ctx, output.PhaseStarting, "")

	if len(pending) == 0 {
		return nil, r.buildSummary(time.Since(startTime)), nil
	}

	sem := make(chan struct{}, r.config.Concurrency)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*store.Result
	)

	for _, j := range pending {
		if !acquireSlot(ctx, sem) {
			break
		}

		wg.Add(1)
		go func(j job.Job) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := r.attempt(ctx, j)
			if err != nil {
				r.failed.Add(1)
				r.logger.Error("Job failed",
					zap.String("id", j.ID),
					zap.Error(err))
				r.writeError(ctx, classifyError(err), err.Error(), j.ID)
				r.writeProgress(ctx, output.PhaseJobFinished, j.ID)
				return
			}

			r.completed.Add(1)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			r.writeProgress(ctx, output.PhaseJobFinished, j.ID)
		}(j)
	}

	// Structured join: every spawned job finishes before Run returns.
	wg.Wait()

	r.writeProgress(ctx, output.PhaseComplete, "")

	summary := r.buildSummary(time.Since(startTime))
	r.writeSummary(ctx, summary)

	r.logger.Info("Run finished",
		zap.String("run_id", r.runID),
		zap.Int64("completed", summary.Completed),
		zap.Int64("failed", summary.Failed),
		zap.Int64("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration))

	return results, summary, ctx.Err()
}

// acquireSlot obtains a pool slot, or reports false on cancellation.
// When cancellation and a free slot race, the token acquired in the
// losing branch is returned so the pool count stays exact.
func acquireSlot(ctx context.Context, sem chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case sem <- struct{}{}:
	}
	if ctx.Err() != nil {
		<-sem
		return false
	}
	return true
}

// attempt executes the full request -> parse -> persist sequence for
// one job.
func (r *Runner) attempt(ctx context.Context, j job.Job) (*store.Result, error) {
	started := time.Now()

	r.logger.Info("Starting question", zap.String("id", j.ID))
	r.writeProgress(ctx, output.PhaseJobStarted, j.ID)

	if err := r.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	completion, err := r.client.Complete(ctx, prompt.Build(j), func(line string, decodeErr error) {
		r.logger.Warn("Could not parse chunk",
			zap.String("id", j.ID),
			zap.String("line", line),
			zap.Error(decodeErr))
		r.writeError(ctx, output.ErrCodeChunkDecode, decodeErr.Error(), j.ID)
	})
	if err != nil {
		return nil, err
	}

	result := &store.Result{
		ID:          j.ID,
		Question:    j.Question,
		Reasoning:   completion.Reasoning,
		RawResponse: completion.Content,
		Parsed:      extract.Parse(completion.Content),
	}

	if err := r.store.Put(ctx, result); err != nil {
		return nil, err
	}

	duration := time.Since(started)
	r.logger.Info("Finished question",
		zap.String("id", j.ID),
		zap.Duration("duration", duration))

	r.writeResult(ctx, &output.ResultRecord{
		ID:             j.ID,
		Answer:         result.Parsed.Answer,
		Confidence:     result.Parsed.Confidence,
		ContentBytes:   len(completion.Content),
		ReasoningBytes: len(completion.Reasoning),
		Duration:       duration,
	})

	return result, nil
}

// waitForRateLimit blocks until the rate limiter allows a request.
// Returns immediately if rate limiting is disabled.
func (r *Runner) waitForRateLimit(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// buildSummary creates a Summary from the atomic counters.
func (r *Runner) buildSummary(duration time.Duration) *Summary {
	return &Summary{
		Total:     r.total.Load(),
		Completed: r.completed.Load(),
		Failed:    r.failed.Load(),
		Skipped:   r.skipped.Load(),
		Duration:  duration,
	}
}

// writeProgress emits a progress record. Best effort: the run log is
// observability, not correctness.
func (r *Runner) writeProgress(ctx context.Context, phase, id string) {
	if r.writer == nil {
		return
	}
	p := r.Progress()
	_ = r.writer.WriteProgress(ctx, &output.ProgressRecord{
		Phase:     phase,
		ID:        id,
		Completed: p.Completed,
		Failed:    p.Failed,
		Pending:   p.Pending,
	})
}

// writeResult emits a result record.
func (r *Runner) writeResult(ctx context.Context, rec *output.ResultRecord) {
	if r.writer == nil {
		return
	}
	_ = r.writer.WriteResult(ctx, rec)
}

// writeError emits an error record.
func (r *Runner) writeError(ctx context.Context, code, message, id string) {
	if r.writer == nil {
		return
	}
	_ = r.writer.WriteError(ctx, &output.ErrorRecord{Code: code, Message: message, ID: id})
}

// writeSummary emits the final summary record.
func (r *Runner) writeSummary(ctx context.Context, summary *Summary) {
	if r.writer == nil {
		return
	}
	_ = r.writer.WriteSummary(ctx, &output.SummaryRecord{
		Total:         summary.Total,
		Completed:     summary.Completed,
		Failed:        summary.Failed,
		Skipped:       summary.Skipped,
		Duration:      summary.Duration,
		DurationHuman: summary.Duration.Round(time.Millisecond).String(),
	})
}

// classifyError maps a job failure to a run-log error code.
//
// Store failures are persistence errors; endpoint statuses, network
// failures, and timeouts are transport errors; anything else is
// unexpected and reported as internal.
func classifyError(err error) string {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return output.ErrCodePersistence
	}

	var httpErr *inference.HTTPError
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &httpErr) || errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return output.ErrCodeTransport
	}

	return output.ErrCodeInternal
}

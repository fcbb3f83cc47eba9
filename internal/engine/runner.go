/*
PURPOSE:
  High-level runner that orchestrates a design sweep.
  Generates variants -> skips finished ones -> fans the rest out to the
  worker pool -> writes reports, ledger rows and progress events.

REQUIREMENTS:
  User-specified:
  - Run every variant from start_index on, with a bounded worker pool.
  - A design whose JSON report and CSV table both exist is skipped.
  - A failed design is logged and recorded; the batch continues.
  - Optional bounded retry with a fresh session per attempt.

  Implementation-discovered:
  - Counters live in the Run call, never in package state.
  - Shutdown stops submitting, then drains queued and running designs.
    In-flight solves are not cancelled.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/engine (Driver, Pool), internal/femm, internal/output,
    internal/ledger (Recorder), internal/progress (Publisher)

ERROR HANDLING:
  - Logs errors but continues (resilience).
  - Invalid designs fail without retry; solver failures retry up to max_retries.

IMPLEMENTATION RULES:
  - One solver session per attempt, scratch file per worker.
  - Ledger and progress are optional.

USAGE:
  sum, err := engine.Run(ctx, cfg, engine.WithRecorder(l))

SELF-HEALING INSTRUCTIONS:
  - If runs start sharing scratch files, check scratchPath() and Pool worker ids.

RELATED FILES:
  - internal/engine/driver.go
  - internal/engine/pool.go
  - internal/output/json.go

MAINTENANCE:
  - Keep progress event kinds and ledger statuses aligned.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daryltucker/coilgun-sim/internal/config"
	"github.com/daryltucker/coilgun-sim/internal/femm"
	"github.com/daryltucker/coilgun-sim/internal/ledger"
	"github.com/daryltucker/coilgun-sim/internal/material"
	"github.com/daryltucker/coilgun-sim/internal/model"
	"github.com/daryltucker/coilgun-sim/internal/output"
	"github.com/daryltucker/coilgun-sim/internal/progress"
	"github.com/daryltucker/coilgun-sim/internal/variant"
)

// IndexFile is the batch index written into the output directory.
const IndexFile = "index.jsonl"

// SolverFactory opens a fresh backend for one simulation attempt.
type SolverFactory func() (femm.Solver, error)

// NewSolverFactory returns the backend selected by cfg.
func NewSolverFactory(cfg config.SolverConfig, catalog *material.Catalog) (SolverFactory, error) {
	switch cfg.Backend {
	case "analytic":
		return func() (femm.Solver, error) { return femm.NewAnalytic(catalog), nil }, nil
	case "femm":
		return func() (femm.Solver, error) { return femm.NewLua(cfg.FEMMPath, cfg.Timeout), nil }, nil
	default:
		return nil, fmt.Errorf("%w: unknown solver backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// Recorder persists run outcomes.
type Recorder interface {
	Record(ctx context.Context, r ledger.Run) error
}

// Publisher receives progress events. Publish must not block.
type Publisher interface {
	Publish(e progress.Event)
}

// Summary is the outcome of one batch.
type Summary struct {
	BatchID   string
	Total     int // variants from the start index on
	Completed int
	Skipped   int
	Failed    int
	Elapsed   time.Duration
}

// Runner executes design sweeps.
type Runner struct {
	cfg       *config.Config
	catalog   *material.Catalog
	newSolver SolverFactory
	recorder  Recorder
	publisher Publisher
	log       *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithCatalog sets the material catalog used to validate designs.
func WithCatalog(c *material.Catalog) Option { return func(r *Runner) { r.catalog = c } }

// WithSolverFactory replaces the backend chosen from the config.
func WithSolverFactory(f SolverFactory) Option { return func(r *Runner) { r.newSolver = f } }

// WithRecorder records every outcome, e.g. in a *ledger.Ledger.
func WithRecorder(rec Recorder) Option { return func(r *Runner) { r.recorder = rec } }

// WithPublisher sends progress events, e.g. to a *progress.Hub.
func WithPublisher(p Publisher) Option { return func(r *Runner) { r.publisher = p } }

// WithLogger replaces output.Logger.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }

// New creates a runner.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	r := &Runner{cfg: cfg, log: output.Logger}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = material.Builtin()
	}
	if r.newSolver == nil {
		f, err := NewSolverFactory(cfg.Solver, r.catalog)
		if err != nil {
			return nil, err
		}
		r.newSolver = f
	}
	return r, nil
}

// Run executes the full design sweep described by cfg.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	r, err := New(cfg, opts...)
	if err != nil {
		return Summary{}, err
	}
	variants, total := variant.Generate(cfg.Permutations, cfg.Defaults)
	r.log.Info("Generated variants", "count", total, "start_index", cfg.StartIndex)
	return r.RunVariants(ctx, variants)
}

type tally struct {
	mu                         sync.Mutex
	completed, skipped, failed int
}

func (t *tally) add(status ledger.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch status {
	case ledger.StatusCompleted:
		t.completed++
	case ledger.StatusSkipped:
		t.skipped++
	case ledger.StatusFailed:
		t.failed++
	}
}

type job struct {
	batch string
	index int
	total int
	p     model.Params
}

// RunVariants simulates variants[cfg.StartIndex:]. Cancelling ctx stops
// submission; designs already queued or running are finished. The returned
// error is ctx.Err() when the batch was interrupted.
func (r *Runner) RunVariants(ctx context.Context, variants []model.Params) (Summary, error) {
	start := time.Now()
	cfg := r.cfg
	sum := Summary{BatchID: uuid.NewString()}
	if cfg.StartIndex < len(variants) {
		sum.Total = len(variants) - cfg.StartIndex
	}

	for _, dir := range []string{cfg.OutputDir, cfg.ScratchDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return sum, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	index, err := output.NewIndexWriter(filepath.Join(cfg.OutputDir, IndexFile))
	if err != nil {
		return sum, fmt.Errorf("failed to open batch index: %w", err)
	}
	defer index.Close()

	var t tally
	runCtx := context.WithoutCancel(ctx)
	pool := NewPool(cfg.Workers, cfg.QueueFactor)
	pool.Start()

	r.log.Info("Starting batch", "batch_id", sum.BatchID, "designs", sum.Total, "workers", pool.Workers())
	for i := cfg.StartIndex; i < len(variants); i++ {
		if ctx.Err() != nil {
			r.log.Warn("Shutdown requested, draining in-flight designs", "next_index", i)
			break
		}
		j := job{batch: sum.BatchID, index: i, total: len(variants), p: variants[i]}
		name := j.p.PairName()

		if output.Done(cfg.OutputDir, name) {
			r.log.Info("Skipping design (already done)", "design", name, "index", i)
			t.add(ledger.StatusSkipped)
			r.record(runCtx, ledger.Run{BatchID: j.batch, Design: name, Index: i, Status: ledger.StatusSkipped})
			r.publish(progress.Event{Kind: progress.Skipped, BatchID: j.batch, Design: name, Index: i, Total: j.total, Worker: -1})
			continue
		}

		r.publish(progress.Event{Kind: progress.Queued, BatchID: j.batch, Design: name, Index: i, Total: j.total, Worker: -1})
		if err := pool.Submit(func(worker int) { r.runDesign(runCtx, j, worker, index, &t) }); err != nil {
			break
		}
	}
	pool.Stop()

	sum.Completed, sum.Skipped, sum.Failed = t.completed, t.skipped, t.failed
	sum.Elapsed = time.Since(start)
	r.publish(progress.Event{Kind: progress.BatchDone, BatchID: sum.BatchID, Total: sum.Total, Worker: -1,
		Completed: sum.Completed, Skipped: sum.Skipped, Failures: sum.Failed, Elapsed: sum.Elapsed})
	r.log.Info("Batch finished",
		"batch_id", sum.BatchID,
		"completed", sum.Completed,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"elapsed", sum.Elapsed.Round(time.Millisecond),
	)
	return sum, ctx.Err()
}

// runDesign runs one design on worker, retrying solver failures.
func (r *Runner) runDesign(ctx context.Context, j job, worker int, index *output.IndexWriter, t *tally) {
	name := j.p.PairName()
	log := r.log.With("design", name, "worker", worker)
	scratch := r.scratchPath(worker)
	driver := NewDriver(r.cfg.Sweep, log)

	if err := r.validate(driver, j.p); err != nil {
		r.fail(ctx, j, worker, log, &RunError{Design: name, Stage: Initialized, Err: err}, time.Now())
		t.add(ledger.StatusFailed)
		return
	}

	var runErr *RunError
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Info("Retrying design", "attempt", attempt, "delay", r.cfg.RetryDelay)
			time.Sleep(r.cfg.RetryDelay)
		}
		started := time.Now()
		res, err := r.attempt(ctx, j, worker, driver, scratch, attempt)
		if err == nil {
			werr := r.complete(ctx, j, worker, index, res, attempt, started)
			if werr == nil {
				t.add(ledger.StatusCompleted)
				return
			}
			runErr = &RunError{Design: name, Stage: Finalized, Err: werr}
		} else if !errors.As(err, &runErr) {
			runErr = &RunError{Design: name, Stage: Initialized, Attempt: attempt, Err: err}
		}
		runErr.Attempt = attempt
		r.fail(ctx, j, worker, log, runErr, started)
	}
	t.add(ledger.StatusFailed)
}

func (r *Runner) attempt(ctx context.Context, j job, worker int, driver *Driver, scratch string, attempt int) (*model.SimResult, error) {
	solver, err := r.newSolver()
	if err != nil {
		return nil, fmt.Errorf("open solver: %w", err)
	}
	s := femm.NewSession(uuid.NewString(), solver)
	r.publish(progress.Event{Kind: progress.Started, BatchID: j.batch, Design: j.p.PairName(), Index: j.index,
		Total: j.total, RunID: s.ID(), Worker: worker, Attempt: attempt})
	return driver.Simulate(ctx, s, j.p, scratch)
}

func (r *Runner) complete(ctx context.Context, j job, worker int, index *output.IndexWriter, res *model.SimResult, attempt int, started time.Time) error {
	rep := output.NewReport(j.p, res)
	if err := output.WriteReport(r.cfg.OutputDir, rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := index.Write(output.NewIndexEntry(rep)); err != nil {
		r.log.Warn("Failed to append batch index", "design", rep.Name, "error", err)
	}

	r.record(ctx, ledger.Run{BatchID: j.batch, Design: rep.Name, Index: j.index, RunID: res.RunID, Worker: worker,
		Status: ledger.StatusCompleted, Attempt: attempt, Steps: len(res.Steps), Started: started})
	r.publish(progress.Event{Kind: progress.Completed, BatchID: j.batch, Design: rep.Name, Index: j.index,
		Total: j.total, RunID: res.RunID, Worker: worker, Attempt: attempt, Steps: len(res.Steps)})

	attrs := []any{"design", rep.Name, "worker", worker, "run_id", res.RunID, "steps", len(res.Steps),
		"elapsed", time.Since(started).Round(time.Millisecond)}
	if n := len(rep.Summary.Currents); n > 0 {
		attrs = append(attrs, "peak_force_n", rep.Summary.Currents[n-1].PeakForce)
	}
	r.log.Info("Design complete", attrs...)
	return nil
}

func (r *Runner) fail(ctx context.Context, j job, worker int, log *slog.Logger, err *RunError, started time.Time) {
	log.Error("Design failed", "index", j.index, "attempt", err.Attempt, "stage", err.Stage, "error", err.Err)
	r.record(ctx, ledger.Run{BatchID: j.batch, Design: err.Design, Index: j.index, Worker: worker,
		Status: ledger.StatusFailed, Attempt: err.Attempt, Stage: err.Stage.String(), Error: err.Err.Error(), Started: started})
	r.publish(progress.Event{Kind: progress.Failed, BatchID: j.batch, Design: err.Design, Index: j.index,
		Total: j.total, Worker: worker, Attempt: err.Attempt, Error: err.Error()})
}

// validate rejects designs that no attempt could simulate.
func (r *Runner) validate(driver *Driver, p model.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := r.catalog.Lookup(p.ProjectileMaterial); err != nil {
		return fmt.Errorf("%w: projectile material: %w", model.ErrInvalidParams, err)
	}
	return driver.CheckFit(p)
}

func (r *Runner) scratchPath(worker int) string {
	return filepath.Join(r.cfg.ScratchDir, fmt.Sprintf("temp%d.fem", worker))
}

func (r *Runner) record(ctx context.Context, run ledger.Run) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(ctx, run); err != nil {
		r.log.Warn("Failed to record run in ledger", "design", run.Design, "error", err)
	}
}

func (r *Runner) publish(e progress.Event) {
	if r.publisher != nil {
		r.publisher.Publish(e)
	}
}

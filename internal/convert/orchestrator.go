package convert

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/convarr/convarr/internal/converr"
	"github.com/convarr/convarr/internal/engine"
	"github.com/convarr/convarr/internal/format"
	"github.com/convarr/convarr/internal/gate"
	"github.com/convarr/convarr/internal/resource"
	"github.com/convarr/convarr/internal/storage"
)

// EngineProvider yields the engine serving a category. Satisfied by
// engine.Set; tests substitute stubs.
type EngineProvider interface {
	For(category format.Category) (engine.Engine, error)
}

// Options wires an Orchestrator.
type Options struct {
	Gate     *gate.Gate
	Monitor  *resource.Monitor
	Resolver *storage.Resolver
	Engines  EngineProvider

	// Timeouts bounds engine runs per category; a missing entry means no
	// per-run deadline.
	Timeouts map[format.Category]time.Duration

	// BaseContext scopes every job; cancelling it tears down all in-flight
	// conversions. Defaults to context.Background.
	BaseContext context.Context

	Logger *slog.Logger
}

// Orchestrator runs the conversion pipeline: validate, admit, resolve,
// execute, account. User and system rejections happen before a permit is
// taken; once running, the permit is released on every exit path.
type Orchestrator struct {
	gate     *gate.Gate
	monitor  *resource.Monitor
	resolver *storage.Resolver
	engines  EngineProvider
	timeouts map[format.Category]time.Duration
	registry *Registry
	baseCtx  context.Context
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		gate:     opts.Gate,
		monitor:  opts.Monitor,
		resolver: opts.Resolver,
		engines:  opts.Engines,
		timeouts: opts.Timeouts,
		registry: NewRegistry(),
		baseCtx:  opts.BaseContext,
		logger:   opts.Logger.With("component", "orchestrator"),
	}
}

// Registry exposes the job index for inspection and cancellation.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Submit validates the request and starts the conversion asynchronously.
// Routing, quality, and source-existence failures are returned here as user
// errors without creating a job; everything later lands on the job itself.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(req.Source)
	if err != nil {
		return nil, converr.SourceNotFound(req.Source)
	}
	if info.IsDir() {
		return nil, converr.InvalidInput("source path is a directory: %s", req.Source)
	}

	sourceFormat := format.Normalize(strings.TrimPrefix(filepath.Ext(req.Source), "."))
	if sourceFormat == "" {
		return nil, converr.InvalidInput("source file %s has no extension to detect its format", req.Source)
	}

	category, err := format.Route(sourceFormat, req.TargetFormat)
	if err != nil {
		return nil, err
	}
	quality, err := format.ParseQuality(req.Quality)
	if err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(o.baseCtx)
	job := newJob(req, category, quality, cancel)
	o.registry.add(job)

	o.logger.Info("job submitted",
		"job_id", job.ID,
		"source", req.Source,
		"target", req.TargetFormat,
		"category", string(category),
		"quality", string(quality))

	go o.run(jobCtx, job, sourceFormat)
	return job, nil
}

// Convert runs a conversion synchronously: submit, wait for a terminal
// state, and return the final snapshot. If ctx ends first the job is
// cancelled and awaited so no engine outlives the caller.
func (o *Orchestrator) Convert(ctx context.Context, req Request) (Snapshot, error) {
	job, err := o.Submit(ctx, req)
	if err != nil {
		return Snapshot{}, err
	}

	select {
	case <-job.Done():
	case <-ctx.Done():
		job.Cancel()
		<-job.Done()
	}
	return job.Snapshot(), job.Err()
}

func (o *Orchestrator) run(ctx context.Context, job *Job, sourceFormat string) {
	req := job.Request

	// Admission: the disk check precedes the permit so a rejected job never
	// occupies a slot.
	outputDir := o.resolver.OutputDirFor(req.Source, req.OutputDir)
	if err := o.monitor.CheckDisk(outputDir); err != nil {
		o.fail(job, err)
		return
	}

	permit, err := o.gate.Acquire(ctx)
	if err != nil {
		o.fail(job, err)
		return
	}
	defer permit.Release()
	job.setState(StateAdmitted)

	// Path resolution happens under the permit: probing earlier would let
	// queued jobs pick names that a running job takes in the meantime.
	outputPath, err := o.resolver.Resolve(req.Source, req.TargetFormat, req.OutputDir)
	if err != nil {
		o.fail(job, err)
		return
	}
	job.setOutputPath(outputPath)

	eng, err := o.engines.For(job.Category)
	if err != nil {
		o.fail(job, err)
		return
	}

	job.setState(StateRunning)
	start := time.Now()
	err = eng.Convert(ctx, engine.Request{
		Source:       req.Source,
		Output:       outputPath,
		SourceFormat: sourceFormat,
		TargetFormat: format.Normalize(req.TargetFormat),
		Quality:      job.Quality,
		Timeout:      o.timeouts[job.Category],
		Title:        req.Title,
		Author:       req.Author,
		OnProgress:   job.setProgress,
	})
	if err != nil {
		o.fail(job, err)
		return
	}

	job.finish(StateSucceeded, nil)
	o.logger.Info("job succeeded",
		"job_id", job.ID, "output", outputPath, "elapsed", time.Since(start))
}

// fail moves the job to the terminal state its error implies.
func (o *Orchestrator) fail(job *Job, err error) {
	state := StateFailed
	switch {
	case errors.Is(err, context.Canceled):
		state = StateCancelled
		err = converr.New(converr.KindUser, "conversion cancelled")
	case converr.KindOf(err) == converr.KindTimeout:
		state = StateTimedOut
	}
	job.finish(state, err)
	o.logger.Warn("job finished without success",
		"job_id", job.ID, "state", string(state), "error", err)
}

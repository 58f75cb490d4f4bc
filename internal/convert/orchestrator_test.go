package convert

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convarr/convarr/internal/converr"
	"github.com/convarr/convarr/internal/engine"
	"github.com/convarr/convarr/internal/format"
	"github.com/convarr/convarr/internal/gate"
	"github.com/convarr/convarr/internal/resource"
	"github.com/convarr/convarr/internal/storage"
)

// stubEngine counts spawns and concurrency, optionally blocking until
// released so tests can hold jobs in the running state.
type stubEngine struct {
	category  format.Category
	spawned   atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	block     chan struct{} // nil means finish immediately
	err       error
	progress  []float64
}

func (s *stubEngine) Category() format.Category { return s.category }
func (s *stubEngine) Available() error          { return nil }

func (s *stubEngine) IsSupported(f string, forOutput bool) bool {
	if forOutput {
		return s.category.IsOutput(f)
	}
	return s.category.IsInput(f)
}

func (s *stubEngine) Convert(ctx context.Context, req engine.Request) error {
	s.spawned.Add(1)
	cur := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		prev := s.maxActive.Load()
		if cur <= prev || s.maxActive.CompareAndSwap(prev, cur) {
			break
		}
	}

	for _, p := range s.progress {
		if req.OnProgress != nil {
			req.OnProgress(p)
		}
	}

	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(req.Output, []byte("converted"), 0o644)
}

type stubProvider struct{ engines map[format.Category]engine.Engine }

func (p *stubProvider) For(c format.Category) (engine.Engine, error) {
	e, ok := p.engines[c]
	if !ok {
		return nil, converr.New(converr.KindSystem, "no engine for %q", c)
	}
	return e, nil
}

type fixture struct {
	orch  *Orchestrator
	stub  *stubEngine
	dir   string
	gate  *gate.Gate
}

func newFixture(t *testing.T, capacity int, stub *stubEngine) *fixture {
	t.Helper()
	g, err := gate.New(capacity)
	require.NoError(t, err)

	orch := New(Options{
		Gate:     g,
		Monitor:  resource.NewMonitor(1, nil),
		Resolver: storage.NewResolver("", nil),
		Engines:  &stubProvider{engines: map[format.Category]engine.Engine{stub.category: stub}},
		Timeouts: map[format.Category]time.Duration{stub.category: time.Minute},
	})
	return &fixture{orch: orch, stub: stub, dir: t.TempDir(), gate: g}
}

func (f *fixture) sourceFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	return path
}

func TestConvertSynchronousSuccess(t *testing.T) {
	stub := &stubEngine{category: format.Video, progress: []float64{25, 75}}
	f := newFixture(t, 2, stub)
	src := f.sourceFile(t, "movie.mkv")

	snap, err := f.orch.Convert(context.Background(), Request{Source: src, TargetFormat: "mp4"})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, 100.0, snap.Progress)
	assert.Equal(t, filepath.Join(f.dir, "movie.mp4"), snap.OutputPath)
	assert.FileExists(t, snap.OutputPath)
	assert.Equal(t, format.QualityMedium, snap.Quality)
}

func TestSubmitRejectsUserErrorsSynchronously(t *testing.T) {
	stub := &stubEngine{category: format.Video}
	f := newFixture(t, 1, stub)
	src := f.sourceFile(t, "movie.mkv")

	tests := []struct {
		name string
		req  Request
	}{
		{"unsupported pairing", Request{Source: src, TargetFormat: "pdf"}},
		{"unknown quality", Request{Source: src, TargetFormat: "mp4", Quality: "ultra"}},
		{"missing source", Request{Source: filepath.Join(f.dir, "gone.mkv"), TargetFormat: "mp4"}},
		{"extensionless source", Request{Source: f.sourceFile(t, "noext"), TargetFormat: "mp4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, converr.KindUser, converr.KindOf(err))
		})
	}

	// No jobs were created and no engine ever started.
	assert.Equal(t, 0, f.orch.Registry().Len())
	assert.Equal(t, int32(0), stub.spawned.Load())
}

func TestConcurrencyNeverExceedsCapacity(t *testing.T) {
	stub := &stubEngine{category: format.Audio, block: make(chan struct{})}
	f := newFixture(t, 2, stub)

	var jobs []*Job
	for i := 0; i < 5; i++ {
		src := f.sourceFile(t, filepath.Base(t.Name())+string(rune('a'+i))+".flac")
		job, err := f.orch.Submit(context.Background(), Request{Source: src, TargetFormat: "mp3"})
		require.NoError(t, err)
		jobs = append(jobs, job)
	}

	waitFor(t, func() bool { return stub.active.Load() == 2 && f.gate.Waiting() == 3 })
	assert.Equal(t, int32(2), stub.maxActive.Load())

	close(stub.block)
	for _, job := range jobs {
		<-job.Done()
		assert.Equal(t, StateSucceeded, job.State())
	}
	assert.Equal(t, int32(5), stub.spawned.Load())
	assert.LessOrEqual(t, stub.maxActive.Load(), int32(2))
	assert.Equal(t, 0, f.gate.InUse())
}

func TestCancelRunningJobReleasesPermit(t *testing.T) {
	stub := &stubEngine{category: format.Video, block: make(chan struct{})}
	f := newFixture(t, 1, stub)

	src := f.sourceFile(t, "long.mkv")
	job, err := f.orch.Submit(context.Background(), Request{Source: src, TargetFormat: "mp4"})
	require.NoError(t, err)
	waitFor(t, func() bool { return job.State() == StateRunning })

	job.Cancel()
	<-job.Done()
	assert.Equal(t, StateCancelled, job.State())
	// a cancelled job carries an error, never a result path
	assert.Empty(t, job.Snapshot().OutputPath)

	// The permit freed by the cancellation admits the next job.
	src2 := f.sourceFile(t, "next.mkv")
	stub.block = nil
	snap, err := f.orch.Convert(context.Background(), Request{Source: src2, TargetFormat: "mp4"})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, snap.State)
}

func TestCancelQueuedJobNeverSpawnsEngine(t *testing.T) {
	stub := &stubEngine{category: format.Video, block: make(chan struct{})}
	f := newFixture(t, 1, stub)

	running, err := f.orch.Submit(context.Background(), Request{Source: f.sourceFile(t, "a.mkv"), TargetFormat: "mp4"})
	require.NoError(t, err)
	waitFor(t, func() bool { return running.State() == StateRunning })

	queued, err := f.orch.Submit(context.Background(), Request{Source: f.sourceFile(t, "b.mkv"), TargetFormat: "mp4"})
	require.NoError(t, err)
	waitFor(t, func() bool { return f.gate.Waiting() == 1 })

	queued.Cancel()
	<-queued.Done()
	assert.Equal(t, StateCancelled, queued.State())
	assert.Equal(t, int32(1), stub.spawned.Load())

	close(stub.block)
	<-running.Done()
	assert.Equal(t, StateSucceeded, running.State())
}

func TestTimeoutErrorMapsToTimedOut(t *testing.T) {
	stub := &stubEngine{category: format.Ebook, err: converr.Timeout("ebook-convert exceeded its time limit")}
	f := newFixture(t, 1, stub)

	snap, err := f.orch.Convert(context.Background(), Request{Source: f.sourceFile(t, "b.epub"), TargetFormat: "pdf"})
	require.Error(t, err)
	assert.Equal(t, StateTimedOut, snap.State)
	assert.Equal(t, converr.KindTimeout, converr.KindOf(err))
	assert.Empty(t, snap.OutputPath)
}

func TestEngineFailureMapsToFailed(t *testing.T) {
	stub := &stubEngine{category: format.Audio, err: converr.Conversion("ffmpeg failed: exit status 1", "boom")}
	f := newFixture(t, 1, stub)

	snap, err := f.orch.Convert(context.Background(), Request{Source: f.sourceFile(t, "x.wav"), TargetFormat: "mp3"})
	require.Error(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, converr.KindConversion, converr.KindOf(err))
	assert.Empty(t, snap.OutputPath)
}

func TestDiskRejectionHappensBeforeAdmission(t *testing.T) {
	stub := &stubEngine{category: format.Video}
	g, err := gate.New(1)
	require.NoError(t, err)
	orch := New(Options{
		Gate:     g,
		Monitor:  resource.NewMonitor(math.MaxUint64, nil),
		Resolver: storage.NewResolver("", nil),
		Engines:  &stubProvider{engines: map[format.Category]engine.Engine{format.Video: stub}},
	})

	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	snap, convErr := orch.Convert(context.Background(), Request{Source: src, TargetFormat: "mp4"})
	require.Error(t, convErr)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, converr.KindSystem, converr.KindOf(convErr))
	assert.Equal(t, int32(0), stub.spawned.Load())
	assert.Equal(t, 0, g.InUse())
}

func TestProgressIsMonotonic(t *testing.T) {
	job := newJob(Request{}, format.Video, format.QualityMedium, func() {})
	job.setProgress(10)
	job.setProgress(50)
	job.setProgress(30) // stale update must not regress
	assert.Equal(t, 50.0, job.Progress())
	job.setProgress(200)
	assert.Equal(t, 100.0, job.Progress())
}

func TestRegistryListAndEvict(t *testing.T) {
	stub := &stubEngine{category: format.Image}
	f := newFixture(t, 1, stub)

	snap, err := f.orch.Convert(context.Background(), Request{Source: f.sourceFile(t, "p.png"), TargetFormat: "jpg"})
	require.NoError(t, err)

	list := f.orch.Registry().List()
	require.Len(t, list, 1)
	assert.Equal(t, snap.ID, list[0].ID)

	got, err := f.orch.Registry().Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, got.State())

	_, err = f.orch.Registry().Get("nope")
	require.Error(t, err)
	assert.Equal(t, converr.KindUser, converr.KindOf(err))

	// A generous retention keeps the job; a zero retention evicts it.
	assert.Equal(t, 0, f.orch.Registry().Evict(time.Hour))
	assert.Equal(t, 1, f.orch.Registry().Evict(0))
	assert.Equal(t, 0, f.orch.Registry().Len())
}

func TestConvertCallerContextCancellation(t *testing.T) {
	stub := &stubEngine{category: format.Video, block: make(chan struct{})}
	f := newFixture(t, 1, stub)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	snap, err := f.orch.Convert(ctx, Request{Source: f.sourceFile(t, "m.mkv"), TargetFormat: "mp4"})
	require.Error(t, err)
	assert.Equal(t, StateCancelled, snap.State)
}

func TestSubmitWithCancelledContext(t *testing.T) {
	stub := &stubEngine{category: format.Video}
	f := newFixture(t, 1, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.orch.Submit(ctx, Request{Source: f.sourceFile(t, "m.mkv"), TargetFormat: "mp4"})
	assert.ErrorIs(t, err, context.Canceled)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

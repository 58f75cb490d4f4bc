// Package convert orchestrates conversions: admission, bounded concurrency,
// job lifecycle, and terminal-state accounting.
package convert

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/convarr/convarr/internal/format"
)

// State is a job lifecycle state. Terminal states are Succeeded, Failed,
// Cancelled, and TimedOut.
type State string

const (
	StateQueued    State = "queued"
	StateAdmitted  State = "admitted"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateTimedOut  State = "timed_out"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

// Request describes one conversion as submitted by a caller.
type Request struct {
	Source       string
	TargetFormat string
	Quality      string // raw tier name; empty means the default
	OutputDir    string // optional per-request override
	Title        string // ebook metadata, optional
	Author       string // ebook metadata, optional
}

// Job tracks one conversion through its lifecycle. All accessors are safe
// for concurrent use.
type Job struct {
	ID       string
	Request  Request
	Category format.Category
	Quality  format.Quality

	mu         sync.RWMutex
	state      State
	progress   float64
	outputPath string
	err        error
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func newJob(req Request, category format.Category, quality format.Quality, cancel context.CancelFunc) *Job {
	return &Job{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		Request:   req,
		Category:  category,
		Quality:   quality,
		state:     StateQueued,
		createdAt: time.Now().UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Snapshot is an immutable view of a job for callers and the HTTP surface.
type Snapshot struct {
	ID           string          `json:"id"`
	Source       string          `json:"source"`
	TargetFormat string          `json:"target_format"`
	Category     format.Category `json:"category"`
	Quality      format.Quality  `json:"quality"`
	State        State           `json:"state"`
	Progress     float64         `json:"progress"`
	OutputPath   string          `json:"output_path,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

// Snapshot returns the job's current state as one consistent view.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	snap := Snapshot{
		ID:           j.ID,
		Source:       j.Request.Source,
		TargetFormat: j.Request.TargetFormat,
		Category:     j.Category,
		Quality:      j.Quality,
		State:        j.state,
		Progress:     j.progress,
		OutputPath:   j.outputPath,
		CreatedAt:    j.createdAt,
	}
	if j.err != nil {
		snap.Error = j.err.Error()
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		snap.StartedAt = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		snap.FinishedAt = &t
	}
	return snap
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Progress returns the current completion percentage.
func (j *Job) Progress() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.progress
}

// OutputPath returns the resolved output path, empty until resolution.
func (j *Job) OutputPath() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.outputPath
}

// Err returns the terminal error, nil for queued/running/succeeded jobs.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel requests cooperative cancellation. Safe to call in any state;
// a no-op once the job is terminal.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = s
	if s == StateRunning && j.startedAt.IsZero() {
		j.startedAt = time.Now().UTC()
	}
}

// setProgress enforces monotonically non-decreasing progress: late or
// out-of-order engine updates never move the figure backwards.
func (j *Job) setProgress(pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if pct > j.progress {
		j.progress = pct
	}
}

func (j *Job) setOutputPath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outputPath = path
}

// finish moves the job to a terminal state exactly once and releases
// waiters.
func (j *Job) finish(s State, err error) {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	j.state = s
	j.err = err
	j.finishedAt = time.Now().UTC()
	if s == StateSucceeded {
		j.progress = 100
	} else {
		// partial output was already removed; a failed job carries an
		// error, never a result path
		j.outputPath = ""
	}
	j.mu.Unlock()
	close(j.done)
}

func (j *Job) finishedAtTime() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.finishedAt
}

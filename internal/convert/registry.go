package convert

import (
	"sort"
	"sync"
	"time"

	"github.com/convarr/convarr/internal/converr"
)

// Registry is the in-memory job index. Jobs are never persisted; a restart
// forgets them.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

func (r *Registry) add(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// Get returns the job with the given ID.
func (r *Registry) Get(id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, converr.InvalidInput("unknown job id %q", id)
	}
	return job, nil
}

// List returns snapshots of all known jobs, newest first. ULIDs sort
// lexicographically by creation time.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Cancel requests cancellation of the job with the given ID.
func (r *Registry) Cancel(id string) error {
	job, err := r.Get(id)
	if err != nil {
		return err
	}
	job.Cancel()
	return nil
}

// Evict drops terminal jobs that finished more than retention ago and
// returns how many were removed. Running jobs are never evicted.
func (r *Registry) Evict(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, job := range r.jobs {
		if !job.State().Terminal() {
			continue
		}
		if finished := job.finishedAtTime(); !finished.IsZero() && finished.Before(cutoff) {
			delete(r.jobs, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

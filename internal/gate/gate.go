// Package gate bounds concurrent engine work with a fixed pool of permits
// and a strict FIFO waiter queue. A plain buffered-channel semaphore cannot
// guarantee wakeup order, so the queue is explicit.
package gate

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// Gate is a fixed-capacity admission gate. Admission order follows request
// order; a conversion admitted later than another never started waiting
// earlier.
type Gate struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  *list.List // of chan struct{}, each buffered to 1
}

// New creates a Gate with the given permit capacity.
func New(capacity int) (*Gate, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("gate capacity must be at least 1, got %d", capacity)
	}
	return &Gate{capacity: capacity, waiters: list.New()}, nil
}

// Permit represents one admitted slot. Release returns it to the pool and is
// safe to call more than once; only the first call has effect.
type Permit struct {
	gate *Gate
	once sync.Once
}

// Release returns the permit to the pool, waking the oldest waiter if any.
func (p *Permit) Release() {
	p.once.Do(p.gate.release)
}

// Acquire blocks until a permit is free or ctx is done. Waiters are served
// oldest-first. On cancellation the waiter leaves the queue without ever
// holding a permit.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.inUse < g.capacity && g.waiters.Len() == 0 {
		g.inUse++
		g.mu.Unlock()
		return &Permit{gate: g}, nil
	}

	ready := make(chan struct{}, 1)
	elem := g.waiters.PushBack(ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return &Permit{gate: g}, nil
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-ready:
			// The grant raced the cancellation; the slot was already
			// transferred to this waiter, so hand it back.
			g.mu.Unlock()
			g.release()
		default:
			g.waiters.Remove(elem)
			g.mu.Unlock()
		}
		return nil, ctx.Err()
	}
}

// TryAcquire takes a permit only if one is immediately free and nobody is
// queued ahead.
func (g *Gate) TryAcquire() (*Permit, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inUse < g.capacity && g.waiters.Len() == 0 {
		g.inUse++
		return &Permit{gate: g}, true
	}
	return nil, false
}

func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if elem := g.waiters.Front(); elem != nil {
		g.waiters.Remove(elem)
		// The slot moves directly to the oldest waiter; inUse is unchanged.
		elem.Value.(chan struct{}) <- struct{}{}
		return
	}
	g.inUse--
}

// Capacity returns the fixed permit count.
func (g *Gate) Capacity() int {
	return g.capacity
}

// InUse returns the number of currently held permits.
func (g *Gate) InUse() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inUse
}

// Waiting returns the current queue depth.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters.Len()
}

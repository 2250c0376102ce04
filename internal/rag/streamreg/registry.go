// Package streamreg implements C9: tracking active streaming (SSE) query
// connections so the server can cancel in-flight generation on client
// disconnect and reclaim idle connections it was never told to close.
package streamreg

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragcore/internal/ragerr"

	"ragcore/internal/rag/domain"
)

// defaultIdleTimeout matches spec §4.9's default when config supplies zero.
const defaultIdleTimeout = 30 * time.Minute

// defaultSweepInterval is how often the background sweeper looks for idle
// connections (spec §4.9: every 5 minutes).
const defaultSweepInterval = 5 * time.Minute

// entry pairs the public record with its cancellation func; cancel is
// invoked by Close and by the idle sweeper, never held outside the lock.
type entry struct {
	conn   domain.StreamConnection
	cancel context.CancelFunc
}

// Registry is C9's single in-process store of open streaming connections.
// All operations take one lock; the critical section is O(1) per spec §5.
type Registry struct {
	idleTimeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a Registry. idleTimeout <= 0 falls back to the 30-minute
// default.
func New(idleTimeout time.Duration) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &Registry{
		idleTimeout: idleTimeout,
		entries:     make(map[string]*entry),
		stopCh:      make(chan struct{}),
	}
}

// Open registers a new streaming connection derived from parent, returning
// its id and a context that Close (or the idle sweeper) will cancel.
func (r *Registry) Open(parent context.Context, metadata map[string]string) (string, context.Context) {
	id := uuid.NewString()
	cctx, cancel := context.WithCancel(parent)
	now := time.Now()

	r.mu.Lock()
	r.entries[id] = &entry{
		conn: domain.StreamConnection{
			ID:           id,
			Status:       domain.ConnActive,
			Metadata:     metadata,
			OpenedAt:     now,
			LastActivity: now,
		},
		cancel: cancel,
	}
	r.mu.Unlock()

	return id, cctx
}

// Touch updates lastActivity for id; called once per transmitted chunk.
// A touch against an unknown or already-closed connection is a no-op.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.conn.Status != domain.ConnActive {
		return
	}
	e.conn.LastActivity = time.Now()
}

// Close removes the connection from the registry and cancels its context.
// Closing an unknown id is a no-op.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok {
		e.cancel()
	}
}

// Get returns the current record for id, or NotFound.
func (r *Registry) Get(id string) (domain.StreamConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.StreamConnection{}, ragerr.New("Registry.Get", ragerr.NotFound)
	}
	return e.conn, nil
}

// Len reports the number of currently-open connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep cancels and removes every connection idle for longer than the
// registry's idleTimeout, returning the number reaped. Exported so tests and
// an on-demand admin hook can trigger a sweep without waiting for the timer.
func (r *Registry) Sweep(now time.Time) int {
	var reaped []context.CancelFunc

	r.mu.Lock()
	for id, e := range r.entries {
		if now.Sub(e.conn.LastActivity) > r.idleTimeout {
			reaped = append(reaped, e.cancel)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, cancel := range reaped {
		cancel()
	}
	return len(reaped)
}

// RunSweeper starts the periodic idle-connection sweep (spec §4.9: every 5
// minutes) and blocks until ctx is cancelled or Stop is called.
func (r *Registry) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.Sweep(time.Now())
		}
	}
}

// Stop terminates a running RunSweeper loop.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

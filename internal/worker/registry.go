package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Sentinel errors for dispatch decisions.
var (
	// ErrAlreadyRunning is returned when the project already has a live run.
	ErrAlreadyRunning = errors.New("project already has a running worker")

	// ErrAtCapacity is returned when the global worker limit is reached.
	ErrAtCapacity = errors.New("worker capacity reached")
)

// DefaultMaxWorkers is the global concurrency cap when none is configured.
const DefaultMaxWorkers = 10

// Registry tracks live runs. It enforces at-most-one-concurrent-run per
// project id plus a global capacity limit. It is in-memory only: it is
// repopulated from nothing on restart, which is why stale Processing
// records are failed at daemon startup.
type Registry struct {
	mu      sync.Mutex
	max     int
	running map[string]string // project id -> worker id
	wg      sync.WaitGroup
}

// NewRegistry creates a registry with the given global worker cap.
func NewRegistry(max int) *Registry {
	if max <= 0 {
		max = DefaultMaxWorkers
	}
	return &Registry{
		max:     max,
		running: make(map[string]string),
	}
}

// Dispatch reserves a slot for the project and spawns run in its own
// goroutine. The slot is released when run returns, however it returns.
func (r *Registry) Dispatch(projectID string, run func(workerID string)) (string, error) {
	r.mu.Lock()
	if _, live := r.running[projectID]; live {
		r.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	if len(r.running) >= r.max {
		r.mu.Unlock()
		return "", ErrAtCapacity
	}
	workerID := uuid.New().String()
	r.running[projectID] = workerID
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.release(projectID)
		run(workerID)
	}()

	return workerID, nil
}

func (r *Registry) release(projectID string) {
	r.mu.Lock()
	delete(r.running, projectID)
	r.mu.Unlock()
}

// IsRunning reports whether the project has a live worker.
func (r *Registry) IsRunning(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, live := r.running[projectID]
	return live
}

// Running returns a snapshot of project id -> worker id.
func (r *Registry) Running() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[string]string, len(r.running))
	for k, v := range r.running {
		snapshot[k] = v
	}
	return snapshot
}

// Stats returns registry statistics for the /workers endpoint.
func (r *Registry) Stats() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]interface{}{
		"active_workers": len(r.running),
		"global_max":     r.max,
	}
}

// Wait blocks until every live worker exits or the context expires.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package decorator

import (
	"context"
	"fmt"
	"sync"

	"github.com/mavedb/worker/internal/workerctx"
)

// JobFunction is the signature every registered job implements: spec §4.5's
// `async (ctx, job_id, job_manager) -> JobResult`, adapted to Go's explicit
// error return. A non-nil err represents an uncaught exception — the
// function did not get a chance to shape a JobResult at all, so the
// decorator builds a FAILED one on its behalf and re-raises err to the
// caller once state is persisted. wc carries every other shared dependency
// (transaction, queue, executor pool, external clients, config) per spec
// §4.8.
type JobFunction func(ctx context.Context, jobParams []byte, wc *workerctx.Context) (JobResult, error)

// Registry is the process-wide table of job functions keyed by name, per
// spec §9 ("the job function registry is process-wide, initialized once at
// startup"). The zero value is ready to use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]JobFunction
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: map[string]JobFunction{}}
}

// Register binds name to fn. Calling Register twice for the same name is a
// programmer error and panics, matching the teacher's init-time-only
// registration pattern — this only ever runs during process startup, never
// on a request path.
func (r *Registry) Register(name string, fn JobFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = map[string]JobFunction{}
	}
	if _, exists := r.funcs[name]; exists {
		panic(fmt.Sprintf("decorator: job function %q already registered", name))
	}
	r.funcs[name] = fn
}

// Lookup returns the function registered under name, or false if none is.
func (r *Registry) Lookup(name string) (JobFunction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns every registered job function name, for a worker loop to
// poll one queue per function.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

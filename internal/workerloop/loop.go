// Package workerloop implements the Worker Loop described in spec §4.8: one
// poller per registered job function, each blocking on the queue's Dequeue
// for that function name and handing ready messages to the decorator.
// Multiple processes may run a Loop over the same queue and registry;
// within a process, dispatch is cooperative and every blocking call a job
// function makes goes through the executor pool, not this loop.
package workerloop

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/queue"
)

// Loop polls one queue per registered job function and dispatches whatever
// it dequeues.
type Loop struct {
	dispatcher  *decorator.Dispatcher
	queue       queue.Gateway
	names       []string
	dequeueWait time.Duration
}

// New builds a Loop over the given dispatcher and queue, polling for every
// function name the registry knows about.
func New(dispatcher *decorator.Dispatcher, q queue.Gateway, registry *decorator.Registry, dequeueWait time.Duration) *Loop {
	if dequeueWait <= 0 {
		dequeueWait = 2 * time.Second
	}
	return &Loop{dispatcher: dispatcher, queue: q, names: registry.Names(), dequeueWait: dequeueWait}
}

// Run blocks until ctx is cancelled, polling every registered function's
// queue concurrently. It returns nil on a clean shutdown.
func (l *Loop) Run(ctx context.Context) error {
	if len(l.names) == 0 {
		slog.WarnContext(ctx, "worker loop started with no registered job functions")
		<-ctx.Done()
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range l.names {
		functionName := name
		g.Go(func() error {
			l.pollFunction(ctx, functionName)
			return nil
		})
	}
	return g.Wait()
}

// pollFunction repeatedly dequeues functionName's messages and dispatches
// them, one at a time, until ctx is cancelled. A dispatch error is logged,
// not fatal: either the job's FAILED status was already committed (spec
// §4.5), or Dispatch rolled its transaction back and committed nothing.
func (l *Loop) pollFunction(ctx context.Context, functionName string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, ok, err := l.queue.Dequeue(ctx, functionName, l.dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.ErrorContext(ctx, "dequeue failed", "function", functionName, "error", err)
			continue
		}
		if !ok {
			continue
		}

		if err := l.dispatcher.Dispatch(ctx, msg.JobID); err != nil {
			slog.ErrorContext(ctx, "job dispatch returned an uncaught error", "function", functionName, "job_id", msg.JobID, "error", err)
		}

		if err := l.queue.Ack(ctx, functionName, msg.ClientJobID); err != nil {
			slog.ErrorContext(ctx, "failed to release dedup membership after dispatch", "function", functionName, "job_id", msg.JobID, "error", err)
		}
	}
}

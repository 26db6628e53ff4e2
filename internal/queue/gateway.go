// Package queue implements the Job Queue Gateway: a single enqueue
// operation, deduplicated on the caller's client-side job id (the job's
// urn), with an optional defer delay and a Dequeue side a worker loop polls
// by function name (see spec §4.2/§6).
package queue

import (
	"context"
	"time"
)

// Gateway is the Job Queue Gateway. Enqueue dedupes on clientJobID: a
// second enqueue for an id that is already queued or running is a
// true-but-noop. Defer delays visibility to Dequeue by at least d.
type Gateway interface {
	Enqueue(ctx context.Context, functionName string, jobID int64, clientJobID string, deferBy time.Duration) (enqueued bool, err error)

	// Dequeue blocks up to timeout waiting for a message on functionName's
	// queue. It returns ok=false, no error, on a timeout with nothing ready.
	Dequeue(ctx context.Context, functionName string, timeout time.Duration) (msg Message, ok bool, err error)

	// Ack releases the dedup membership for clientJobID so a future retry's
	// enqueue (same urn) is accepted again once this delivery is done.
	Ack(ctx context.Context, functionName string, clientJobID string) error
}

// Message is what Dequeue hands the worker loop: enough to look the
// JobRun back up without carrying the job payload through the queue.
type Message struct {
	FunctionName string
	JobID        int64
	ClientJobID  string
}

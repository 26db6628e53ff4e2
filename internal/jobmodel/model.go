package jobmodel

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by the Persistence Gateway when a lookup by id or
// urn matches no row. Callers use errors.Is, not a sentinel status code.
var ErrNotFound = errors.New("not found")

// JobRun is a single unit of asynchronous work. Its status, progress, and
// retry bookkeeping are mutated exclusively through the Job Manager; nothing
// else in this module writes to a JobRun row directly.
type JobRun struct {
	ID              int64
	URN             string
	JobFunction     string
	PipelineID      *int64
	Status          JobStatus
	JobParams       json.RawMessage
	Metadata        JobMetadata
	ProgressCurrent int
	ProgressTotal   int
	ProgressMessage string
	StartedAt       *time.Time
	FinishedAt      *time.Time
	RetryCount      int
	MaxRetries      int
	RetryDelay      time.Duration
	FailureCategory FailureCategory
	ErrorMessage    string
	ErrorTraceback  string
	CreatedAt       time.Time
}

// JobMetadata is the JSON scratchpad persisted on JobRun.metadata_: retry
// history, the most recent result, and execution diagnostics. It round-trips
// through a jsonb column, so its fields are exported and tagged for JSON.
type JobMetadata struct {
	Result       json.RawMessage    `json:"result,omitempty"`
	RetryHistory []RetryHistoryItem `json:"retry_history,omitempty"`
	Diagnostics  map[string]any     `json:"diagnostics,omitempty"`
}

// RetryHistoryItem records one prepare_retry call. The list is append-only;
// nothing ever rewrites or removes an entry once appended.
type RetryHistoryItem struct {
	Attempt      int             `json:"attempt"`
	At           time.Time       `json:"at"`
	Reason       string          `json:"reason"`
	PriorResult  json.RawMessage `json:"prior_result,omitempty"`
	PriorFailure FailureCategory `json:"prior_failure,omitempty"`
}

// Pipeline coordinates a set of JobRuns tied together by JobDependency edges.
type Pipeline struct {
	ID         int64
	Status     PipelineStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// JobDependency is a directed edge: JobID depends on DependsOnJobID per
// DependencyType before it may be enqueued.
type JobDependency struct {
	JobID          int64
	DependsOnJobID int64
	DependencyType DependencyType

	// Predecessor is populated by reads that join against the predecessor's
	// JobRun row (the Persistence Gateway's "list dependencies joined with
	// predecessor" read operation); it is not a persisted column.
	Predecessor *JobRun
}

// StatusCounts is an aggregate count of pipeline jobs grouped by status,
// as returned by the Persistence Gateway's aggregate-count read operation.
type StatusCounts map[JobStatus]int

func (c StatusCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

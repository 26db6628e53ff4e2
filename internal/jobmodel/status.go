// Package jobmodel defines the persistent shapes of the job-pipeline runtime:
// JobRun, Pipeline, JobDependency, and the closed-set statuses that govern
// their lifecycle transitions.
package jobmodel

// JobStatus is the closed set of states a JobRun moves through.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
	JobSkipped   JobStatus = "SKIPPED"
)

// Startable statuses can be transitioned to RUNNING.
var startableJobStatuses = map[JobStatus]bool{
	JobPending: true,
	JobQueued:  true,
}

// Terminal statuses never transition further except via retry/reset.
var terminalJobStatuses = map[JobStatus]bool{
	JobSucceeded: true,
	JobFailed:    true,
	JobCancelled: true,
	JobSkipped:   true,
}

// Retryable statuses can move back to PENDING via prepare_retry.
var retryableJobStatuses = map[JobStatus]bool{
	JobFailed:    true,
	JobCancelled: true,
	JobSkipped:   true,
}

// Active statuses are subject to bulk cancellation when a pipeline fails.
var activeJobStatuses = map[JobStatus]bool{
	JobPending: true,
	JobQueued:  true,
	JobRunning: true,
}

func (s JobStatus) Startable() bool { return startableJobStatuses[s] }
func (s JobStatus) Terminal() bool  { return terminalJobStatuses[s] }
func (s JobStatus) Retryable() bool { return retryableJobStatuses[s] }
func (s JobStatus) Active() bool    { return activeJobStatuses[s] }

// PipelineStatus is the closed set of states a Pipeline moves through.
type PipelineStatus string

const (
	PipelineCreated   PipelineStatus = "CREATED"
	PipelineRunning   PipelineStatus = "RUNNING"
	PipelinePaused    PipelineStatus = "PAUSED"
	PipelineSucceeded PipelineStatus = "SUCCEEDED"
	PipelinePartial   PipelineStatus = "PARTIAL"
	PipelineFailed    PipelineStatus = "FAILED"
	PipelineCancelled PipelineStatus = "CANCELLED"
)

var startablePipelineStatuses = map[PipelineStatus]bool{
	PipelineCreated: true,
	PipelinePaused:  true,
}

var terminalPipelineStatuses = map[PipelineStatus]bool{
	PipelineSucceeded: true,
	PipelinePartial:   true,
	PipelineFailed:    true,
	PipelineCancelled: true,
}

func (s PipelineStatus) Startable() bool { return startablePipelineStatuses[s] }
func (s PipelineStatus) Terminal() bool  { return terminalPipelineStatuses[s] }

// FailureCategory classifies why a job failed, for retry eligibility.
type FailureCategory string

const (
	FailureNetworkError       FailureCategory = "NETWORK_ERROR"
	FailureTimeout            FailureCategory = "TIMEOUT"
	FailureServiceUnavailable FailureCategory = "SERVICE_UNAVAILABLE"
	FailureValidationError    FailureCategory = "VALIDATION_ERROR"
	FailureUnknown            FailureCategory = "UNKNOWN"
)

// retryableFailureCategories are the categories should_retry treats as transient.
var retryableFailureCategories = map[FailureCategory]bool{
	FailureNetworkError:       true,
	FailureTimeout:            true,
	FailureServiceUnavailable: true,
}

func (c FailureCategory) Retryable() bool { return retryableFailureCategories[c] }

// DependencyType governs whether a dependent may run given its predecessor's status.
type DependencyType string

const (
	SuccessRequired    DependencyType = "SUCCESS_REQUIRED"
	CompletionRequired DependencyType = "COMPLETION_REQUIRED"
)

// DependencyOutcome is the result of evaluating one predecessor against a dependency type.
type DependencyOutcome int

const (
	// DependencyWait means the predecessor has not reached a terminal status yet.
	DependencyWait DependencyOutcome = iota
	// DependencySatisfied means the dependent may proceed as far as this edge is concerned.
	DependencySatisfied
	// DependencyUnreachable means this edge forbids the dependent from ever running.
	DependencyUnreachable
)

// Evaluate implements the dependency evaluation truth table from the spec:
//
//	predecessor status      | SUCCESS_REQUIRED     | COMPLETION_REQUIRED
//	PENDING/QUEUED/RUNNING   | wait                 | wait
//	SUCCEEDED                | satisfied            | satisfied
//	FAILED                    | unreachable          | satisfied
//	SKIPPED/CANCELLED         | unreachable          | unreachable
func Evaluate(dt DependencyType, predecessor JobStatus) DependencyOutcome {
	switch predecessor {
	case JobSucceeded:
		return DependencySatisfied
	case JobFailed:
		if dt == CompletionRequired {
			return DependencySatisfied
		}
		return DependencyUnreachable
	case JobSkipped, JobCancelled:
		return DependencyUnreachable
	default: // PENDING, QUEUED, RUNNING
		return DependencyWait
	}
}

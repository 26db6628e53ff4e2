// Package decorator implements the Pipeline-Management Decorator described
// in spec §4.5: the dispatch wrapper every job function runs inside. It
// instantiates the Job Manager (and Pipeline Manager, if the job belongs to
// one), brackets the job function with start/complete/coordinate, and is the
// sole component in the worker that calls Commit.
package decorator

// Status is the tag of a JobResult, mirroring the four-variant sum type
// spec §9 calls for.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// JobResult is what a job function returns: an opaque JSON payload plus a
// status tag and, on a non-ok outcome, the causing error. The decorator
// passes it as-is to the Job Manager, which stores it verbatim under the
// job's metadata_.result column.
type JobResult struct {
	Status    Status `json:"status"`
	Data      any    `json:"data,omitempty"`
	Exception string `json:"exception,omitempty"`
}

// Ok builds a successful result.
func Ok(data any) JobResult {
	return JobResult{Status: StatusOK, Data: data}
}

// Failed builds a failed result carrying the causing error's message.
func Failed(data any, err error) JobResult {
	r := JobResult{Status: StatusFailed, Data: data}
	if err != nil {
		r.Exception = err.Error()
	}
	return r
}

// Skipped builds a skipped result; used by jobs like the UniProt poller that
// find nothing ready to do on a given pass.
func Skipped(data any) JobResult {
	return JobResult{Status: StatusSkipped, Data: data}
}

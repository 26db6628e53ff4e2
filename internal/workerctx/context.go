// Package workerctx bundles the shared handles every job function receives
// on each dispatch: the enclosing transaction (doubling as the opaque
// domain gateway and the Annotation Status Manager's backing store), the
// Job Manager bound to the running job, the queue gateway for self/
// successor enqueues, the executor pool for blocking external calls, the
// external-service clients, object storage, and configuration. This is the
// Go shape of spec §4.8's "same context... DB session, queue client,
// external clients, executor pool" given to every job function.
package workerctx

import (
	"github.com/mavedb/worker/internal/annotation"
	"github.com/mavedb/worker/internal/config"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/externalclients"
	"github.com/mavedb/worker/internal/jobmanager"
	"github.com/mavedb/worker/internal/objectstorage"
	"github.com/mavedb/worker/internal/persistence"
	"github.com/mavedb/worker/internal/queue"
	"github.com/mavedb/worker/internal/scoreset"
)

// Context is passed to every job function by the decorator.
type Context struct {
	Tx          persistence.Tx
	ScoreSets   scoreset.Gateway
	Annotations *annotation.Manager
	JobManager  *jobmanager.Manager

	Queue    queue.Gateway
	Executor *executor.Pool
	Clients  *externalclients.Clients
	Storage  objectstorage.Downloader
	Config   *config.Config

	// JobID, JobURN, and PipelineID identify the job function's own JobRun,
	// so a job function that chains a follow-on (or re-enqueues itself with
	// backoff, as link_clingen_variants does) can build the new JobRun
	// without a round trip to load its own row.
	JobID      int64
	JobURN     string
	PipelineID *int64
}

package jobs

import (
	"github.com/mavedb/worker/internal/annotation"
	"github.com/mavedb/worker/internal/config"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/externalclients"
	"github.com/mavedb/worker/internal/jobmanager"
	"github.com/mavedb/worker/internal/objectstorage"
	"github.com/mavedb/worker/internal/queue"
	"github.com/mavedb/worker/internal/workerctx"
)

// newWorkerCtx builds a *workerctx.Context over s the way the decorator
// does for a real transaction, wired to the given queue/downloader/clients/
// config and bound to jobID.
func newWorkerCtx(s *fakeStore, jobID int64, q queue.Gateway, dl objectstorage.Downloader, clients *externalclients.Clients, cfg *config.Config) *workerctx.Context {
	return &workerctx.Context{
		Tx:          fakeTx{s},
		ScoreSets:   s,
		Annotations: annotation.New(s),
		JobManager:  jobmanager.New(s, jobID),
		Queue:       q,
		Executor:    executor.New(4),
		Clients:     clients,
		Storage:     dl,
		Config:      cfg,
		JobID:       jobID,
	}
}

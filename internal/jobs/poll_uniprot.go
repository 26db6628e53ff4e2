package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/workerctx"
)

// PollUniprotMappingJobsForScoreSet polls each outstanding UniProt
// ID-mapping submission for a score set. A job id that isn't ready yet is
// logged and skipped — the next run of this poll job (itself re-enqueued
// by whatever schedules periodic polling) will catch up on it, per spec
// §4.6. Ready, unambiguous results update the target gene's UniProt
// metadata.
func PollUniprotMappingJobsForScoreSet(ctx context.Context, jobParams []byte, wc *workerctx.Context) (decorator.JobResult, error) {
	params, err := decodeParams[PollUniprotParams](jobParams)
	if err != nil {
		return decorator.JobResult{}, err
	}

	if len(params.SubmittedJobIDs) == 0 {
		return decorator.Skipped(map[string]any{"reason": "no outstanding UniProt submissions"}), nil
	}

	resolved := 0
	pending := 0
	for targetGeneKey, jobID := range params.SubmittedJobIDs {
		targetGeneID, err := strconv.ParseInt(targetGeneKey, 10, 64)
		if err != nil {
			slog.WarnContext(ctx, "skipping malformed target gene key in poll params", "key", targetGeneKey)
			continue
		}

		ready, err := executor.Submit(ctx, wc.Executor, func(ctx context.Context) (bool, error) {
			return wc.Clients.UniProt.CheckReady(ctx, jobID)
		})
		if err != nil {
			slog.WarnContext(ctx, "UniProt readiness check failed, will retry on next poll", "target_gene_id", targetGeneID, "job_id", jobID, "error", err)
			pending++
			continue
		}
		if !ready {
			slog.InfoContext(ctx, "UniProt mapping job not ready yet", "target_gene_id", targetGeneID, "job_id", jobID)
			pending++
			continue
		}

		results, err := executor.Submit(ctx, wc.Executor, func(ctx context.Context) ([]byte, error) {
			return wc.Clients.UniProt.GetResults(ctx, jobID)
		})
		if err != nil {
			slog.WarnContext(ctx, "UniProt results fetch failed, will retry on next poll", "target_gene_id", targetGeneID, "job_id", jobID, "error", err)
			pending++
			continue
		}

		mapping, err := wc.Clients.UniProt.ExtractID(results)
		if err != nil {
			slog.WarnContext(ctx, "UniProt results decode failed, will retry on next poll", "target_gene_id", targetGeneID, "job_id", jobID, "error", err)
			pending++
			continue
		}

		accession := params.Accessions[targetGeneKey]
		uniprotID, ok := mapping[accession]
		if !ok {
			slog.InfoContext(ctx, "UniProt mapping ambiguous or absent for accession, skipping", "target_gene_id", targetGeneID, "accession", accession)
			continue
		}

		if err := wc.ScoreSets.UpdateTargetGeneUniProtData(ctx, targetGeneID, uniprotID, results); err != nil {
			return decorator.JobResult{}, fmt.Errorf("jobs: update UniProt data for target gene %d: %w", targetGeneID, err)
		}
		resolved++
	}

	if err := wc.JobManager.UpdateProgress(ctx, 100, 100, "committed"); err != nil {
		return decorator.JobResult{}, err
	}

	if resolved == 0 {
		return decorator.Skipped(map[string]any{"resolved": resolved, "pending": pending}), nil
	}
	return decorator.Ok(map[string]any{"resolved": resolved, "pending": pending}), nil
}

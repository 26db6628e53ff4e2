package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/externalclients"
	"github.com/mavedb/worker/internal/jobserr"
	"github.com/mavedb/worker/internal/workerctx"
)

// LinkClingenVariants fetches each current-post-mapped variant's ClinGen
// variation and extracts a CAID, per spec §4.6. If the ratio of linkage
// failures exceeds LinkedDataRetryThreshold, it re-enqueues itself with
// LinkingBackoffSeconds of backoff (up to EnqueueBackoffAttemptLimit
// attempts), passing attempt+1; otherwise it chains link_gnomad_variants.
func LinkClingenVariants(ctx context.Context, jobParams []byte, wc *workerctx.Context) (decorator.JobResult, error) {
	params, err := decodeParams[LinkClingenParams](jobParams)
	if err != nil {
		return decorator.JobResult{}, err
	}

	mappedVariants, err := wc.ScoreSets.ListCurrentMappedVariants(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: list current mapped variants for score set %d: %w", params.ScoreSetID, err)
	}
	variants, err := wc.ScoreSets.ListVariants(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: list variants for score set %d: %w", params.ScoreSetID, err)
	}
	variantURNs := make(map[int64]string, len(variants))
	for _, v := range variants {
		variantURNs[v.ID] = v.URN
	}

	eligible := 0
	failed := 0
	for _, mv := range mappedVariants {
		if len(mv.PostMapped) == 0 {
			continue
		}
		eligible++

		urn, ok := variantURNs[mv.VariantID]
		if !ok {
			failed++
			continue
		}

		variation, err := executor.Submit(ctx, wc.Executor, func(ctx context.Context) (*externalclients.Variation, error) {
			return wc.Clients.LDH.GetClinGenVariation(ctx, urn)
		})
		if err != nil || variation == nil || variation.CAID == "" {
			failed++
			continue
		}

		if err := wc.ScoreSets.UpdateMappedVariantCAID(ctx, mv.ID, variation.CAID); err != nil {
			return decorator.JobResult{}, fmt.Errorf("jobs: record CAID for mapped variant %d: %w", mv.ID, err)
		}
	}
	if err := wc.JobManager.UpdateProgress(ctx, 80, 100, "linkage attempted"); err != nil {
		return decorator.JobResult{}, err
	}

	if eligible == 0 {
		slog.InfoContext(ctx, "no current-post-mapped variants to link, skipping gnomAD enqueue", "score_set_id", params.ScoreSetID)
		if err := wc.JobManager.UpdateProgress(ctx, 100, 100, "no eligible variants"); err != nil {
			return decorator.JobResult{}, err
		}
		return decorator.Ok(map[string]any{"success": true, "retried": false, "eligible": 0}), nil
	}

	var failureRatio float64
	if eligible > 0 {
		failureRatio = float64(failed) / float64(eligible)
	}

	if failureRatio > wc.Config.External.LinkedDataRetryThreshold && params.Attempt < wc.Config.External.EnqueueBackoffAttemptLimit {
		backoff := time.Duration(wc.Config.External.LinkingBackoffSeconds) * time.Second
		newJobID, _, err := chainJob(ctx, wc, "link_clingen_variants", LinkClingenParams{
			ScoreSetID:    params.ScoreSetID,
			CorrelationID: params.CorrelationID,
			Attempt:       params.Attempt + 1,
		}, backoff)
		if err != nil {
			return decorator.JobResult{}, err
		}
		if err := wc.JobManager.UpdateProgress(ctx, 100, 100, "re-enqueued with backoff"); err != nil {
			return decorator.JobResult{}, err
		}
		return decorator.Ok(map[string]any{"success": true, "retried": true, "enqueued_job": newJobID}), nil
	}

	if failureRatio > wc.Config.External.LinkedDataRetryThreshold {
		return decorator.Failed(map[string]any{"failed": failed, "eligible": eligible}, &jobserr.LinkingError{
			Service: "ClinGen", Failed: failed, Total: eligible,
			Err: fmt.Errorf("linkage failure ratio %.2f exceeded threshold after %d attempts", failureRatio, params.Attempt),
		}), nil
	}

	newJobID, _, err := chainJob(ctx, wc, "link_gnomad_variants", LinkGnomadParams{
		ScoreSetID:    params.ScoreSetID,
		CorrelationID: params.CorrelationID,
	}, 0)
	if err != nil {
		return decorator.JobResult{}, err
	}

	if err := wc.JobManager.UpdateProgress(ctx, 100, 100, "committed"); err != nil {
		return decorator.JobResult{}, err
	}
	return decorator.Ok(map[string]any{"success": true, "retried": false, "enqueued_job": newJobID}), nil
}

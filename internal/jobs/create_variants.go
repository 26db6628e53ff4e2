package jobs

import (
	"context"
	"fmt"

	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/jobserr"
	"github.com/mavedb/worker/internal/scoreset"
	"github.com/mavedb/worker/internal/workerctx"
)

// CreateVariantsForScoreSet replaces every variant attached to a score set
// from an uploaded scores file (and optional counts file), per spec §4.6.
// Progress runs 0% (start) -> 10% (metadata validated) -> 80% (dataframe
// validated) -> 100% (commit). A score set with no target genes fails fast:
// there is nothing to map variants against.
func CreateVariantsForScoreSet(ctx context.Context, jobParams []byte, wc *workerctx.Context) (decorator.JobResult, error) {
	params, err := decodeParams[CreateVariantsParams](jobParams)
	if err != nil {
		return decorator.JobResult{}, err
	}

	if err := wc.JobManager.UpdateProgress(ctx, 0, 100, "starting"); err != nil {
		return decorator.JobResult{}, err
	}

	ss, err := wc.ScoreSets.GetScoreSet(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: load score set %d: %w", params.ScoreSetID, err)
	}

	targetGenes, err := wc.ScoreSets.ListTargetGenes(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: list target genes for score set %d: %w", params.ScoreSetID, err)
	}
	if len(targetGenes) == 0 {
		failErr := &jobserr.ValidationError{Classification: "score set has no target genes"}
		return failCreateVariants(ctx, wc, ss, failErr)
	}

	if err := validateColumnsMetadata(params.ScoreColumnsMeta); err != nil {
		return failCreateVariants(ctx, wc, ss, err)
	}
	if params.CountsFileKey != "" {
		if err := validateColumnsMetadata(params.CountColumnsMeta); err != nil {
			return failCreateVariants(ctx, wc, ss, err)
		}
	}
	if err := wc.JobManager.UpdateProgress(ctx, 10, 100, "metadata validated"); err != nil {
		return decorator.JobResult{}, err
	}

	scoresData, err := downloadBlocking(ctx, wc, params.ObjectStorageBucket, params.ScoresFileKey)
	if err != nil {
		return failCreateVariants(ctx, wc, ss, err)
	}
	scoreRows, err := parseDataframe(scoresData, params.ScoreColumnsMeta)
	if err != nil {
		return failCreateVariants(ctx, wc, ss, err)
	}

	if params.CountsFileKey != "" {
		countsData, err := downloadBlocking(ctx, wc, params.ObjectStorageBucket, params.CountsFileKey)
		if err != nil {
			return failCreateVariants(ctx, wc, ss, err)
		}
		if _, err := parseDataframe(countsData, params.CountColumnsMeta); err != nil {
			return failCreateVariants(ctx, wc, ss, err)
		}
	}
	if err := wc.JobManager.UpdateProgress(ctx, 80, 100, "dataframe validated"); err != nil {
		return decorator.JobResult{}, err
	}

	variants := make([]scoreset.Variant, len(scoreRows))
	for i, row := range scoreRows {
		variants[i] = scoreset.Variant{ScoreSetID: params.ScoreSetID, URN: row.HGVS}
	}
	created, err := wc.ScoreSets.ReplaceVariants(ctx, params.ScoreSetID, variants)
	if err != nil {
		return failCreateVariants(ctx, wc, ss, err)
	}

	ss.ProcessingState = scoreset.ProcessingSuccess
	ss.MappingState = scoreset.MappingQueued
	ss.ProcessingErrors = nil
	if err := wc.ScoreSets.UpdateScoreSet(ctx, ss); err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: update score set %d after variant creation: %w", params.ScoreSetID, err)
	}

	if err := wc.JobManager.UpdateProgress(ctx, 100, 100, "committed"); err != nil {
		return decorator.JobResult{}, err
	}

	return decorator.Ok(map[string]any{"variant_count": len(created)}), nil
}

// failCreateVariants marks the score set failed with a classified error
// detail and returns a failed JobResult, never an uncaught error — a
// malformed upload is an expected, operator-visible outcome, not a defect.
func failCreateVariants(ctx context.Context, wc *workerctx.Context, ss *scoreset.ScoreSet, cause error) (decorator.JobResult, error) {
	ss.ProcessingState = scoreset.ProcessingFailed
	ss.MappingState = scoreset.MappingNotAttempted
	ss.ProcessingErrors = mustJSON(map[string]string{"error": cause.Error()})
	if updErr := wc.ScoreSets.UpdateScoreSet(ctx, ss); updErr != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: record processing failure for score set %d: %w", ss.ID, updErr)
	}
	return decorator.Failed(nil, cause), nil
}

// downloadBlocking fetches an object through the executor pool: object
// storage reads are blocking I/O and must not run on the dispatch
// goroutine directly, per spec §4.6/§5.
func downloadBlocking(ctx context.Context, wc *workerctx.Context, bucket, key string) ([]byte, error) {
	return executor.Submit(ctx, wc.Executor, func(ctx context.Context) ([]byte, error) {
		return wc.Storage.Download(ctx, bucket, key)
	})
}

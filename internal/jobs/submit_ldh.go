package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/jobserr"
	"github.com/mavedb/worker/internal/externalclients"
	"github.com/mavedb/worker/internal/workerctx"
)

// SubmitScoreSetMappingsToLDH builds LDH submission documents from
// (variant, mapped_variant, hgvs) triples, dispatches them in batches, and
// requires zero submission failures for success. Chains
// link_clingen_variants with a fixed linking backoff, per spec §4.6.
func SubmitScoreSetMappingsToLDH(ctx context.Context, jobParams []byte, wc *workerctx.Context) (decorator.JobResult, error) {
	params, err := decodeParams[SubmitLDHParams](jobParams)
	if err != nil {
		return decorator.JobResult{}, err
	}

	if !wc.Config.External.LDHEnabled() {
		return decorator.Skipped(map[string]any{"reason": "LDH submission disabled"}), nil
	}

	variants, err := wc.ScoreSets.ListVariants(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: list variants for score set %d: %w", params.ScoreSetID, err)
	}
	variantURNs := make(map[int64]string, len(variants))
	for _, v := range variants {
		variantURNs[v.ID] = v.URN
	}

	mappedVariants, err := wc.ScoreSets.ListCurrentMappedVariants(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: list current mapped variants for score set %d: %w", params.ScoreSetID, err)
	}

	submissions := make([]externalclients.LDHSubmission, 0, len(mappedVariants))
	for _, mv := range mappedVariants {
		var doc postMappedDoc
		if err := json.Unmarshal(mv.PostMapped, &doc); err != nil || doc.HGVS == "" {
			continue
		}
		submissions = append(submissions, externalclients.LDHSubmission{
			VariantURN: variantURNs[mv.VariantID],
			HGVS:       doc.HGVS,
			Document:   mv.PostMapped,
		})
	}
	if err := wc.JobManager.UpdateProgress(ctx, 20, 100, "built submission batch"); err != nil {
		return decorator.JobResult{}, err
	}

	if _, err := executor.Submit(ctx, wc.Executor, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, wc.Clients.LDH.Authenticate(ctx)
	}); err != nil {
		return decorator.Failed(nil, fmt.Errorf("LDH authentication failed: %w", err)), nil
	}

	batchSize := wc.Config.External.DefaultLDHSubmissionBatchSize
	type dispatchOutcome struct{ successes, failures int }
	outcome, err := executor.Submit(ctx, wc.Executor, func(ctx context.Context) (dispatchOutcome, error) {
		s, f, err := wc.Clients.LDH.DispatchSubmissions(ctx, submissions, batchSize)
		return dispatchOutcome{successes: s, failures: f}, err
	})
	successes, failures := outcome.successes, outcome.failures
	if err != nil {
		return decorator.Failed(nil, &jobserr.SubmissionError{Service: "LDH", Failed: len(submissions), Total: len(submissions), Err: err}), nil
	}
	if err := wc.JobManager.UpdateProgress(ctx, 70, 100, "LDH responded"); err != nil {
		return decorator.JobResult{}, err
	}

	if failures > 0 {
		return decorator.Failed(map[string]any{"successes": successes, "failures": failures}, &jobserr.SubmissionError{
			Service: "LDH", Failed: failures, Total: len(submissions),
			Err: fmt.Errorf("%d of %d submissions rejected", failures, len(submissions)),
		}), nil
	}

	backoff := time.Duration(wc.Config.External.LinkingBackoffSeconds) * time.Second
	if _, _, err := chainJob(ctx, wc, "link_clingen_variants", LinkClingenParams{
		ScoreSetID:    params.ScoreSetID,
		CorrelationID: params.CorrelationID,
		Attempt:       1,
	}, backoff); err != nil {
		return decorator.JobResult{}, err
	}

	if err := wc.JobManager.UpdateProgress(ctx, 100, 100, "committed"); err != nil {
		return decorator.JobResult{}, err
	}
	return decorator.Ok(map[string]any{"successes": successes}), nil
}

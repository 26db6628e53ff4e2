package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/externalclients"
	"github.com/mavedb/worker/internal/jobserr"
	"github.com/mavedb/worker/internal/workerctx"
)

// postMappedDoc is the subset of a MappedVariant's post_mapped document the
// external-submission jobs read: the VRS HGVS expression.
type postMappedDoc struct {
	HGVS string `json:"hgvs"`
}

// SubmitScoreSetMappingsToCAR dispatches the unique HGVS strings derived
// from a score set's current post-mapped variants to the ClinGen Allele
// Registry and writes the returned CAIDs back, then chains
// submit_score_set_mappings_to_ldh, per spec §4.6.
func SubmitScoreSetMappingsToCAR(ctx context.Context, jobParams []byte, wc *workerctx.Context) (decorator.JobResult, error) {
	params, err := decodeParams[SubmitCARParams](jobParams)
	if err != nil {
		return decorator.JobResult{}, err
	}

	if !wc.Config.External.CAREnabled() {
		return decorator.Skipped(map[string]any{"reason": "CAR submission disabled"}), nil
	}

	mappedVariants, err := wc.ScoreSets.ListCurrentMappedVariants(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: list current mapped variants for score set %d: %w", params.ScoreSetID, err)
	}

	hgvsToMappedVariant := map[string]int64{}
	for _, mv := range mappedVariants {
		var doc postMappedDoc
		if err := json.Unmarshal(mv.PostMapped, &doc); err != nil || doc.HGVS == "" {
			continue
		}
		hgvsToMappedVariant[doc.HGVS] = mv.ID
	}
	if err := wc.JobManager.UpdateProgress(ctx, 20, 100, "built hgvs set"); err != nil {
		return decorator.JobResult{}, err
	}

	hgvsList := make([]string, 0, len(hgvsToMappedVariant))
	for hgvs := range hgvsToMappedVariant {
		hgvsList = append(hgvsList, hgvs)
	}

	alleles, err := executor.Submit(ctx, wc.Executor, func(ctx context.Context) ([]externalclients.RegisteredAllele, error) {
		return wc.Clients.CAR.DispatchSubmissions(ctx, hgvsList)
	})
	if err != nil {
		return decorator.Failed(nil, &jobserr.SubmissionError{Service: "CAR", Failed: len(hgvsList), Total: len(hgvsList), Err: err}), nil
	}
	if err := wc.JobManager.UpdateProgress(ctx, 70, 100, "CAR responded"); err != nil {
		return decorator.JobResult{}, err
	}

	associated := 0
	for _, allele := range alleles {
		mappedVariantID, ok := hgvsToMappedVariant[allele.HGVS]
		if !ok {
			continue
		}
		if err := wc.ScoreSets.UpdateMappedVariantCAID(ctx, mappedVariantID, allele.CAID); err != nil {
			return decorator.JobResult{}, fmt.Errorf("jobs: record CAID for mapped variant %d: %w", mappedVariantID, err)
		}
		associated++
	}

	if _, _, err := chainJob(ctx, wc, "submit_score_set_mappings_to_ldh", SubmitLDHParams{
		ScoreSetID:    params.ScoreSetID,
		CorrelationID: params.CorrelationID,
	}, 0); err != nil {
		return decorator.JobResult{}, err
	}

	if err := wc.JobManager.UpdateProgress(ctx, 100, 100, "committed"); err != nil {
		return decorator.JobResult{}, err
	}
	return decorator.Ok(map[string]any{"submitted": len(hgvsList), "associated": associated}), nil
}

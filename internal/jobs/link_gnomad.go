package jobs

import (
	"context"
	"fmt"

	"github.com/mavedb/worker/internal/annotation"
	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/externalclients"
	"github.com/mavedb/worker/internal/jobserr"
	"github.com/mavedb/worker/internal/workerctx"
)

// gnomadAnnotation is the annotation_data shape recorded for a gnomAD
// linkage outcome.
type gnomadAnnotation struct {
	Frequency any `json:"frequency,omitempty"`
	Context   any `json:"context,omitempty"`
}

// LinkGnomadVariants looks up gnomAD records keyed by CAID and joins them
// against current mapped variants, recording the outcome through the
// Annotation Status Manager, per spec §4.6/§4.7.
func LinkGnomadVariants(ctx context.Context, jobParams []byte, wc *workerctx.Context) (decorator.JobResult, error) {
	params, err := decodeParams[LinkGnomadParams](jobParams)
	if err != nil {
		return decorator.JobResult{}, err
	}

	mappedVariants, err := wc.ScoreSets.ListCurrentMappedVariants(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: list current mapped variants for score set %d: %w", params.ScoreSetID, err)
	}

	caids := make([]string, 0, len(mappedVariants))
	byCAID := map[string]int64{} // caid -> variant_id
	for _, mv := range mappedVariants {
		if mv.CAID == "" {
			continue
		}
		caids = append(caids, mv.CAID)
		byCAID[mv.CAID] = mv.VariantID
	}
	if err := wc.JobManager.UpdateProgress(ctx, 20, 100, "built caid set"); err != nil {
		return decorator.JobResult{}, err
	}

	records, err := executor.Submit(ctx, wc.Executor, func(ctx context.Context) ([]externalclients.GnomadRecord, error) {
		return wc.Clients.Gnomad.DataForCAIDs(ctx, caids)
	})
	if err != nil {
		return decorator.Failed(nil, &jobserr.LinkingError{Service: "gnomAD", Failed: len(caids), Total: len(caids), Err: err}), nil
	}
	if err := wc.JobManager.UpdateProgress(ctx, 70, 100, "gnomAD responded"); err != nil {
		return decorator.JobResult{}, err
	}

	linked := 0
	for _, rec := range records {
		variantID, ok := byCAID[rec.CAID]
		if !ok {
			continue
		}
		if _, err := wc.Annotations.AddAnnotation(ctx, variantID, annotation.TypeGnomadLinkage, "", annotation.StatusSuccess, gnomadAnnotation{
			Frequency: rec.Frequency,
			Context:   rec.Context,
		}, true); err != nil {
			return decorator.JobResult{}, fmt.Errorf("jobs: record gnomAD linkage for variant %d: %w", variantID, err)
		}
		linked++
	}

	if err := wc.JobManager.UpdateProgress(ctx, 100, 100, "committed"); err != nil {
		return decorator.JobResult{}, err
	}
	return decorator.Ok(map[string]any{"linked": linked, "total": len(caids)}), nil
}

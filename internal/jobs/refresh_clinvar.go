package jobs

import (
	"context"
	"fmt"

	"github.com/mavedb/worker/internal/annotation"
	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/scoreset"
	"github.com/mavedb/worker/internal/workerctx"
)

// clinvarFailure is the closed set of refresh_clinvar_controls failure
// categories named in spec §4.6.
type clinvarFailure string

const (
	failureMissingCAID           clinvarFailure = "missing_clingen_allele_id"
	failureMultiVariantAlleleID  clinvarFailure = "multi_variant_clingen_allele_id"
	failureClingenAPIError       clinvarFailure = "clingen_api_error"
	failureNoAssociatedClinvarID clinvarFailure = "no_associated_clinvar_allele_id"
	failureNoClinvarVariantData  clinvarFailure = "no_clinvar_variant_data"
)

// RefreshClinvarControls fetches a month's ClinVar variant summary and, for
// each current mapped variant with a CAID, resolves its ClinVar allele id
// via ClinGen and upserts a versioned ClinicalControl row, per spec §4.6.
// Every variant's outcome is recorded through the Annotation Status
// Manager with a closed-set failure_category on anything but success.
func RefreshClinvarControls(ctx context.Context, jobParams []byte, wc *workerctx.Context) (decorator.JobResult, error) {
	params, err := decodeParams[RefreshClinvarControlsParams](jobParams)
	if err != nil {
		return decorator.JobResult{}, err
	}

	tsv, err := executor.Submit(ctx, wc.Executor, func(ctx context.Context) ([]byte, error) {
		return wc.Clients.ClinVar.FetchVariantSummaryTSV(ctx, params.Year, params.Month)
	})
	if err != nil {
		return decorator.Failed(nil, fmt.Errorf("fetch ClinVar variant summary for %04d-%02d: %w", params.Year, params.Month, err)), nil
	}
	records, err := wc.Clients.ClinVar.Parse(tsv)
	if err != nil {
		return decorator.Failed(nil, fmt.Errorf("parse ClinVar variant summary for %04d-%02d: %w", params.Year, params.Month, err)), nil
	}
	if err := wc.JobManager.UpdateProgress(ctx, 20, 100, "ClinVar summary loaded"); err != nil {
		return decorator.JobResult{}, err
	}

	mappedVariants, err := wc.ScoreSets.ListCurrentMappedVariants(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: list current mapped variants for score set %d: %w", params.ScoreSetID, err)
	}

	version := fmt.Sprintf("%02d_%04d", params.Month, params.Year)
	seenAlleleIDs := map[string]bool{}
	resolved := 0

	for _, mv := range mappedVariants {
		if mv.CAID == "" {
			if err := recordClinvarOutcome(ctx, wc, mv.VariantID, version, annotation.StatusSkipped, failureMissingCAID); err != nil {
				return decorator.JobResult{}, err
			}
			continue
		}

		alleleID, err := executor.Submit(ctx, wc.Executor, func(ctx context.Context) (string, error) {
			return wc.Clients.CAR.ResolveClinvarAlleleID(ctx, mv.CAID)
		})
		if err != nil {
			if recErr := recordClinvarOutcome(ctx, wc, mv.VariantID, version, annotation.StatusFailed, failureClingenAPIError); recErr != nil {
				return decorator.JobResult{}, recErr
			}
			continue
		}
		if alleleID == "" {
			if recErr := recordClinvarOutcome(ctx, wc, mv.VariantID, version, annotation.StatusSkipped, failureNoAssociatedClinvarID); recErr != nil {
				return decorator.JobResult{}, recErr
			}
			continue
		}
		if seenAlleleIDs[alleleID] {
			if recErr := recordClinvarOutcome(ctx, wc, mv.VariantID, version, annotation.StatusSkipped, failureMultiVariantAlleleID); recErr != nil {
				return decorator.JobResult{}, recErr
			}
			continue
		}
		seenAlleleIDs[alleleID] = true

		record, ok := records[alleleID]
		if !ok {
			if recErr := recordClinvarOutcome(ctx, wc, mv.VariantID, version, annotation.StatusSkipped, failureNoClinvarVariantData); recErr != nil {
				return decorator.JobResult{}, recErr
			}
			continue
		}

		if _, err := wc.ScoreSets.UpsertClinicalControl(ctx, &scoreset.ClinicalControl{
			MappedVariantID: mv.ID,
			Version:         version,
			Data:            mustJSON(record),
		}); err != nil {
			return decorator.JobResult{}, fmt.Errorf("jobs: upsert clinical control for mapped variant %d: %w", mv.ID, err)
		}
		if _, err := wc.Annotations.AddAnnotation(ctx, mv.VariantID, annotation.TypeClinvarControl, version, annotation.StatusSuccess, record, true); err != nil {
			return decorator.JobResult{}, fmt.Errorf("jobs: record ClinVar annotation for variant %d: %w", mv.VariantID, err)
		}
		resolved++
	}

	if err := wc.JobManager.UpdateProgress(ctx, 100, 100, "committed"); err != nil {
		return decorator.JobResult{}, err
	}
	return decorator.Ok(map[string]any{"resolved": resolved, "total": len(mappedVariants)}), nil
}

// recordClinvarOutcome records a non-success outcome for a variant's
// ClinVar refresh attempt, tagging it with the closed-set failure_category
// spec §4.6 names.
func recordClinvarOutcome(ctx context.Context, wc *workerctx.Context, variantID int64, version string, status annotation.Status, category clinvarFailure) error {
	_, err := wc.Annotations.AddAnnotation(ctx, variantID, annotation.TypeClinvarControl, version, status, map[string]string{
		"failure_category": string(category),
	}, true)
	return err
}

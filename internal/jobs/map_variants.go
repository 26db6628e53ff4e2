package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/externalclients"
	"github.com/mavedb/worker/internal/jobserr"
	"github.com/mavedb/worker/internal/scoreset"
	"github.com/mavedb/worker/internal/workerctx"
)

// vrsMappingRequest is the opaque document sent to the VRS mapping service:
// just enough for it to shape mapped_scores keyed by variant urn.
type vrsMappingRequest struct {
	ScoreSetURN string   `json:"score_set_urn"`
	VariantURNs []string `json:"variant_urns"`
}

// MapVariantsForScoreSet calls the VRS mapping service, off the event loop
// via the executor pool, and rewrites each mapped variant's current
// association, per spec §4.6. Partial success (some variants mapped, some
// not) is a valid terminal outcome; complete per-variant failure still
// returns an ok result with mapping_state = failed. Document-level
// failures — no results, no mapped scores, no reference metadata — are
// distinct fatal kinds surfaced as a failed result instead.
func MapVariantsForScoreSet(ctx context.Context, jobParams []byte, wc *workerctx.Context) (decorator.JobResult, error) {
	params, err := decodeParams[MapVariantsParams](jobParams)
	if err != nil {
		return decorator.JobResult{}, err
	}

	ss, err := wc.ScoreSets.GetScoreSet(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: load score set %d: %w", params.ScoreSetID, err)
	}

	variants, err := wc.ScoreSets.ListVariants(ctx, params.ScoreSetID)
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: list variants for score set %d: %w", params.ScoreSetID, err)
	}
	if err := wc.JobManager.UpdateProgress(ctx, 0, 100, "starting"); err != nil {
		return decorator.JobResult{}, err
	}

	variantURNs := make([]string, len(variants))
	byURN := make(map[string]scoreset.Variant, len(variants))
	for i, v := range variants {
		variantURNs[i] = v.URN
		byURN[v.URN] = v
	}

	reqBody, err := json.Marshal(vrsMappingRequest{ScoreSetURN: ss.URN, VariantURNs: variantURNs})
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: encode VRS mapping request: %w", err)
	}

	result, err := executor.Submit(ctx, wc.Executor, func(ctx context.Context) (*externalclients.MappingResult, error) {
		return wc.Clients.VRS.Map(ctx, reqBody)
	})
	if err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: VRS mapping call failed: %w", err)
	}
	if err := wc.JobManager.UpdateProgress(ctx, 40, 100, "mapping service responded"); err != nil {
		return decorator.JobResult{}, err
	}

	if result == nil {
		return failMapping(ctx, wc, ss, &jobserr.NonexistentMappingResultsError{ScoreSetURN: ss.URN})
	}
	if len(result.MappedScores) == 0 {
		return failMapping(ctx, wc, ss, &jobserr.NonexistentMappingScoresError{ScoreSetURN: ss.URN})
	}
	if len(result.ReferenceSequences) == 0 {
		return failMapping(ctx, wc, ss, &jobserr.NonexistentMappingReferenceError{ScoreSetURN: ss.URN})
	}

	mapped := 0
	for _, score := range result.MappedScores {
		variant, ok := byURN[score.VariantURN]
		if !ok {
			continue
		}
		if _, err := wc.ScoreSets.AddMappedVariant(ctx, &scoreset.MappedVariant{
			VariantID:  variant.ID,
			Current:    true,
			PreMapped:  score.PreMapped,
			PostMapped: score.PostMapped,
		}); err != nil {
			return decorator.JobResult{}, fmt.Errorf("jobs: record mapped variant for %s: %w", variant.URN, err)
		}
		mapped++
	}
	if err := wc.JobManager.UpdateProgress(ctx, 80, 100, "variants mapped"); err != nil {
		return decorator.JobResult{}, err
	}

	if err := applyReferenceSequences(ctx, wc, params.ScoreSetID, result.ReferenceSequences); err != nil {
		return decorator.JobResult{}, err
	}

	switch {
	case mapped == 0:
		ss.MappingState = scoreset.MappingFailed
	case mapped < len(variants):
		ss.MappingState = scoreset.MappingIncomplete
	default:
		ss.MappingState = scoreset.MappingSuccess
	}
	if err := wc.ScoreSets.UpdateScoreSet(ctx, ss); err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: update score set %d mapping state: %w", params.ScoreSetID, err)
	}

	if err := wc.JobManager.UpdateProgress(ctx, 100, 100, "committed"); err != nil {
		return decorator.JobResult{}, err
	}

	return decorator.Ok(map[string]any{"mapped": mapped, "total": len(variants)}), nil
}

// applyReferenceSequences updates every target gene's per-layer reference
// metadata from the mapping result's reference_sequences document, keyed
// by the closed annotation-layer set.
func applyReferenceSequences(ctx context.Context, wc *workerctx.Context, scoreSetID int64, refs map[string]json.RawMessage) error {
	targetGenes, err := wc.ScoreSets.ListTargetGenes(ctx, scoreSetID)
	if err != nil {
		return fmt.Errorf("jobs: list target genes for score set %d: %w", scoreSetID, err)
	}

	layers := []scoreset.AnnotationLayer{scoreset.LayerGenomic, scoreset.LayerCDNA, scoreset.LayerProtein}
	for _, tg := range targetGenes {
		for _, layer := range layers {
			data, ok := refs[string(layer)]
			if !ok {
				continue
			}
			if err := wc.ScoreSets.UpdateTargetGeneRefMetadata(ctx, tg.ID, layer, data); err != nil {
				return fmt.Errorf("jobs: update target gene %d reference metadata for layer %s: %w", tg.ID, layer, err)
			}
		}
	}
	return nil
}

func failMapping(ctx context.Context, wc *workerctx.Context, ss *scoreset.ScoreSet, cause error) (decorator.JobResult, error) {
	ss.MappingState = scoreset.MappingFailed
	if err := wc.ScoreSets.UpdateScoreSet(ctx, ss); err != nil {
		return decorator.JobResult{}, fmt.Errorf("jobs: record mapping failure for score set %d: %w", ss.ID, err)
	}
	return decorator.Failed(nil, cause), nil
}

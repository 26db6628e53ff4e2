package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/mavedb/worker/internal/jobmodel"
	"github.com/mavedb/worker/internal/jobserr"
	"github.com/mavedb/worker/internal/scoreset"
)

func getScoreSet(ctx context.Context, q querier, id int64) (*scoreset.ScoreSet, error) {
	row := q.QueryRow(ctx, `
		SELECT id, urn, target_gene_ids, processing_state, mapping_state, processing_errors
		FROM score_sets WHERE id = $1`, id)

	var ss scoreset.ScoreSet
	var processingState, mappingState string
	var errs []byte
	err := row.Scan(&ss.ID, &ss.URN, &ss.TargetGeneIDs, &processingState, &mappingState, &errs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("score set %d: %w", id, jobmodel.ErrNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get score set", "score_set_id", id, "error", err)
		return nil, &jobserr.DatabaseConnectionError{Err: err}
	}
	ss.ProcessingState = scoreset.ProcessingState(processingState)
	ss.MappingState = scoreset.MappingState(mappingState)
	ss.ProcessingErrors = errs
	return &ss, nil
}

func updateScoreSet(ctx context.Context, q querier, ss *scoreset.ScoreSet) error {
	_, err := q.Exec(ctx, `
		UPDATE score_sets
		SET target_gene_ids = $2, processing_state = $3, mapping_state = $4, processing_errors = $5
		WHERE id = $1`,
		ss.ID, ss.TargetGeneIDs, string(ss.ProcessingState), string(ss.MappingState), nonEmptyJSON(ss.ProcessingErrors))
	if err != nil {
		return fmt.Errorf("postgres: update score set %d: %w", ss.ID, err)
	}
	return nil
}

func replaceVariants(ctx context.Context, q querier, scoreSetID int64, variants []scoreset.Variant) ([]scoreset.Variant, error) {
	if _, err := q.Exec(ctx, `DELETE FROM variants WHERE score_set_id = $1`, scoreSetID); err != nil {
		return nil, fmt.Errorf("postgres: clear variants for score set %d: %w", scoreSetID, err)
	}

	inserted := make([]scoreset.Variant, 0, len(variants))
	for _, v := range variants {
		var id int64
		err := q.QueryRow(ctx, `
			INSERT INTO variants (score_set_id, urn) VALUES ($1, $2) RETURNING id`,
			scoreSetID, v.URN).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("postgres: insert variant %q: %w", v.URN, err)
		}
		v.ID = id
		v.ScoreSetID = scoreSetID
		inserted = append(inserted, v)
	}
	return inserted, nil
}

func listVariants(ctx context.Context, q querier, scoreSetID int64) ([]scoreset.Variant, error) {
	rows, err := q.Query(ctx, `SELECT id, score_set_id, urn FROM variants WHERE score_set_id = $1 ORDER BY id`, scoreSetID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list variants for score set %d: %w", scoreSetID, err)
	}
	defer rows.Close()

	var out []scoreset.Variant
	for rows.Next() {
		var v scoreset.Variant
		if err := rows.Scan(&v.ID, &v.ScoreSetID, &v.URN); err != nil {
			return nil, fmt.Errorf("postgres: scan variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func currentMappedVariant(ctx context.Context, q querier, variantID int64) (*scoreset.MappedVariant, error) {
	row := q.QueryRow(ctx, `
		SELECT id, variant_id, current, pre_mapped, post_mapped, caid
		FROM mapped_variants WHERE variant_id = $1 AND current`, variantID)

	var mv scoreset.MappedVariant
	err := row.Scan(&mv.ID, &mv.VariantID, &mv.Current, &mv.PreMapped, &mv.PostMapped, &mv.CAID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("current mapped variant for variant %d: %w", variantID, jobmodel.ErrNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get current mapped variant", "variant_id", variantID, "error", err)
		return nil, &jobserr.DatabaseConnectionError{Err: err}
	}
	return &mv, nil
}

func listCurrentMappedVariants(ctx context.Context, q querier, scoreSetID int64) ([]scoreset.MappedVariant, error) {
	rows, err := q.Query(ctx, `
		SELECT mv.id, mv.variant_id, mv.current, mv.pre_mapped, mv.post_mapped, mv.caid
		FROM mapped_variants mv
		JOIN variants v ON v.id = mv.variant_id
		WHERE v.score_set_id = $1 AND mv.current`, scoreSetID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list current mapped variants for score set %d: %w", scoreSetID, err)
	}
	defer rows.Close()

	var out []scoreset.MappedVariant
	for rows.Next() {
		var mv scoreset.MappedVariant
		if err := rows.Scan(&mv.ID, &mv.VariantID, &mv.Current, &mv.PreMapped, &mv.PostMapped, &mv.CAID); err != nil {
			return nil, fmt.Errorf("postgres: scan mapped variant: %w", err)
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

// addMappedVariant flips any prior current row for the same variant before
// inserting, preserving the variant-to-mapped-variant one-current-at-a-time
// invariant spec §4.6 calls for (the same pattern annotation_status uses).
func addMappedVariant(ctx context.Context, q querier, mv *scoreset.MappedVariant) (int64, error) {
	if mv.Current {
		if _, err := q.Exec(ctx, `UPDATE mapped_variants SET current = false WHERE variant_id = $1 AND current`, mv.VariantID); err != nil {
			return 0, fmt.Errorf("postgres: flip prior current mapped variant: %w", err)
		}
	}

	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO mapped_variants (variant_id, current, pre_mapped, post_mapped, caid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		mv.VariantID, mv.Current, nonEmptyJSON(mv.PreMapped), nonEmptyJSON(mv.PostMapped), mv.CAID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert mapped variant: %w", err)
	}
	return id, nil
}

func updateMappedVariantCAID(ctx context.Context, q querier, mappedVariantID int64, caid string) error {
	_, err := q.Exec(ctx, `UPDATE mapped_variants SET caid = $2 WHERE id = $1`, mappedVariantID, caid)
	if err != nil {
		return fmt.Errorf("postgres: update mapped variant %d CAID: %w", mappedVariantID, err)
	}
	return nil
}

func listTargetGenes(ctx context.Context, q querier, scoreSetID int64) ([]scoreset.TargetGene, error) {
	rows, err := q.Query(ctx, `
		SELECT id, score_set_id, ref_metadata, uniprot_acc_id, uniprot_data
		FROM target_genes WHERE score_set_id = $1 ORDER BY id`, scoreSetID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list target genes for score set %d: %w", scoreSetID, err)
	}
	defer rows.Close()

	var out []scoreset.TargetGene
	for rows.Next() {
		var tg scoreset.TargetGene
		var refMetadata []byte
		if err := rows.Scan(&tg.ID, &tg.ScoreSetID, &refMetadata, &tg.UniProtAccID, &tg.UniProtData); err != nil {
			return nil, fmt.Errorf("postgres: scan target gene: %w", err)
		}
		tg.RefMetadata = map[scoreset.AnnotationLayer]json.RawMessage{}
		if len(refMetadata) > 0 {
			var raw map[string]json.RawMessage
			if err := json.Unmarshal(refMetadata, &raw); err != nil {
				return nil, fmt.Errorf("postgres: decode target gene %d ref_metadata: %w", tg.ID, err)
			}
			for layer, data := range raw {
				tg.RefMetadata[scoreset.AnnotationLayer(layer)] = data
			}
		}
		out = append(out, tg)
	}
	return out, rows.Err()
}

func updateTargetGeneRefMetadata(ctx context.Context, q querier, targetGeneID int64, layer scoreset.AnnotationLayer, data json.RawMessage) error {
	_, err := q.Exec(ctx, `
		UPDATE target_genes SET ref_metadata = jsonb_set(ref_metadata, $2, $3, true)
		WHERE id = $1`,
		targetGeneID, fmt.Sprintf("{%s}", layer), nonEmptyJSON(data))
	if err != nil {
		return fmt.Errorf("postgres: update target gene %d ref metadata (%s): %w", targetGeneID, layer, err)
	}
	return nil
}

func updateTargetGeneUniProtData(ctx context.Context, q querier, targetGeneID int64, accession string, data json.RawMessage) error {
	_, err := q.Exec(ctx, `
		UPDATE target_genes SET uniprot_acc_id = $2, uniprot_data = $3 WHERE id = $1`,
		targetGeneID, accession, nonEmptyJSON(data))
	if err != nil {
		return fmt.Errorf("postgres: update target gene %d uniprot data: %w", targetGeneID, err)
	}
	return nil
}

func upsertClinicalControl(ctx context.Context, q querier, cc *scoreset.ClinicalControl) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO clinical_controls (mapped_variant_id, version, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (mapped_variant_id, version) DO UPDATE SET data = EXCLUDED.data
		RETURNING id`,
		cc.MappedVariantID, cc.Version, nonEmptyJSON(cc.Data),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: upsert clinical control for mapped variant %d: %w", cc.MappedVariantID, err)
	}
	return id, nil
}

func (s *Store) GetScoreSet(ctx context.Context, id int64) (*scoreset.ScoreSet, error) {
	return getScoreSet(ctx, s.querier(), id)
}
func (s *Store) UpdateScoreSet(ctx context.Context, ss *scoreset.ScoreSet) error {
	return updateScoreSet(ctx, s.querier(), ss)
}
func (s *Store) ReplaceVariants(ctx context.Context, scoreSetID int64, variants []scoreset.Variant) ([]scoreset.Variant, error) {
	return replaceVariants(ctx, s.querier(), scoreSetID, variants)
}
func (s *Store) ListVariants(ctx context.Context, scoreSetID int64) ([]scoreset.Variant, error) {
	return listVariants(ctx, s.querier(), scoreSetID)
}
func (s *Store) CurrentMappedVariant(ctx context.Context, variantID int64) (*scoreset.MappedVariant, error) {
	return currentMappedVariant(ctx, s.querier(), variantID)
}
func (s *Store) ListCurrentMappedVariants(ctx context.Context, scoreSetID int64) ([]scoreset.MappedVariant, error) {
	return listCurrentMappedVariants(ctx, s.querier(), scoreSetID)
}
func (s *Store) AddMappedVariant(ctx context.Context, mv *scoreset.MappedVariant) (int64, error) {
	return addMappedVariant(ctx, s.querier(), mv)
}
func (s *Store) UpdateMappedVariantCAID(ctx context.Context, mappedVariantID int64, caid string) error {
	return updateMappedVariantCAID(ctx, s.querier(), mappedVariantID, caid)
}
func (s *Store) ListTargetGenes(ctx context.Context, scoreSetID int64) ([]scoreset.TargetGene, error) {
	return listTargetGenes(ctx, s.querier(), scoreSetID)
}
func (s *Store) UpdateTargetGeneRefMetadata(ctx context.Context, targetGeneID int64, layer scoreset.AnnotationLayer, data json.RawMessage) error {
	return updateTargetGeneRefMetadata(ctx, s.querier(), targetGeneID, layer, data)
}
func (s *Store) UpdateTargetGeneUniProtData(ctx context.Context, targetGeneID int64, accession string, data json.RawMessage) error {
	return updateTargetGeneUniProtData(ctx, s.querier(), targetGeneID, accession, data)
}
func (s *Store) UpsertClinicalControl(ctx context.Context, cc *scoreset.ClinicalControl) (int64, error) {
	return upsertClinicalControl(ctx, s.querier(), cc)
}

func (t *txStore) GetScoreSet(ctx context.Context, id int64) (*scoreset.ScoreSet, error) {
	return getScoreSet(ctx, t.querier(), id)
}
func (t *txStore) UpdateScoreSet(ctx context.Context, ss *scoreset.ScoreSet) error {
	return updateScoreSet(ctx, t.querier(), ss)
}
func (t *txStore) ReplaceVariants(ctx context.Context, scoreSetID int64, variants []scoreset.Variant) ([]scoreset.Variant, error) {
	return replaceVariants(ctx, t.querier(), scoreSetID, variants)
}
func (t *txStore) ListVariants(ctx context.Context, scoreSetID int64) ([]scoreset.Variant, error) {
	return listVariants(ctx, t.querier(), scoreSetID)
}
func (t *txStore) CurrentMappedVariant(ctx context.Context, variantID int64) (*scoreset.MappedVariant, error) {
	return currentMappedVariant(ctx, t.querier(), variantID)
}
func (t *txStore) ListCurrentMappedVariants(ctx context.Context, scoreSetID int64) ([]scoreset.MappedVariant, error) {
	return listCurrentMappedVariants(ctx, t.querier(), scoreSetID)
}
func (t *txStore) AddMappedVariant(ctx context.Context, mv *scoreset.MappedVariant) (int64, error) {
	return addMappedVariant(ctx, t.querier(), mv)
}
func (t *txStore) UpdateMappedVariantCAID(ctx context.Context, mappedVariantID int64, caid string) error {
	return updateMappedVariantCAID(ctx, t.querier(), mappedVariantID, caid)
}
func (t *txStore) ListTargetGenes(ctx context.Context, scoreSetID int64) ([]scoreset.TargetGene, error) {
	return listTargetGenes(ctx, t.querier(), scoreSetID)
}
func (t *txStore) UpdateTargetGeneRefMetadata(ctx context.Context, targetGeneID int64, layer scoreset.AnnotationLayer, data json.RawMessage) error {
	return updateTargetGeneRefMetadata(ctx, t.querier(), targetGeneID, layer, data)
}
func (t *txStore) UpdateTargetGeneUniProtData(ctx context.Context, targetGeneID int64, accession string, data json.RawMessage) error {
	return updateTargetGeneUniProtData(ctx, t.querier(), targetGeneID, accession, data)
}
func (t *txStore) UpsertClinicalControl(ctx context.Context, cc *scoreset.ClinicalControl) (int64, error) {
	return upsertClinicalControl(ctx, t.querier(), cc)
}

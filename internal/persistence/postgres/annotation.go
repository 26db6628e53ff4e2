package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/mavedb/worker/internal/annotation"
	"github.com/mavedb/worker/internal/jobmodel"
	"github.com/mavedb/worker/internal/jobserr"
)

// AddAnnotation and CurrentAnnotation are defined on Store and txStore below,
// reusing the same querier() accessor as the job/pipeline queries so an
// annotation write issued from a job function participates in the
// decorator's enclosing transaction and commits alongside the job's
// terminal state, per spec §7.

func addAnnotation(ctx context.Context, q querier, rec *annotation.Record) (int64, error) {
	if rec.Current {
		if _, err := q.Exec(ctx, `
			UPDATE annotation_status SET current = false
			WHERE variant_id = $1 AND annotation_type = $2 AND current`,
			rec.VariantID, string(rec.AnnotationType)); err != nil {
			return 0, fmt.Errorf("postgres: flip prior current annotation: %w", err)
		}
	}

	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO annotation_status (variant_id, annotation_type, version, status, annotation_data, current)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rec.VariantID, string(rec.AnnotationType), rec.Version, string(rec.Status), nonEmptyJSON(rec.AnnotationData), rec.Current,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert annotation: %w", err)
	}
	return id, nil
}

func currentAnnotation(ctx context.Context, q querier, variantID int64, annotationType annotation.Type) (*annotation.Record, error) {
	row := q.QueryRow(ctx, `
		SELECT id, variant_id, annotation_type, version, status, annotation_data, current, created_at
		FROM annotation_status
		WHERE variant_id = $1 AND annotation_type = $2 AND current`,
		variantID, string(annotationType))

	var rec annotation.Record
	var annType, status string
	var data []byte
	err := row.Scan(&rec.ID, &rec.VariantID, &annType, &rec.Version, &status, &data, &rec.Current, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("annotation for variant %d type %s: %w", variantID, annotationType, jobmodel.ErrNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get current annotation", "variant_id", variantID, "annotation_type", annotationType, "error", err)
		return nil, &jobserr.DatabaseConnectionError{Err: err}
	}
	rec.AnnotationType = annotation.Type(annType)
	rec.Status = annotation.Status(status)
	rec.AnnotationData = data
	return &rec, nil
}

func nonEmptyJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

func (s *Store) AddAnnotation(ctx context.Context, rec *annotation.Record) (int64, error) {
	return addAnnotation(ctx, s.querier(), rec)
}

func (s *Store) CurrentAnnotation(ctx context.Context, variantID int64, annotationType annotation.Type) (*annotation.Record, error) {
	return currentAnnotation(ctx, s.querier(), variantID, annotationType)
}

func (t *txStore) AddAnnotation(ctx context.Context, rec *annotation.Record) (int64, error) {
	return addAnnotation(ctx, t.querier(), rec)
}

func (t *txStore) CurrentAnnotation(ctx context.Context, variantID int64, annotationType annotation.Type) (*annotation.Record, error) {
	return currentAnnotation(ctx, t.querier(), variantID, annotationType)
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
)

type predictionRepository struct {
	BaseRepository
}

func NewPredictionRepository(base BaseRepository) repository.PredictionRepository {
	return &predictionRepository{base}
}

const predictionColumns = `id, tenant_id, skill, patient_id, input_hash, output, model, response_time_ms,
	confidence, requires_review, reviewed_by, review_outcome, reviewed_at, created_at`

func (r *predictionRepository) Create(ctx context.Context, p *model.AIPrediction) error {
	query := `
		INSERT INTO ai_predictions (
			id, tenant_id, skill, patient_id, input_hash, output, model, response_time_ms,
			confidence, requires_review, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.TenantID, p.Skill, p.PatientID, p.InputHash, []byte(p.Output), p.Model, p.ResponseTimeMs,
		p.Confidence, p.RequiresReview, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prediction: %w", err)
	}
	return nil
}

func (r *predictionRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.AIPrediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM ai_predictions WHERE tenant_id = $1 AND id = $2`

	var p model.AIPrediction
	if err := r.db.GetContext(ctx, &p, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", notFound(err))
	}
	return &p, nil
}

func (r *predictionRepository) RecordReview(ctx context.Context, tenantID, id, reviewer uuid.UUID, outcome model.ReviewOutcome, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ai_predictions
		SET reviewed_by = $1, review_outcome = $2, reviewed_at = $3
		WHERE tenant_id = $4 AND id = $5
	`, reviewer, outcome, at, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to record review: %w", err)
	}
	return expectOne(res, repository.ErrNotFound)
}

func (r *predictionRepository) Accuracy(ctx context.Context, tenantID uuid.UUID, skill string) (*model.SkillAccuracy, error) {
	acc := &model.SkillAccuracy{Skill: skill}
	err := r.db.GetContext(ctx, acc, `
		SELECT
			COUNT(*) FILTER (WHERE review_outcome IS NOT NULL) AS reviewed,
			COUNT(*) FILTER (WHERE review_outcome = 'accepted') AS accepted,
			COUNT(*) FILTER (WHERE review_outcome = 'modified') AS modified,
			COUNT(*) FILTER (WHERE review_outcome = 'rejected') AS rejected
		FROM ai_predictions
		WHERE tenant_id = $1 AND skill = $2
	`, tenantID, skill)
	if err != nil {
		return nil, fmt.Errorf("failed to compute accuracy: %w", err)
	}
	if acc.Reviewed > 0 {
		acc.Accuracy = float64(acc.Accepted) / float64(acc.Reviewed)
	}
	return acc, nil
}

type forecastRepository struct {
	BaseRepository
}

func NewForecastRepository(base BaseRepository) repository.ForecastRepository {
	return &forecastRepository{base}
}

type forecastRow struct {
	model.BedForecast
	Occupancy       []byte         `db:"predicted_occupancy"`
	Recommendations pq.StringArray `db:"recommendations"`
}

func (r *forecastRepository) Create(ctx context.Context, f *model.BedForecast, events ...*model.OutboxEvent) error {
	query := `
		INSERT INTO bed_forecasts (
			id, tenant_id, horizon_hours, predicted_occupancy, predicted_admissions,
			predicted_discharges, confidence, recommendations, model, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.CreatedAt = time.Now().UTC()

	occupancy, err := json.Marshal(f.PredictedOccupancy)
	if err != nil {
		return fmt.Errorf("failed to encode occupancy: %w", err)
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			f.ID, f.TenantID, f.HorizonHours, occupancy, f.PredictedAdmissions,
			f.PredictedDischarges, f.Confidence, pq.Array(f.Recommendations), f.Model, f.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to create forecast: %w", err)
		}
		return insertEvents(ctx, tx, events)
	})
}

func (r *forecastRepository) Latest(ctx context.Context, tenantID uuid.UUID, horizonHours int) (*model.BedForecast, error) {
	query := `
		SELECT id, tenant_id, horizon_hours, predicted_occupancy, predicted_admissions,
			predicted_discharges, confidence, recommendations, model, created_at
		FROM bed_forecasts
		WHERE tenant_id = $1 AND horizon_hours = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var row forecastRow
	if err := r.db.GetContext(ctx, &row, query, tenantID, horizonHours); err != nil {
		return nil, fmt.Errorf("failed to get forecast: %w", notFound(err))
	}

	f := row.BedForecast
	if err := json.Unmarshal(row.Occupancy, &f.PredictedOccupancy); err != nil {
		return nil, fmt.Errorf("failed to decode occupancy: %w", err)
	}
	f.Recommendations = []string(row.Recommendations)
	f.RequiresReview = true
	return &f, nil
}

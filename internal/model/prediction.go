package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ReviewOutcome string

const (
	ReviewAccepted ReviewOutcome = "accepted"
	ReviewModified ReviewOutcome = "modified"
	ReviewRejected ReviewOutcome = "rejected"
)

// AIPrediction records a skill output for clinician review and accuracy tracking
type AIPrediction struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	TenantID       uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	Skill          string          `db:"skill" json:"skill"`
	PatientID      *uuid.UUID      `db:"patient_id" json:"patient_id,omitempty"`
	InputHash      string          `db:"input_hash" json:"input_hash"`
	Output         json.RawMessage `db:"output" json:"output"`
	Model          string          `db:"model" json:"model"`
	ResponseTimeMs int64           `db:"response_time_ms" json:"response_time_ms"`
	Confidence     *float64        `db:"confidence" json:"confidence,omitempty"`
	RequiresReview bool            `db:"requires_review" json:"requires_review"`
	ReviewedBy     *uuid.UUID      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewOutcome  *ReviewOutcome  `db:"review_outcome" json:"review_outcome,omitempty"`
	ReviewedAt     *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

type ReviewPredictionRequest struct {
	Outcome ReviewOutcome `json:"outcome" validate:"required,oneof=accepted modified rejected"`
}

// SkillAccuracy is accepted/total over reviewed predictions
type SkillAccuracy struct {
	Skill    string  `db:"-" json:"skill"`
	Reviewed int     `db:"reviewed" json:"reviewed"`
	Accepted int     `db:"accepted" json:"accepted"`
	Modified int     `db:"modified" json:"modified"`
	Rejected int     `db:"rejected" json:"rejected"`
	Accuracy float64 `db:"-" json:"accuracy"`
}

// BedForecast is a stored capacity prediction
type BedForecast struct {
	ID                  uuid.UUID          `db:"id" json:"id"`
	TenantID            uuid.UUID          `db:"tenant_id" json:"tenant_id"`
	HorizonHours        int                `db:"horizon_hours" json:"horizon_hours"`
	PredictedOccupancy  map[string]float64 `db:"-" json:"predicted_occupancy"`
	PredictedAdmissions int                `db:"predicted_admissions" json:"predicted_admissions"`
	PredictedDischarges int                `db:"predicted_discharges" json:"predicted_discharges"`
	Confidence          float64            `db:"confidence" json:"confidence"`
	Recommendations     []string           `db:"-" json:"recommendations"`
	Model               string             `db:"model" json:"model"`
	RequiresReview      bool               `db:"-" json:"requires_review"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
}

type ForecastRequest struct {
	HorizonHours int `json:"horizon_hours" validate:"required,oneof=24 48 72"`
}

type DischargePriority struct {
	PatientID     uuid.UUID `json:"patient_id"`
	BedID         uuid.UUID `json:"bed_id"`
	UnitID        uuid.UUID `json:"unit_id"`
	PriorityScore float64   `json:"priority_score"`
	Reason        string    `json:"reason"`
	Barriers      []string  `json:"barriers"`
}

type DischargePriorityRequest struct {
	UnitID *uuid.UUID `json:"unit_id"`
}

type DischargePriorities struct {
	Items          []DischargePriority `json:"items"`
	Model          string              `json:"model"`
	RequiresReview bool                `json:"requires_review"`
}

type BedMatchRequest struct {
	PatientID         uuid.UUID  `json:"patient_id" validate:"required"`
	RequiredBedType   BedType    `json:"required_bed_type" validate:"omitempty,oneof=standard icu isolation bariatric pediatric"`
	IsolationRequired bool       `json:"isolation_required"`
	TelemetryRequired bool       `json:"telemetry_required"`
	PreferredUnitID   *uuid.UUID `json:"preferred_unit_id"`
}

type BedMatch struct {
	Bed            Bed    `json:"bed"`
	Rationale      string `json:"rationale"`
	Fallback       bool   `json:"fallback"`
	CandidateCount int    `json:"candidate_count"`
	Model          string `json:"model,omitempty"`
	RequiresReview bool   `json:"requires_review"`
}

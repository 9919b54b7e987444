package model

import (
	"github.com/google/uuid"
)

// Skill names, also used as edge function names
const (
	SkillFallRisk     = "fall-risk"
	SkillCarePlan     = "care-plan"
	SkillBillingCodes = "billing-codes"
	SkillHL7Interpret = "hl7-interpret"
	SkillBedForecast  = "bed-forecast"
	SkillDischarge    = "discharge-priorities"
	SkillBedMatch     = "bed-match"
)

type Mobility string

const (
	MobilityIndependent Mobility = "independent"
	MobilityAssisted    Mobility = "assisted"
	MobilityBedbound    Mobility = "bedbound"
)

type FallRiskInput struct {
	PatientID           uuid.UUID `json:"patient_id" validate:"required"`
	Age                 int       `json:"age" validate:"gte=0,lte=130"`
	Mobility            Mobility  `json:"mobility" validate:"required,oneof=independent assisted bedbound"`
	HistoryOfFalls      bool      `json:"history_of_falls"`
	Medications         []string  `json:"medications" validate:"max=100"`
	CognitiveImpairment bool      `json:"cognitive_impairment"`
	Incontinence        bool      `json:"incontinence"`
	VisionImpairment    bool      `json:"vision_impairment"`
}

type FallRiskAssessment struct {
	Score          int        `json:"score"`
	RiskLevel      RiskLevel  `json:"risk_level"`
	Factors        []string   `json:"factors"`
	Interventions  []string   `json:"interventions"`
	Confidence     float64    `json:"confidence"`
	RequiresReview bool       `json:"requires_review"`
	BaselineScore  int        `json:"baseline_score"`
	Model          string     `json:"model,omitempty"`
	PredictionID   *uuid.UUID `json:"prediction_id,omitempty"`
}

type CarePlanInput struct {
	PatientID          uuid.UUID `json:"patient_id" validate:"required"`
	Diagnoses          []string  `json:"diagnoses" validate:"required,min=1,max=50"`
	Age                int       `json:"age" validate:"gte=0,lte=130"`
	Allergies          []string  `json:"allergies" validate:"max=50"`
	CurrentMedications []string  `json:"current_medications" validate:"max=100"`
	Goals              []string  `json:"goals" validate:"max=20"`
}

type CarePlanProblem struct {
	Problem       string   `json:"problem"`
	Goals         []string `json:"goals"`
	Interventions []string `json:"interventions"`
	Evaluation    string   `json:"evaluation"`
}

type CarePlan struct {
	Problems       []CarePlanProblem `json:"problems"`
	Summary        string            `json:"summary"`
	RequiresReview bool              `json:"requires_review"`
	Model          string            `json:"model,omitempty"`
	PredictionID   *uuid.UUID        `json:"prediction_id,omitempty"`
}

type EncounterType string

const (
	EncounterOutpatient EncounterType = "outpatient"
	EncounterInpatient  EncounterType = "inpatient"
	EncounterEmergency  EncounterType = "emergency"
	EncounterTelehealth EncounterType = "telehealth"
)

type BillingInput struct {
	EncounterID   uuid.UUID     `json:"encounter_id" validate:"required"`
	PatientID     *uuid.UUID    `json:"patient_id"`
	Diagnoses     string        `json:"diagnoses" validate:"required,max=10000"`
	Procedures    string        `json:"procedures" validate:"max=10000"`
	EncounterType EncounterType `json:"encounter_type" validate:"required,oneof=outpatient inpatient emergency telehealth"`
}

type ICD10Code struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

type CPTCode struct {
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Modifiers   []string `json:"modifiers"`
	Confidence  float64  `json:"confidence"`
}

type BillingCodes struct {
	ICD10          []ICD10Code `json:"icd10"`
	CPT            []CPTCode   `json:"cpt"`
	Dropped        []string    `json:"dropped,omitempty"`
	RequiresReview bool        `json:"requires_review"`
	Model          string      `json:"model,omitempty"`
	PredictionID   *uuid.UUID  `json:"prediction_id,omitempty"`
}

type HL7Input struct {
	PatientID *uuid.UUID `json:"patient_id"`
	Message   string     `json:"message" validate:"required,max=200000"`
}

type FHIRMapping struct {
	HL7Field string `json:"hl7_field"`
	FHIRPath string `json:"fhir_path"`
	Value    string `json:"value"`
}

type HL7Interpretation struct {
	MessageType    string        `json:"message_type"`
	ControlID      string        `json:"control_id"`
	Mappings       []FHIRMapping `json:"mappings"`
	Summary        string        `json:"summary"`
	AbnormalFlags  []string      `json:"abnormal_flags"`
	RequiresReview bool          `json:"requires_review"`
	Model          string        `json:"model,omitempty"`
	PredictionID   *uuid.UUID    `json:"prediction_id,omitempty"`
}

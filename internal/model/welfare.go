package model

import (
	"time"

	"github.com/google/uuid"
)

type WelfareReason string

const (
	WelfareReasonMissedAppointments WelfareReason = "missed_appointments"
	WelfareReasonLeftAMA            WelfareReason = "left_ama"
	WelfareReasonEloped             WelfareReason = "eloped"
	WelfareReasonSuicideRisk        WelfareReason = "suicide_risk"
	WelfareReasonNoContact          WelfareReason = "no_contact"
	WelfareReasonOther              WelfareReason = "other"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Elevated reports high and critical levels
func (r RiskLevel) Elevated() bool {
	return r == RiskHigh || r == RiskCritical
}

type WelfareStatus string

const (
	WelfareStatusRequested      WelfareStatus = "requested"
	WelfareStatusDispatched     WelfareStatus = "dispatched"
	WelfareStatusOnScene        WelfareStatus = "on_scene"
	WelfareStatusCompleted      WelfareStatus = "completed"
	WelfareStatusCancelled      WelfareStatus = "cancelled"
	WelfareStatusUnableToLocate WelfareStatus = "unable_to_locate"
)

var welfareTransitions = map[WelfareStatus][]WelfareStatus{
	WelfareStatusRequested:  {WelfareStatusDispatched, WelfareStatusCancelled},
	WelfareStatusDispatched: {WelfareStatusOnScene, WelfareStatusUnableToLocate, WelfareStatusCancelled},
	WelfareStatusOnScene:    {WelfareStatusCompleted, WelfareStatusUnableToLocate},
}

func (s WelfareStatus) CanTransition(next WelfareStatus) bool {
	for _, allowed := range welfareTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Open reports checks that still need attention
func (s WelfareStatus) Open() bool {
	return s == WelfareStatusRequested || s == WelfareStatusDispatched || s == WelfareStatusOnScene
}

type WelfareCheck struct {
	Base
	PatientID        uuid.UUID     `db:"patient_id" json:"patient_id"`
	PatientName      string        `db:"patient_name" json:"patient_name"`
	LastKnownAddress string        `db:"last_known_address" json:"last_known_address"`
	Phone            *string       `db:"phone" json:"phone,omitempty"`
	Reason           WelfareReason `db:"reason" json:"reason"`
	RiskLevel        RiskLevel     `db:"risk_level" json:"risk_level"`
	Details          string        `db:"details" json:"details"`
	AgencyName       *string       `db:"agency_name" json:"agency_name,omitempty"`
	AgencyCaseNumber *string       `db:"agency_case_number" json:"agency_case_number,omitempty"`
	OfficerName      *string       `db:"officer_name" json:"officer_name,omitempty"`
	Status           WelfareStatus `db:"status" json:"status"`
	Outcome          *string       `db:"outcome" json:"outcome,omitempty"`
	RequestedBy      uuid.UUID     `db:"requested_by" json:"requested_by"`
	RequestedAt      time.Time     `db:"requested_at" json:"requested_at"`
	DispatchedAt     *time.Time    `db:"dispatched_at" json:"dispatched_at,omitempty"`
	CompletedAt      *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
}

// RiskFactors feed the welfare check screening rules
type RiskFactors struct {
	MissedAppointments  int  `json:"missed_appointments" validate:"gte=0"`
	DaysSinceContact    int  `json:"days_since_contact" validate:"gte=0"`
	LeftAMA             bool `json:"left_ama"`
	Eloped              bool `json:"eloped"`
	SuicidalIdeation    bool `json:"suicidal_ideation"`
	LivesAlone          bool `json:"lives_alone"`
	HighRiskMedications bool `json:"high_risk_medications"`
}

// WelfareScreening is the result of applying the screening rules
type WelfareScreening struct {
	Needed    bool          `json:"needed"`
	Reason    WelfareReason `json:"reason,omitempty"`
	RiskLevel RiskLevel     `json:"risk_level,omitempty"`
}

type CreateWelfareCheckRequest struct {
	PatientID        uuid.UUID     `json:"patient_id" validate:"required"`
	PatientName      string        `json:"patient_name" validate:"required,max=200"`
	LastKnownAddress string        `json:"last_known_address" validate:"required,max=500"`
	Phone            *string       `json:"phone" validate:"omitempty,max=40"`
	Reason           WelfareReason `json:"reason" validate:"required,oneof=missed_appointments left_ama eloped suicide_risk no_contact other"`
	RiskLevel        RiskLevel     `json:"risk_level" validate:"required,oneof=low moderate high critical"`
	Details          string        `json:"details" validate:"required,max=4000"`
}

type DispatchWelfareCheckRequest struct {
	AgencyName       string `json:"agency_name" validate:"required,max=200"`
	AgencyCaseNumber string `json:"agency_case_number" validate:"max=100"`
}

type OnSceneRequest struct {
	OfficerName string `json:"officer_name" validate:"required,max=200"`
}

type CompleteWelfareCheckRequest struct {
	Outcome string `json:"outcome" validate:"required,max=4000"`
}

type WelfareFilter struct {
	Status    WelfareStatus
	RiskLevel RiskLevel
	OpenOnly  bool
}

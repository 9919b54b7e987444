package model

import (
	"time"

	"github.com/google/uuid"
)

type TransferDirection string

const (
	TransferInbound  TransferDirection = "inbound"
	TransferOutbound TransferDirection = "outbound"
)

type TransferPriority string

const (
	TransferPriorityRoutine  TransferPriority = "routine"
	TransferPriorityUrgent   TransferPriority = "urgent"
	TransferPriorityEmergent TransferPriority = "emergent"
	TransferPriorityCritical TransferPriority = "critical"
)

type LevelOfCare string

const (
	LevelOfCareICU       LevelOfCare = "icu"
	LevelOfCareStepDown  LevelOfCare = "step_down"
	LevelOfCareMedSurg   LevelOfCare = "med_surg"
	LevelOfCareTelemetry LevelOfCare = "telemetry"
	LevelOfCarePsych     LevelOfCare = "psych"
)

type TransportMode string

const (
	TransportGroundBLS    TransportMode = "ground_bls"
	TransportGroundALS    TransportMode = "ground_als"
	TransportCriticalCare TransportMode = "critical_care"
	TransportAir          TransportMode = "air"
)

type TransferStatus string

const (
	TransferStatusPending     TransferStatus = "pending"
	TransferStatusAccepted    TransferStatus = "accepted"
	TransferStatusDeclined    TransferStatus = "declined"
	TransferStatusBedAssigned TransferStatus = "bed_assigned"
	TransferStatusInTransit   TransferStatus = "in_transit"
	TransferStatusCompleted   TransferStatus = "completed"
	TransferStatusCancelled   TransferStatus = "cancelled"
)

// transferTransitions lists the statuses reachable from each status
var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferStatusPending:     {TransferStatusAccepted, TransferStatusDeclined, TransferStatusCancelled},
	TransferStatusAccepted:    {TransferStatusBedAssigned, TransferStatusCancelled},
	TransferStatusBedAssigned: {TransferStatusInTransit, TransferStatusCancelled},
	TransferStatusInTransit:   {TransferStatusCompleted},
}

// CanTransition reports whether a transfer may move from s to next
func (s TransferStatus) CanTransition(next TransferStatus) bool {
	for _, allowed := range transferTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type TransferRequest struct {
	Base
	PatientID           uuid.UUID         `db:"patient_id" json:"patient_id"`
	PatientName         string            `db:"patient_name" json:"patient_name"`
	Direction           TransferDirection `db:"direction" json:"direction"`
	OriginFacility      string            `db:"origin_facility" json:"origin_facility"`
	DestinationFacility string            `db:"destination_facility" json:"destination_facility"`
	RequestingPhysician string            `db:"requesting_physician" json:"requesting_physician"`
	AcceptingPhysician  *string           `db:"accepting_physician" json:"accepting_physician,omitempty"`
	Diagnosis           string            `db:"diagnosis" json:"diagnosis"`
	Reason              string            `db:"reason" json:"reason"`
	Priority            TransferPriority  `db:"priority" json:"priority"`
	LevelOfCare         LevelOfCare       `db:"level_of_care" json:"level_of_care"`
	TransportMode       TransportMode     `db:"transport_mode" json:"transport_mode"`
	Status              TransferStatus    `db:"status" json:"status"`
	AssignedBedID       *uuid.UUID        `db:"assigned_bed_id" json:"assigned_bed_id,omitempty"`
	DeclineReason       *string           `db:"decline_reason" json:"decline_reason,omitempty"`
	RequestedAt         time.Time         `db:"requested_at" json:"requested_at"`
	AcceptedAt          *time.Time        `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt         *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	Escalated           bool              `db:"escalated" json:"escalated"`
	EscalatedAt         *time.Time        `db:"escalated_at" json:"escalated_at,omitempty"`
}

type CreateTransferRequest struct {
	PatientID           uuid.UUID         `json:"patient_id" validate:"required"`
	PatientName         string            `json:"patient_name" validate:"required,max=200"`
	Direction           TransferDirection `json:"direction" validate:"required,oneof=inbound outbound"`
	OriginFacility      string            `json:"origin_facility" validate:"required,max=200"`
	DestinationFacility string            `json:"destination_facility" validate:"required,max=200"`
	RequestingPhysician string            `json:"requesting_physician" validate:"required,max=200"`
	Diagnosis           string            `json:"diagnosis" validate:"required,max=1000"`
	Reason              string            `json:"reason" validate:"required,max=2000"`
	Priority            TransferPriority  `json:"priority" validate:"required,oneof=routine urgent emergent critical"`
	LevelOfCare         LevelOfCare       `json:"level_of_care" validate:"required,oneof=icu step_down med_surg telemetry psych"`
	TransportMode       TransportMode     `json:"transport_mode" validate:"required,oneof=ground_bls ground_als critical_care air"`
}

type AcceptTransferRequest struct {
	AcceptingPhysician string `json:"accepting_physician" validate:"required,max=200"`
}

type DeclineTransferRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

type AssignTransferBedRequest struct {
	BedID uuid.UUID `json:"bed_id" validate:"required"`
}

type TransferFilter struct {
	Status    TransferStatus
	Priority  TransferPriority
	Direction TransferDirection
}

// TransferMetrics summarises transfer center throughput
type TransferMetrics struct {
	Total                    int                    `json:"total"`
	ByStatus                 map[TransferStatus]int `json:"by_status"`
	Escalated                int                    `json:"escalated"`
	AverageAcceptanceMinutes float64                `json:"average_acceptance_minutes"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type UnitType string

const (
	UnitTypeICU        UnitType = "icu"
	UnitTypeMedSurg    UnitType = "med_surg"
	UnitTypePediatrics UnitType = "pediatrics"
	UnitTypeMaternity  UnitType = "maternity"
	UnitTypeEmergency  UnitType = "emergency"
	UnitTypePsych      UnitType = "psych"
	UnitTypeStepDown   UnitType = "step_down"
)

type BedStatus string

const (
	BedStatusAvailable   BedStatus = "available"
	BedStatusOccupied    BedStatus = "occupied"
	BedStatusCleaning    BedStatus = "cleaning"
	BedStatusMaintenance BedStatus = "maintenance"
	BedStatusReserved    BedStatus = "reserved"
	BedStatusBlocked     BedStatus = "blocked"
)

var bedStatuses = map[BedStatus]bool{
	BedStatusAvailable:   true,
	BedStatusOccupied:    true,
	BedStatusCleaning:    true,
	BedStatusMaintenance: true,
	BedStatusReserved:    true,
	BedStatusBlocked:     true,
}

func (s BedStatus) Valid() bool { return bedStatuses[s] }

type BedType string

const (
	BedTypeStandard  BedType = "standard"
	BedTypeICU       BedType = "icu"
	BedTypeIsolation BedType = "isolation"
	BedTypeBariatric BedType = "bariatric"
	BedTypePediatric BedType = "pediatric"
)

var bedTypes = map[BedType]bool{
	BedTypeStandard:  true,
	BedTypeICU:       true,
	BedTypeIsolation: true,
	BedTypeBariatric: true,
	BedTypePediatric: true,
}

func (t BedType) Valid() bool { return bedTypes[t] }

type Unit struct {
	Base
	Name      string   `db:"name" json:"name"`
	Code      string   `db:"code" json:"code"`
	Floor     int      `db:"floor" json:"floor"`
	UnitType  UnitType `db:"unit_type" json:"unit_type"`
	TotalBeds int      `db:"total_beds" json:"total_beds"`
}

type Bed struct {
	Base
	UnitID              uuid.UUID  `db:"unit_id" json:"unit_id"`
	BedNumber           string     `db:"bed_number" json:"bed_number"`
	Status              BedStatus  `db:"status" json:"status"`
	BedType             BedType    `db:"bed_type" json:"bed_type"`
	PatientID           *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	IsolationCapable    bool       `db:"isolation_capable" json:"isolation_capable"`
	TelemetryCapable    bool       `db:"telemetry_capable" json:"telemetry_capable"`
	LastStatusChange    time.Time  `db:"last_status_change" json:"last_status_change"`
	ExpectedDischargeAt *time.Time `db:"expected_discharge_at" json:"expected_discharge_at,omitempty"`
	Notes               string     `db:"notes" json:"notes,omitempty"`
}

type BedFilter struct {
	UnitID  *uuid.UUID
	Status  BedStatus
	BedType BedType
}

type CreateBedRequest struct {
	UnitID           uuid.UUID `json:"unit_id" validate:"required"`
	BedNumber        string    `json:"bed_number" validate:"required,max=20"`
	BedType          BedType   `json:"bed_type" validate:"omitempty,oneof=standard icu isolation bariatric pediatric"`
	Status           BedStatus `json:"status" validate:"omitempty,oneof=available occupied cleaning maintenance reserved blocked"`
	IsolationCapable bool      `json:"isolation_capable"`
	TelemetryCapable bool      `json:"telemetry_capable"`
	Notes            string    `json:"notes" validate:"max=1000"`
}

type UpdateBedStatusRequest struct {
	Status BedStatus `json:"status" validate:"required"`
	Notes  string    `json:"notes" validate:"max=1000"`
}

type AssignPatientRequest struct {
	PatientID           uuid.UUID  `json:"patient_id" validate:"required"`
	ExpectedDischargeAt *time.Time `json:"expected_discharge_at"`
}

type CapacityStatus string

const (
	CapacityNormal   CapacityStatus = "normal"
	CapacityModerate CapacityStatus = "moderate"
	CapacityHigh     CapacityStatus = "high"
	CapacityCritical CapacityStatus = "critical"
)

// UnitCensus is the occupancy snapshot of one unit
type UnitCensus struct {
	UnitID               uuid.UUID      `json:"unit_id"`
	UnitName             string         `json:"unit_name"`
	Total                int            `json:"total"`
	Occupied             int            `json:"occupied"`
	Available            int            `json:"available"`
	Cleaning             int            `json:"cleaning"`
	Reserved             int            `json:"reserved"`
	BlockedOrMaintenance int            `json:"blocked_or_maintenance"`
	OccupancyRate        float64        `json:"occupancy_rate"`
	CapacityStatus       CapacityStatus `json:"capacity_status"`
}

// Census is the hospital wide snapshot
type Census struct {
	Units []UnitCensus `json:"units"`
	Total UnitCensus   `json:"total"`
}

// BedStatusCount is one row of the census aggregate
type BedStatusCount struct {
	UnitID   uuid.UUID `db:"unit_id"`
	UnitName string    `db:"unit_name"`
	Status   BedStatus `db:"status"`
	Count    int       `db:"count"`
}

// BedStatusChange is the payload of bed.status_changed events
type BedStatusChange struct {
	BedID     uuid.UUID  `json:"bed_id"`
	UnitID    uuid.UUID  `json:"unit_id"`
	From      BedStatus  `json:"from"`
	To        BedStatus  `json:"to"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	ChangedBy uuid.UUID  `json:"changed_by"`
	ChangedAt time.Time  `json:"changed_at"`
}

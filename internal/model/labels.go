package model

import "strings"

var statusLabels = map[string]string{
	// beds
	string(BedStatusAvailable):   "Available",
	string(BedStatusOccupied):    "Occupied",
	string(BedStatusCleaning):    "Cleaning",
	string(BedStatusMaintenance): "Maintenance",
	string(BedStatusReserved):    "Reserved",
	string(BedStatusBlocked):     "Blocked",
	// transfers
	string(TransferStatusPending):     "Pending Review",
	string(TransferStatusAccepted):    "Accepted",
	string(TransferStatusDeclined):    "Declined",
	string(TransferStatusBedAssigned): "Bed Assigned",
	string(TransferStatusInTransit):   "In Transit",
	string(TransferStatusCompleted):   "Completed",
	string(TransferStatusCancelled):   "Cancelled",
	// welfare checks
	string(WelfareStatusRequested):      "Requested",
	string(WelfareStatusDispatched):     "Dispatched",
	string(WelfareStatusOnScene):        "On Scene",
	string(WelfareStatusUnableToLocate): "Unable to Locate",
	// appointments
	string(AppointmentStatusScheduled): "Scheduled",
	string(AppointmentStatusConfirmed): "Confirmed",
	string(AppointmentStatusCheckedIn): "Checked In",
	string(AppointmentStatusNoShow):    "No Show",
	// capacity
	string(CapacityNormal):   "Normal",
	string(CapacityModerate): "Moderate",
	string(CapacityHigh):     "High",
	string(CapacityCritical): "Critical",
}

var priorityColors = map[string]string{
	string(TransferPriorityRoutine):  "gray",
	string(TransferPriorityUrgent):   "yellow",
	string(TransferPriorityEmergent): "orange",
	string(TransferPriorityCritical): "red",
	string(RiskLow):                  "green",
	string(RiskModerate):             "yellow",
	string(RiskHigh):                 "orange",
	string(PriorityNormal):           "blue",
}

// StatusLabel returns the display label for a status value.
// Unknown values are title-cased from snake case.
func StatusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	words := strings.Split(status, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// PriorityColor returns the badge color for a priority, risk or capacity level
func PriorityColor(level string) string {
	if c, ok := priorityColors[level]; ok {
		return c
	}
	return "gray"
}

// Badge is the display form of a status or level
type Badge struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Badges maps each value to its label and color
func Badges(values ...string) map[string]Badge {
	out := make(map[string]Badge, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		out[v] = Badge{Label: StatusLabel(v), Color: PriorityColor(v)}
	}
	return out
}

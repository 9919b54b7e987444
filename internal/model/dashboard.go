package model

import "time"

// DashboardSummary is the polled operations overview
type DashboardSummary struct {
	Census              *Census                `json:"census"`
	TransfersByStatus   map[TransferStatus]int `json:"transfers_by_status"`
	EscalatedTransfers  int                    `json:"escalated_transfers"`
	OpenWelfareChecks   int                    `json:"open_welfare_checks"`
	AppointmentsToday   int                    `json:"appointments_today"`
	GeneratedAt         time.Time              `json:"generated_at"`
	PollIntervalSeconds int                    `json:"poll_interval_seconds"`
	// Labels holds the display badge for every status and level in the summary
	Labels              map[string]Badge       `json:"labels"`
}

// Package optimizer forecasts capacity and helps place and discharge patients.
package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
	"github.com/jwalitptl/careops-api/internal/service"
	"github.com/jwalitptl/careops-api/internal/service/bed"
	"github.com/jwalitptl/careops-api/internal/service/skills"
	"github.com/jwalitptl/careops-api/pkg/event"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/llm"
	"github.com/jwalitptl/careops-api/pkg/logger"
	"github.com/jwalitptl/careops-api/pkg/validator"
)

const defaultReason = "no reason provided"

// SkillRunner is the part of the skills service the optimizer needs
type SkillRunner interface {
	Run(ctx context.Context, c skills.Call) (*skills.Reply, error)
	Track(ctx context.Context, c skills.Call, reply *skills.Reply, output interface{}, conf *float64) *uuid.UUID
}

type Service struct {
	beds      repository.BedRepository
	transfers repository.TransferRepository
	forecasts repository.ForecastRepository
	skills    SkillRunner
	log       *logger.Logger
	now       func() time.Time
}

func NewService(beds repository.BedRepository, transfers repository.TransferRepository, forecasts repository.ForecastRepository, runner SkillRunner, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		beds:      beds,
		transfers: transfers,
		forecasts: forecasts,
		skills:    runner,
		log:       log.With("optimizer"),
		now:       time.Now,
	}
}

type unitSnapshot struct {
	ID        uuid.UUID `json:"unit_id"`
	Name      string    `json:"name"`
	Total     int       `json:"total"`
	Occupied  int       `json:"occupied"`
	Available int       `json:"available"`
	Occupancy float64   `json:"occupancy_rate"`
}

type forecastContext struct {
	HorizonHours       int            `json:"horizon_hours"`
	Units              []unitSnapshot `json:"units"`
	PendingTransfers   int            `json:"pending_inbound_transfers"`
	TransfersByLevel   map[string]int `json:"pending_by_level_of_care"`
	ExpectedDischarges int            `json:"expected_discharges_in_horizon"`
}

// ForecastCapacity predicts unit occupancy over the horizon and stores the result
func (s *Service) ForecastCapacity(ctx context.Context, tenantID uuid.UUID, req model.ForecastRequest) (*model.BedForecast, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}

	counts, err := s.beds.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, service.RepoError("bed", "count beds", err)
	}
	census := bed.BuildCensus(counts)

	fc := forecastContext{HorizonHours: req.HorizonHours, TransfersByLevel: map[string]int{}}
	known := make(map[string]bool, len(census.Units))
	for _, u := range census.Units {
		known[u.UnitID.String()] = true
		fc.Units = append(fc.Units, unitSnapshot{
			ID: u.UnitID, Name: u.UnitName, Total: u.Total,
			Occupied: u.Occupied, Available: u.Available, Occupancy: u.OccupancyRate,
		})
	}

	pending, err := s.transfers.List(ctx, tenantID, model.TransferFilter{Direction: model.TransferInbound})
	if err != nil {
		return nil, service.RepoError("transfer", "list transfers", err)
	}
	for _, t := range pending {
		switch t.Status {
		case model.TransferStatusPending, model.TransferStatusAccepted, model.TransferStatusBedAssigned:
			fc.PendingTransfers++
			fc.TransfersByLevel[string(t.LevelOfCare)]++
		}
	}

	occupied, err := s.beds.List(ctx, tenantID, model.BedFilter{Status: model.BedStatusOccupied})
	if err != nil {
		return nil, service.RepoError("bed", "list beds", err)
	}
	until := s.now().Add(time.Duration(req.HorizonHours) * time.Hour)
	for _, b := range occupied {
		if b.ExpectedDischargeAt != nil && !b.ExpectedDischargeAt.After(until) {
			fc.ExpectedDischarges++
		}
	}

	snapshot, err := json.Marshal(fc)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	call := skills.Call{
		Skill:    model.SkillBedForecast,
		Tier:     llm.TierStandard,
		TenantID: tenantID,
		Input:    fc,
		System:   "You forecast hospital bed capacity for bed management staff. Reply with JSON only.",
		Prompt: fmt.Sprintf(`Forecast bed occupancy %d hours ahead.
Current state: %s
Return {"predicted_occupancy": {"<unit_id>": 0-1}, "predicted_admissions": int, "predicted_discharges": int, "confidence": 0-1, "recommendations": [string]}.`,
			req.HorizonHours, snapshot),
	}

	reply, err := s.skills.Run(ctx, call)
	if err != nil {
		return nil, asAI("capacity forecast", err)
	}

	r := gjson.Parse(reply.JSON)
	f := &model.BedForecast{
		ID:                  uuid.New(),
		TenantID:            tenantID,
		HorizonHours:        req.HorizonHours,
		PredictedOccupancy:  map[string]float64{},
		PredictedAdmissions: nonNegative(r.Get("predicted_admissions")),
		PredictedDischarges: nonNegative(r.Get("predicted_discharges")),
		Confidence:          0.5,
		Recommendations:     []string{},
		Model:               reply.Model,
		RequiresReview:      true,
	}
	r.Get("predicted_occupancy").ForEach(func(k, v gjson.Result) bool {
		if n, ok := skills.Number(v); ok && known[k.String()] {
			f.PredictedOccupancy[k.String()] = clamp01(n)
		}
		return true
	})
	if c, ok := skills.Number(r.Get("confidence")); ok {
		f.Confidence = clamp01(c)
	}
	for _, rec := range r.Get("recommendations").Array() {
		if txt := strings.TrimSpace(rec.String()); txt != "" {
			f.Recommendations = append(f.Recommendations, txt)
		}
	}

	evt, err := event.New(tenantID, model.EventForecastGenerated, map[string]interface{}{
		"forecast_id":   f.ID,
		"horizon_hours": f.HorizonHours,
		"model":         f.Model,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.forecasts.Create(ctx, f, evt); err != nil {
		return nil, service.RepoError("forecast", "create forecast", err)
	}

	conf := f.Confidence
	s.skills.Track(ctx, call, reply, f, &conf)
	s.log.Info("Capacity forecast generated",
		"tenant_id", tenantID.String(),
		"horizon_hours", f.HorizonHours,
		"units", len(f.PredictedOccupancy))
	return f, nil
}

type dischargeCandidate struct {
	PatientID           uuid.UUID  `json:"patient_id"`
	BedID               uuid.UUID  `json:"bed_id"`
	UnitID              uuid.UUID  `json:"unit_id"`
	BedNumber           string     `json:"bed_number"`
	OccupiedSince       time.Time  `json:"occupied_since"`
	ExpectedDischargeAt *time.Time `json:"expected_discharge_at"`
	Notes               string     `json:"notes,omitempty"`
}

// PrioritizeDischarges ranks the patients flagged for discharge
func (s *Service) PrioritizeDischarges(ctx context.Context, tenantID uuid.UUID, req model.DischargePriorityRequest) (*model.DischargePriorities, error) {
	occupied, err := s.beds.List(ctx, tenantID, model.BedFilter{UnitID: req.UnitID, Status: model.BedStatusOccupied})
	if err != nil {
		return nil, service.RepoError("bed", "list beds", err)
	}

	candidates := make(map[uuid.UUID]dischargeCandidate)
	var list []dischargeCandidate
	for _, b := range occupied {
		if b.PatientID == nil || b.ExpectedDischargeAt == nil {
			continue
		}
		c := dischargeCandidate{
			PatientID: *b.PatientID, BedID: b.ID, UnitID: b.UnitID, BedNumber: b.BedNumber,
			OccupiedSince: b.LastStatusChange, ExpectedDischargeAt: b.ExpectedDischargeAt, Notes: b.Notes,
		}
		candidates[c.PatientID] = c
		list = append(list, c)
	}

	out := &model.DischargePriorities{Items: []model.DischargePriority{}, RequiresReview: true}
	if len(list) == 0 {
		return out, nil
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	call := skills.Call{
		Skill:    model.SkillDischarge,
		Tier:     llm.TierStandard,
		TenantID: tenantID,
		Input:    list,
		System:   "You help charge nurses order discharges to free beds safely. Reply with JSON only.",
		Prompt: fmt.Sprintf(`Rank these discharge candidates, most urgent first.
Candidates: %s
Return {"priorities": [{"patient_id": string, "priority_score": 0-1, "reason": string, "barriers": [string]}]}.`, payload),
	}
	reply, err := s.skills.Run(ctx, call)
	if err != nil {
		return nil, asAI("discharge prioritization", err)
	}
	out.Model = reply.Model

	seen := map[uuid.UUID]bool{}
	for _, item := range gjson.Get(reply.JSON, "priorities").Array() {
		id, err := uuid.Parse(item.Get("patient_id").String())
		if err != nil || seen[id] {
			continue
		}
		c, ok := candidates[id]
		if !ok {
			continue
		}
		seen[id] = true
		reason := strings.TrimSpace(item.Get("reason").String())
		if reason == "" {
			reason = defaultReason
		}
		barriers := []string{}
		for _, b := range item.Get("barriers").Array() {
			if txt := strings.TrimSpace(b.String()); txt != "" {
				barriers = append(barriers, txt)
			}
		}
		out.Items = append(out.Items, model.DischargePriority{
			PatientID:     id,
			BedID:         c.BedID,
			UnitID:        c.UnitID,
			PriorityScore: score01(item.Get("priority_score")),
			Reason:        reason,
			Barriers:      barriers,
		})
	}
	SortPriorities(out.Items)

	s.skills.Track(ctx, call, reply, out, nil)
	return out, nil
}

// SortPriorities orders by score descending, ties by patient id
func SortPriorities(items []model.DischargePriority) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PriorityScore != items[j].PriorityScore {
			return items[i].PriorityScore > items[j].PriorityScore
		}
		return items[i].PatientID.String() < items[j].PatientID.String()
	})
}

// MatchBed picks an available bed that meets the hard constraints
func (s *Service) MatchBed(ctx context.Context, tenantID uuid.UUID, req model.BedMatchRequest) (*model.BedMatch, error) {
	if err := validator.New().Validate(req); err != nil {
		return nil, err
	}

	available, err := s.beds.List(ctx, tenantID, model.BedFilter{Status: model.BedStatusAvailable, BedType: req.RequiredBedType})
	if err != nil {
		return nil, service.RepoError("bed", "list beds", err)
	}
	candidates := Candidates(available, req)
	if len(candidates) == 0 {
		return nil, apperrors.NotFound("matching bed", nil)
	}

	type option struct {
		BedID     uuid.UUID     `json:"bed_id"`
		UnitID    uuid.UUID     `json:"unit_id"`
		BedNumber string        `json:"bed_number"`
		BedType   model.BedType `json:"bed_type"`
		Preferred bool          `json:"in_preferred_unit"`
	}
	options := make([]option, 0, len(candidates))
	byID := make(map[uuid.UUID]*model.Bed, len(candidates))
	for _, b := range candidates {
		byID[b.ID] = b
		options = append(options, option{
			BedID: b.ID, UnitID: b.UnitID, BedNumber: b.BedNumber, BedType: b.BedType,
			Preferred: req.PreferredUnitID != nil && b.UnitID == *req.PreferredUnitID,
		})
	}
	payload, err := json.Marshal(options)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	patientID := req.PatientID
	call := skills.Call{
		Skill:     model.SkillBedMatch,
		Tier:      llm.TierEconomy,
		TenantID:  tenantID,
		PatientID: &patientID,
		Input:     req,
		System:    "You assign hospital beds for patient placement. Reply with JSON only.",
		Prompt: fmt.Sprintf(`Choose the best bed for this patient.
Requirements: bed type %q, isolation %t, telemetry %t.
Candidates: %s
Return {"bed_id": string, "rationale": string}.`,
			req.RequiredBedType, req.IsolationRequired, req.TelemetryRequired, payload),
	}

	out := &model.BedMatch{CandidateCount: len(candidates), RequiresReview: true}
	reply, err := s.skills.Run(ctx, call)
	if err != nil && !errors.Is(err, skills.ErrNoJSON) {
		return nil, err
	}
	if reply != nil {
		out.Model = reply.Model
	}

	var pick *model.Bed
	if err == nil {
		if id, perr := uuid.Parse(gjson.Get(reply.JSON, "bed_id").String()); perr == nil {
			pick = byID[id]
		}
		out.Rationale = strings.TrimSpace(gjson.Get(reply.JSON, "rationale").String())
	}
	if pick == nil {
		pick = candidates[0]
		out.Fallback = true
		out.Rationale = "first available bed meeting the requirements"
		s.log.Warn("Bed match fell back to first candidate",
			"tenant_id", tenantID.String(),
			"bed_id", pick.ID.String())
	}
	out.Bed = *pick

	s.skills.Track(ctx, call, reply, out, nil)
	return out, nil
}

// Candidates filters beds on the hard constraints, preferred unit first and
// then by bed number
func Candidates(beds []*model.Bed, req model.BedMatchRequest) []*model.Bed {
	var out []*model.Bed
	for _, b := range beds {
		if b.Status != model.BedStatusAvailable {
			continue
		}
		if req.RequiredBedType != "" && b.BedType != req.RequiredBedType {
			continue
		}
		if req.IsolationRequired && !b.IsolationCapable {
			continue
		}
		if req.TelemetryRequired && !b.TelemetryCapable {
			continue
		}
		out = append(out, b)
	}
	preferred := func(b *model.Bed) bool {
		return req.PreferredUnitID != nil && b.UnitID == *req.PreferredUnitID
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := preferred(out[i]), preferred(out[j])
		if pi != pj {
			return pi
		}
		return out[i].BedNumber < out[j].BedNumber
	})
	return out
}

func asAI(what string, err error) error {
	if errors.Is(err, skills.ErrNoJSON) {
		return apperrors.AI(what+" reply could not be parsed", err)
	}
	return err
}

// clamp01 bounds v to [0, 1]; NaN maps to 0
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// score01 reads a 0-1 score; anything but a finite number scores 0
func score01(r gjson.Result) float64 {
	v, _ := skills.Number(r)
	return clamp01(v)
}

// maxCount caps predicted counts before the int conversion
const maxCount = 1_000_000

func nonNegative(r gjson.Result) int {
	v, ok := skills.Number(r)
	if !ok || v < 0 {
		return 0
	}
	return int(math.Round(math.Min(v, maxCount)))
}

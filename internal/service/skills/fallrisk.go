package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/pkg/llm"
)

// Fall risk bands on the 0-100 score
const (
	FallRiskModerateAt = 25
	FallRiskHighAt     = 45

	unparsedConfidence = 0.3
	defaultConfidence  = 0.5
)

// medication classes that raise fall risk
var fallRiskDrugs = []string{
	"opioid", "oxycodone", "morphine", "hydromorphone", "fentanyl",
	"benzodiazepine", "lorazepam", "diazepam", "alprazolam", "zolpidem",
	"antihypertensive", "diuretic", "furosemide", "insulin",
	"antipsychotic", "haloperidol", "quetiapine", "sedative", "anticoagulant",
}

// FallRiskLevel derives the risk band from a score
func FallRiskLevel(score int) model.RiskLevel {
	switch {
	case score < FallRiskModerateAt:
		return model.RiskLow
	case score < FallRiskHighAt:
		return model.RiskModerate
	default:
		return model.RiskHigh
	}
}

// MorseBaseline scores the input with a Morse-style point table
func MorseBaseline(in model.FallRiskInput) (int, []string) {
	score := 0
	var factors []string
	add := func(points int, factor string) {
		score += points
		factors = append(factors, factor)
	}

	if in.HistoryOfFalls {
		add(25, "history of falls")
	}
	if len(in.Medications) >= 4 {
		add(15, "polypharmacy")
	}
	switch in.Mobility {
	case model.MobilityAssisted:
		add(15, "requires ambulatory assistance")
		add(10, "weak gait")
	case model.MobilityBedbound:
		add(20, "impaired gait")
	}
	if riskyMedications(in.Medications) > 0 {
		add(20, "high fall risk medication")
	}
	if in.CognitiveImpairment {
		add(15, "overestimates ability or forgets limitations")
	}
	if in.Incontinence {
		add(10, "incontinence")
	}
	if in.VisionImpairment {
		add(10, "vision impairment")
	}
	if in.Age >= 65 {
		add(10, "age 65 or older")
	}

	if score > 100 {
		score = 100
	}
	return score, factors
}

func riskyMedications(meds []string) int {
	n := 0
	for _, m := range meds {
		lower := strings.ToLower(m)
		for _, drug := range fallRiskDrugs {
			if strings.Contains(lower, drug) {
				n++
				break
			}
		}
	}
	return n
}

func (s *Service) AssessFallRisk(ctx context.Context, tenantID uuid.UUID, in model.FallRiskInput) (*model.FallRiskAssessment, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	baseline, factors := MorseBaseline(in)

	inputJSON, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	patientID := in.PatientID
	call := Call{
		Skill:     model.SkillFallRisk,
		Tier:      llm.TierEconomy,
		TenantID:  tenantID,
		PatientID: &patientID,
		Input:     in,
		System:    "You are a clinical decision support assistant for nursing fall risk assessment. Reply with JSON only.",
		Prompt: fmt.Sprintf(`Assess inpatient fall risk.
Patient: %s
A Morse-style baseline scored %d with factors: %s.
Return {"score": 0-100, "factors": [string], "interventions": [string], "confidence": 0-1}.`,
			inputJSON, baseline, strings.Join(factors, "; ")),
	}

	reply, err := s.Run(ctx, call)
	if err != nil && !errors.Is(err, ErrNoJSON) {
		return nil, err
	}

	out := &model.FallRiskAssessment{
		Score:          baseline,
		BaselineScore:  baseline,
		Factors:        append([]string{}, factors...),
		Interventions:  defaultInterventions(baseline),
		Confidence:     unparsedConfidence,
		RequiresReview: true,
	}
	if reply != nil {
		out.Model = reply.Model
	}

	if err == nil {
		r := gjson.Parse(reply.JSON)
		if score, ok := Number(r.Get("score")); ok {
			out.Score = int(math.Round(clamp(score, 0, 100)))
		}
		if f := stringList(r.Get("factors")); len(f) > 0 {
			out.Factors = f
		}
		if iv := stringList(r.Get("interventions")); len(iv) > 0 {
			out.Interventions = iv
		}
		out.Confidence = confidence(r.Get("confidence"), defaultConfidence)
	}
	// the band always follows the score, whatever the model claimed
	out.RiskLevel = FallRiskLevel(out.Score)

	conf := out.Confidence
	out.PredictionID = s.Track(ctx, call, reply, out, &conf)
	return out, nil
}

func defaultInterventions(score int) []string {
	base := []string{"orient patient to room and call light", "keep bed in lowest position"}
	switch FallRiskLevel(score) {
	case model.RiskModerate:
		return append(base, "hourly rounding", "non-slip footwear")
	case model.RiskHigh:
		return append(base, "hourly rounding", "non-slip footwear", "bed alarm", "assist with all transfers")
	}
	return base
}

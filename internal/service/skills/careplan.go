package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/jwalitptl/careops-api/internal/model"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/llm"
)

func (s *Service) GenerateCarePlan(ctx context.Context, tenantID uuid.UUID, in model.CarePlanInput) (*model.CarePlan, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	patientID := in.PatientID
	call := Call{
		Skill:     model.SkillCarePlan,
		Tier:      llm.TierStandard,
		TenantID:  tenantID,
		PatientID: &patientID,
		Input:     in,
		System:    "You draft nursing care plans for clinician review. Reply with JSON only.",
		Prompt: fmt.Sprintf(`Draft a nursing care plan.
Age: %d
Diagnoses: %s
Allergies: %s
Current medications: %s
Patient goals: %s
Return {"problems": [{"problem": string, "goals": [string], "interventions": [string], "evaluation": string}], "summary": string}.`,
			in.Age, joinOrNone(in.Diagnoses), joinOrNone(in.Allergies), joinOrNone(in.CurrentMedications), joinOrNone(in.Goals)),
	}

	reply, err := s.Run(ctx, call)
	if err != nil {
		if errors.Is(err, ErrNoJSON) {
			return nil, apperrors.AI("care plan reply could not be parsed", err)
		}
		return nil, err
	}

	r := gjson.Parse(reply.JSON)
	plan := &model.CarePlan{
		Problems:       []model.CarePlanProblem{},
		Summary:        strings.TrimSpace(r.Get("summary").String()),
		RequiresReview: true,
		Model:          reply.Model,
	}
	for _, p := range r.Get("problems").Array() {
		problem := strings.TrimSpace(p.Get("problem").String())
		if problem == "" {
			continue
		}
		plan.Problems = append(plan.Problems, model.CarePlanProblem{
			Problem:       problem,
			Goals:         stringList(p.Get("goals")),
			Interventions: stringList(p.Get("interventions")),
			Evaluation:    strings.TrimSpace(p.Get("evaluation").String()),
		})
	}
	if len(plan.Problems) == 0 {
		return nil, apperrors.AI("care plan contained no problems", nil)
	}

	plan.PredictionID = s.Track(ctx, call, reply, plan, nil)
	return plan, nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none reported"
	}
	return strings.Join(items, ", ")
}

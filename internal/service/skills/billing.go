package skills

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/jwalitptl/careops-api/internal/model"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/llm"
)

var (
	icd10Pattern = regexp.MustCompile(`^[A-TV-Z][0-9][0-9A-Z](\.[0-9A-Z]{1,4})?$`)
	cptPattern   = regexp.MustCompile(`^[0-9]{4}[0-9A-Z]$`)
)

// CPT modifiers applied locally
const (
	ModifierBilateral  = "50"
	ModifierDistinct   = "59"
	ModifierTelehealth = "95"
)

func ValidICD10(code string) bool { return icd10Pattern.MatchString(code) }

func ValidCPT(code string) bool { return cptPattern.MatchString(code) }

func (s *Service) SuggestBillingCodes(ctx context.Context, tenantID uuid.UUID, in model.BillingInput) (*model.BillingCodes, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	procedures := strings.TrimSpace(in.Procedures)
	if procedures == "" {
		procedures = "none documented"
	}
	call := Call{
		Skill:     model.SkillBillingCodes,
		Tier:      llm.TierPremium,
		TenantID:  tenantID,
		PatientID: in.PatientID,
		Input:     in,
		System:    "You are a certified medical coder. Suggest codes for coder review. Reply with JSON only.",
		Prompt: fmt.Sprintf(`Suggest ICD-10-CM and CPT codes for this %s encounter.
Diagnoses: %s
Procedures: %s
Return {"icd10": [{"code": string, "description": string, "confidence": 0-1}], "cpt": [{"code": string, "description": string, "modifiers": [string], "confidence": 0-1}]}.`,
			in.EncounterType, in.Diagnoses, procedures),
	}

	reply, err := s.Run(ctx, call)
	if err != nil {
		if errors.Is(err, ErrNoJSON) {
			return nil, apperrors.AI("billing code reply could not be parsed", err)
		}
		return nil, err
	}

	r := gjson.Parse(reply.JSON)
	out := &model.BillingCodes{
		ICD10:          []model.ICD10Code{},
		CPT:            []model.CPTCode{},
		RequiresReview: true,
		Model:          reply.Model,
	}
	seen := map[string]bool{}
	for _, c := range r.Get("icd10").Array() {
		code := strings.ToUpper(strings.TrimSpace(c.Get("code").String()))
		if code == "" {
			continue
		}
		if !ValidICD10(code) {
			out.Dropped = append(out.Dropped, code)
			continue
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		out.ICD10 = append(out.ICD10, model.ICD10Code{
			Code:        code,
			Description: strings.TrimSpace(c.Get("description").String()),
			Confidence:  confidence(c.Get("confidence"), defaultConfidence),
		})
	}
	for _, c := range r.Get("cpt").Array() {
		code := strings.ToUpper(strings.TrimSpace(c.Get("code").String()))
		if code == "" {
			continue
		}
		if !ValidCPT(code) {
			out.Dropped = append(out.Dropped, code)
			continue
		}
		out.CPT = append(out.CPT, model.CPTCode{
			Code:        code,
			Description: strings.TrimSpace(c.Get("description").String()),
			Modifiers:   stringList(c.Get("modifiers")),
			Confidence:  confidence(c.Get("confidence"), defaultConfidence),
		})
	}
	ApplyModifiers(out.CPT, in)

	out.PredictionID = s.Track(ctx, call, reply, out, nil)
	return out, nil
}

// ApplyModifiers adds the bilateral, distinct service and telehealth
// modifiers in place. Existing modifiers are kept and duplicates removed.
func ApplyModifiers(codes []model.CPTCode, in model.BillingInput) {
	bilateralNote := strings.Contains(strings.ToLower(in.Procedures), "bilateral")

	distinct := map[string]bool{}
	for i := range codes {
		c := &codes[i]
		if strings.Contains(strings.ToLower(c.Description), "bilateral") || (bilateralNote && len(codes) == 1) {
			c.Modifiers = append(c.Modifiers, ModifierBilateral)
		}
		if len(codes) > 1 && len(distinct) > 0 && !distinct[c.Code] {
			c.Modifiers = append(c.Modifiers, ModifierDistinct)
		}
		distinct[c.Code] = true
		if in.EncounterType == model.EncounterTelehealth {
			c.Modifiers = append(c.Modifiers, ModifierTelehealth)
		}
		c.Modifiers = dedupe(c.Modifiers)
	}
}

func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

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
	"github.com/jwalitptl/careops-api/pkg/hl7"
	"github.com/jwalitptl/careops-api/pkg/llm"
)

type fhirField struct {
	ref  string
	path string
}

// hl7ToFHIR maps v2 fields onto FHIR element paths. Patient and visit
// fields are read from the first segment, results from every one.
var hl7ToFHIR = []fhirField{
	{"MSH-9", "MessageHeader.event"},
	{"PID-3.1", "Patient.identifier"},
	{"PID-5", "Patient.name"},
	{"PID-7", "Patient.birthDate"},
	{"PID-8", "Patient.gender"},
	{"PV1-3", "Encounter.location"},
	{"OBR-4", "DiagnosticReport.code"},
	{"OBX-3", "Observation.code"},
	{"OBX-5", "Observation.value[x]"},
	{"OBX-6", "Observation.valueQuantity.unit"},
}

var repeatedSegments = map[string]bool{"OBR": true, "OBX": true}

// MapToFHIR applies the field table to a parsed message
func MapToFHIR(msg *hl7.Message) []model.FHIRMapping {
	out := []model.FHIRMapping{}
	add := func(f fhirField, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, model.FHIRMapping{HL7Field: f.ref, FHIRPath: f.path, Value: v})
		}
	}
	for _, f := range hl7ToFHIR {
		name, field, comp, err := hl7.ParseRef(f.ref)
		if err != nil {
			continue
		}
		if !repeatedSegments[name] {
			v, _ := msg.Lookup(f.ref)
			add(f, v)
			continue
		}
		for _, seg := range msg.All(name) {
			add(f, seg.Value(field, comp))
		}
	}
	return out
}

var abnormalFlags = map[string]string{
	"H": "high", "HH": "critically high",
	"L": "low", "LL": "critically low",
	"A": "abnormal", "AA": "critically abnormal",
}

// LocalAbnormalFlags reads OBX-8 interpretation codes
func LocalAbnormalFlags(msg *hl7.Message) []string {
	out := []string{}
	for _, obx := range msg.All("OBX") {
		label, ok := abnormalFlags[strings.ToUpper(strings.TrimSpace(obx.Get(8)))]
		if !ok {
			continue
		}
		name := obx.Component(3, 2)
		if name == "" {
			name = obx.Component(3, 1)
		}
		value := strings.TrimSpace(obx.Get(5) + " " + obx.Component(6, 1))
		out = append(out, fmt.Sprintf("%s %s (%s)", name, value, label))
	}
	return out
}

func (s *Service) InterpretHL7(ctx context.Context, tenantID uuid.UUID, in model.HL7Input) (*model.HL7Interpretation, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	msg, err := hl7.Parse(in.Message)
	if err != nil {
		return nil, apperrors.BadRequest("message is not valid HL7 v2", err)
	}

	out := &model.HL7Interpretation{
		MessageType:    msg.Type,
		ControlID:      msg.ControlID,
		Mappings:       MapToFHIR(msg),
		AbnormalFlags:  LocalAbnormalFlags(msg),
		RequiresReview: true,
	}

	var lines []string
	for _, mp := range out.Mappings {
		lines = append(lines, fmt.Sprintf("%s (%s) = %s", mp.HL7Field, mp.FHIRPath, mp.Value))
	}
	call := Call{
		Skill:     model.SkillHL7Interpret,
		Tier:      llm.TierStandard,
		TenantID:  tenantID,
		PatientID: in.PatientID,
		Input:     in,
		System:    "You explain HL7 v2 messages to clinicians in plain language. Reply with JSON only.",
		Prompt: fmt.Sprintf(`Summarize this %s message and flag abnormal results.
Mapped fields:
%s
Raw message:
%s
Return {"summary": string, "abnormal_flags": [string]}.`,
			msg.Type, strings.Join(lines, "\n"), in.Message),
	}

	reply, err := s.Run(ctx, call)
	if err != nil && !errors.Is(err, ErrNoJSON) {
		return nil, err
	}
	if reply != nil {
		out.Model = reply.Model
	}
	if err == nil {
		r := gjson.Parse(reply.JSON)
		out.Summary = strings.TrimSpace(r.Get("summary").String())
		out.AbnormalFlags = dedupe(append(out.AbnormalFlags, stringList(r.Get("abnormal_flags"))...))
	}

	out.PredictionID = s.Track(ctx, call, reply, out, nil)
	return out, nil
}

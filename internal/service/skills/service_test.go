package skills

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository/memory"
	"github.com/jwalitptl/careops-api/internal/tenancy"
	"github.com/jwalitptl/careops-api/pkg/edgefn"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/llm"
	"github.com/jwalitptl/careops-api/pkg/metrics"
)

type stubCompleter struct {
	text  string
	err   error
	tiers []llm.Tier
	last  llm.Request
}

func (c *stubCompleter) Complete(_ context.Context, min llm.Tier, req llm.Request) (*llm.Response, error) {
	c.tiers = append(c.tiers, min)
	c.last = req
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Text: c.text, Model: "model-" + string(min), Tier: min}, nil
}

func newLocal(text string, tracking bool) (*Service, *stubCompleter, *memory.Store) {
	store := memory.NewStore()
	c := &stubCompleter{text: text}
	svc := NewService(c, nil, store.Predictions(), Config{AccuracyTracking: tracking}, metrics.New("test"), nil)
	return svc, c, store
}

func fallInput() model.FallRiskInput {
	return model.FallRiskInput{
		PatientID:      uuid.New(),
		Age:            78,
		Mobility:       model.MobilityAssisted,
		HistoryOfFalls: true,
		Medications:    []string{"Oxycodone 5mg", "Lisinopril", "Metformin", "Aspirin"},
	}
}

func TestMorseBaseline(t *testing.T) {
	score, factors := MorseBaseline(fallInput())
	// falls 25 + polypharmacy 15 + assisted 25 + opioid 20 + age 10
	assert.Equal(t, 95, score)
	assert.Contains(t, factors, "history of falls")

	score, factors = MorseBaseline(model.FallRiskInput{PatientID: uuid.New(), Age: 30, Mobility: model.MobilityIndependent})
	assert.Equal(t, 0, score)
	assert.Empty(t, factors)

	all := fallInput()
	all.Mobility = model.MobilityBedbound
	all.CognitiveImpairment, all.Incontinence, all.VisionImpairment = true, true, true
	score, _ = MorseBaseline(all)
	assert.Equal(t, 100, score)
}

func TestFallRiskLevel(t *testing.T) {
	assert.Equal(t, model.RiskLow, FallRiskLevel(24))
	assert.Equal(t, model.RiskModerate, FallRiskLevel(25))
	assert.Equal(t, model.RiskModerate, FallRiskLevel(44))
	assert.Equal(t, model.RiskHigh, FallRiskLevel(45))
}

func TestAssessFallRisk_ClampsAndDerivesLevel(t *testing.T) {
	svc, c, store := newLocal("```json\n{\"score\": 140, \"risk_level\": \"low\", \"factors\": [\"gait\"], \"confidence\": 3}\n```", true)

	tenantID := uuid.New()
	out, err := svc.AssessFallRisk(context.Background(), tenantID, fallInput())
	require.NoError(t, err)
	assert.Equal(t, 100, out.Score)
	assert.Equal(t, model.RiskHigh, out.RiskLevel)
	assert.Equal(t, 1.0, out.Confidence)
	assert.Equal(t, []string{"gait"}, out.Factors)
	assert.NotEmpty(t, out.Interventions)
	assert.True(t, out.RequiresReview)
	assert.Equal(t, "model-economy", out.Model)
	assert.Equal(t, []llm.Tier{llm.TierEconomy}, c.tiers)

	require.NotNil(t, out.PredictionID)
	p, err := store.Predictions().Get(context.Background(), tenantID, *out.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, model.SkillFallRisk, p.Skill)
	assert.Len(t, p.InputHash, 64)
}

func TestAssessFallRisk_UnparsedReplyFallsBack(t *testing.T) {
	svc, _, _ := newLocal("I cannot produce JSON today.", false)

	out, err := svc.AssessFallRisk(context.Background(), uuid.New(), fallInput())
	require.NoError(t, err)
	assert.Equal(t, 95, out.Score)
	assert.Equal(t, out.BaselineScore, out.Score)
	assert.Equal(t, 0.3, out.Confidence)
	assert.Equal(t, model.RiskHigh, out.RiskLevel)
	assert.Nil(t, out.PredictionID)
}

func TestAssessFallRisk_DefaultConfidence(t *testing.T) {
	svc, _, _ := newLocal(`{"score": 30}`, false)

	out, err := svc.AssessFallRisk(context.Background(), uuid.New(), fallInput())
	require.NoError(t, err)
	assert.Equal(t, 30, out.Score)
	assert.Equal(t, model.RiskModerate, out.RiskLevel)
	assert.Equal(t, 0.5, out.Confidence)
}

func TestAssessFallRisk_NonNumericValuesKeepBaseline(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		score      int
		level      model.RiskLevel
		confidence float64
	}{
		{"nan strings", `{"score": "NaN", "confidence": "NaN"}`, 95, model.RiskHigh, 0.5},
		{"word score", `{"score": "high", "confidence": "0.9"}`, 95, model.RiskHigh, 0.5},
		{"bool score", `{"score": true}`, 95, model.RiskHigh, 0.5},
		{"overflow", `{"score": 1e999, "confidence": -1e999}`, 95, model.RiskHigh, 0.5},
		{"negative", `{"score": -20, "confidence": -1}`, 0, model.RiskLow, 0},
		{"fraction", `{"score": 44.6, "confidence": 0.25}`, 45, model.RiskHigh, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newLocal(tt.reply, false)

			out, err := svc.AssessFallRisk(context.Background(), uuid.New(), fallInput())
			require.NoError(t, err)
			assert.Equal(t, tt.score, out.Score)
			assert.Equal(t, 95, out.BaselineScore)
			assert.Equal(t, tt.level, out.RiskLevel)
			assert.Equal(t, tt.confidence, out.Confidence)
			_, err = json.Marshal(out)
			assert.NoError(t, err)
		})
	}
}

func TestNumber(t *testing.T) {
	for in, ok := range map[string]bool{`1.5`: true, `-3`: true, `"2"`: false, `"NaN"`: false, `1e999`: false, `null`: false} {
		_, got := Number(gjson.Parse(in))
		assert.Equal(t, ok, got, in)
	}
}

func TestAssessFallRisk_Errors(t *testing.T) {
	svc, c, _ := newLocal("", false)

	_, err := svc.AssessFallRisk(context.Background(), uuid.New(), model.FallRiskInput{PatientID: uuid.New(), Mobility: "flying"})
	assert.Equal(t, apperrors.ErrInvalidInput, apperrors.CodeOf(err))

	c.err = errors.New("upstream 503")
	_, err = svc.AssessFallRisk(context.Background(), uuid.New(), fallInput())
	assert.Equal(t, apperrors.ErrAI, apperrors.CodeOf(err))
}

func TestGenerateCarePlan(t *testing.T) {
	svc, c, _ := newLocal(`Plan: {"problems": [{"problem": "Impaired mobility", "goals": ["walk 50ft"], "interventions": ["PT consult"], "evaluation": "daily"}, {"problem": ""}], "summary": "Focus on mobility"}`, false)
	in := model.CarePlanInput{PatientID: uuid.New(), Diagnoses: []string{"hip fracture"}, Age: 81}

	plan, err := svc.GenerateCarePlan(context.Background(), uuid.New(), in)
	require.NoError(t, err)
	require.Len(t, plan.Problems, 1)
	assert.Equal(t, "Impaired mobility", plan.Problems[0].Problem)
	assert.Equal(t, "Focus on mobility", plan.Summary)
	assert.True(t, plan.RequiresReview)
	assert.Equal(t, []llm.Tier{llm.TierStandard}, c.tiers)
	assert.Contains(t, c.last.Prompt, "Allergies: none reported")

	c.text = `{"problems": [], "summary": "nothing"}`
	_, err = svc.GenerateCarePlan(context.Background(), uuid.New(), in)
	assert.Equal(t, apperrors.ErrAI, apperrors.CodeOf(err))

	c.text = "no json"
	_, err = svc.GenerateCarePlan(context.Background(), uuid.New(), in)
	assert.Equal(t, apperrors.ErrAI, apperrors.CodeOf(err))
}

func TestSuggestBillingCodes(t *testing.T) {
	svc, _, _ := newLocal(`{
		"icd10": [
			{"code": "m17.0", "description": "Bilateral primary osteoarthritis of knee", "confidence": 0.9},
			{"code": "U07.1", "description": "reserved"},
			{"code": "M17.0", "description": "duplicate"},
			{"description": "code missing"}
		],
		"cpt": [
			{"code": "27447", "description": "Total knee arthroplasty", "confidence": 0.8},
			{"code": "20610", "description": "Arthrocentesis, major joint", "modifiers": ["RT"], "confidence": "NaN"},
			{"code": "ABC", "description": "junk"},
			{"code": "  ", "description": "blank"}
		]}`, false)

	out, err := svc.SuggestBillingCodes(context.Background(), uuid.New(), model.BillingInput{
		EncounterID:   uuid.New(),
		Diagnoses:     "bilateral knee osteoarthritis",
		Procedures:    "bilateral total knee arthroplasty, arthrocentesis",
		EncounterType: model.EncounterTelehealth,
	})
	require.NoError(t, err)
	require.Len(t, out.ICD10, 1)
	assert.Equal(t, "M17.0", out.ICD10[0].Code)
	assert.ElementsMatch(t, []string{"U07.1", "ABC"}, out.Dropped)

	require.Len(t, out.CPT, 2)
	assert.Equal(t, []string{"95"}, out.CPT[0].Modifiers)
	assert.Equal(t, []string{"RT", "59", "95"}, out.CPT[1].Modifiers)
	assert.Equal(t, 0.5, out.CPT[1].Confidence)
	assert.True(t, out.RequiresReview)
}

func TestApplyModifiers(t *testing.T) {
	codes := []model.CPTCode{{Code: "69210", Description: "Remove impacted ear wax"}}
	ApplyModifiers(codes, model.BillingInput{Procedures: "Bilateral cerumen removal", EncounterType: model.EncounterOutpatient})
	assert.Equal(t, []string{"50"}, codes[0].Modifiers)

	codes = []model.CPTCode{
		{Code: "11042", Description: "Debridement"},
		{Code: "11042", Description: "Debridement"},
		{Code: "11043", Description: "Debridement, muscle", Modifiers: []string{"59"}},
	}
	ApplyModifiers(codes, model.BillingInput{EncounterType: model.EncounterInpatient})
	assert.Empty(t, codes[0].Modifiers)
	assert.Empty(t, codes[1].Modifiers)
	assert.Equal(t, []string{"59"}, codes[2].Modifiers)
}

func TestCodePatterns(t *testing.T) {
	for _, ok := range []string{"E11.9", "I10", "S72.001A", "Z79.4"} {
		assert.True(t, ValidICD10(ok), ok)
	}
	for _, bad := range []string{"U07.1", "E1", "E11.12345", "11.9"} {
		assert.False(t, ValidICD10(bad), bad)
	}
	assert.True(t, ValidCPT("99213"))
	assert.True(t, ValidCPT("0001F"))
	assert.False(t, ValidCPT("9921"))
	assert.False(t, ValidCPT("99213-25"))
}

const oru = "MSH|^~\\&|LAB|GENERAL|EHR|GENERAL|20260301083000||ORU^R01|MSG00042|P|2.5\r" +
	"PID|1||MRN123^^^GEN||DOE^JANE||19600214|F\r" +
	"PV1|1|I|4W^412^A\r" +
	"OBR|1||LAB77|2345-7^Glucose^LN\r" +
	"OBX|1|NM|2345-7^Glucose^LN||250|mg/dL|70-99|H\r" +
	"OBX|2|NM|2823-3^Potassium^LN||4.1|mmol/L|3.5-5.1|N\r"

func TestInterpretHL7(t *testing.T) {
	svc, _, _ := newLocal(`{"summary": "Glucose is high.", "abnormal_flags": ["Glucose 250 mg/dL (high)", "Follow up glucose"]}`, false)

	out, err := svc.InterpretHL7(context.Background(), uuid.New(), model.HL7Input{Message: oru})
	require.NoError(t, err)
	assert.Equal(t, "ORU^R01", out.MessageType)
	assert.Equal(t, "MSG00042", out.ControlID)
	assert.Equal(t, "Glucose is high.", out.Summary)
	assert.Equal(t, []string{"Glucose 250 mg/dL (high)", "Follow up glucose"}, out.AbnormalFlags)
	assert.True(t, out.RequiresReview)

	byField := map[string][]string{}
	for _, m := range out.Mappings {
		byField[m.HL7Field] = append(byField[m.HL7Field], m.FHIRPath+"="+m.Value)
	}
	assert.Equal(t, []string{"Patient.name=DOE^JANE"}, byField["PID-5"])
	assert.Equal(t, []string{"Patient.gender=F"}, byField["PID-8"])
	assert.Equal(t, []string{"Patient.identifier=MRN123"}, byField["PID-3.1"])
	assert.Equal(t, []string{"Observation.code=2345-7^Glucose^LN", "Observation.code=2823-3^Potassium^LN"}, byField["OBX-3"])
	assert.Equal(t, []string{"MessageHeader.event=ORU^R01"}, byField["MSH-9"])
	assert.Len(t, byField["OBX-5"], 2)
}

func TestInterpretHL7_LocalFallback(t *testing.T) {
	svc, _, _ := newLocal("summary unavailable", false)

	out, err := svc.InterpretHL7(context.Background(), uuid.New(), model.HL7Input{Message: oru})
	require.NoError(t, err)
	assert.Empty(t, out.Summary)
	assert.Equal(t, []string{"Glucose 250 mg/dL (high)"}, out.AbnormalFlags)
}

func TestInterpretHL7_InvalidMessage(t *testing.T) {
	svc, c, _ := newLocal("{}", false)

	_, err := svc.InterpretHL7(context.Background(), uuid.New(), model.HL7Input{Message: "PID|1||123"})
	assert.Equal(t, apperrors.ErrInvalidInput, apperrors.CodeOf(err))
	assert.Empty(t, c.tiers)
}

func TestRemoteMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/fall-risk", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"score":12,"riskLevel":"high","confidence":0.7},"metadata":{"model":"edge-small","responseTimeMs":40}}`))
	}))
	defer srv.Close()

	remote := edgefn.NewClient(edgefn.Config{BaseURL: srv.URL}, nil)
	svc := NewService(nil, remote, nil, Config{Mode: ModeRemote}, nil, nil)

	out, err := svc.AssessFallRisk(context.Background(), uuid.New(), fallInput())
	require.NoError(t, err)
	assert.Equal(t, 12, out.Score)
	assert.Equal(t, model.RiskLow, out.RiskLevel)
	assert.Equal(t, 0.7, out.Confidence)
	assert.Equal(t, "edge-small", out.Model)
}

func TestRemoteModeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	remote := edgefn.NewClient(edgefn.Config{BaseURL: srv.URL}, nil)
	svc := NewService(nil, remote, nil, Config{Mode: ModeRemote}, nil, nil)

	_, err := svc.AssessFallRisk(context.Background(), uuid.New(), fallInput())
	assert.Equal(t, apperrors.ErrExternalService, apperrors.CodeOf(err))
}

func TestReviewAndAccuracy(t *testing.T) {
	svc, _, _ := newLocal(`{"score": 50}`, true)
	tenantID := uuid.New()
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		out, err := svc.AssessFallRisk(ctx, tenantID, fallInput())
		require.NoError(t, err)
		require.NotNil(t, out.PredictionID)
		ids = append(ids, *out.PredictionID)
	}

	_, err := svc.RecordReview(ctx, tenantID, ids[0], model.ReviewPredictionRequest{Outcome: model.ReviewAccepted})
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	reviewer := tenancy.WithIdentity(ctx, tenancy.Identity{TenantID: tenantID, UserID: uuid.New(), Role: "nurse"})
	p, err := svc.RecordReview(reviewer, tenantID, ids[0], model.ReviewPredictionRequest{Outcome: model.ReviewAccepted})
	require.NoError(t, err)
	require.NotNil(t, p.ReviewOutcome)
	assert.Equal(t, model.ReviewAccepted, *p.ReviewOutcome)

	_, err = svc.RecordReview(reviewer, tenantID, ids[0], model.ReviewPredictionRequest{Outcome: model.ReviewRejected})
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	_, err = svc.RecordReview(reviewer, tenantID, ids[1], model.ReviewPredictionRequest{Outcome: model.ReviewRejected})
	require.NoError(t, err)

	_, err = svc.RecordReview(reviewer, uuid.New(), ids[2], model.ReviewPredictionRequest{Outcome: model.ReviewAccepted})
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))

	acc, err := svc.GetSkillAccuracy(ctx, tenantID, model.SkillFallRisk)
	require.NoError(t, err)
	assert.Equal(t, 2, acc.Reviewed)
	assert.Equal(t, 1, acc.Accepted)
	assert.Equal(t, 0.5, acc.Accuracy)

	_, err = svc.GetSkillAccuracy(ctx, tenantID, "tarot")
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

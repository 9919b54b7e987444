package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/careops-api/internal/app"
	"github.com/jwalitptl/careops-api/internal/config"
	"github.com/jwalitptl/careops-api/internal/handler/health"
	promhandler "github.com/jwalitptl/careops-api/internal/handler/prometheus"
	"github.com/jwalitptl/careops-api/internal/middleware"
	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository/memory"
	"github.com/jwalitptl/careops-api/internal/router"
	"github.com/jwalitptl/careops-api/pkg/auth"
	"github.com/jwalitptl/careops-api/pkg/llm"
	redisbroker "github.com/jwalitptl/careops-api/pkg/messaging/redis"
	"github.com/jwalitptl/careops-api/pkg/metrics"
)

type scriptedLLM struct{ text string }

func (s *scriptedLLM) Complete(_ context.Context, min llm.Tier, _ llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: s.text, Model: "test-" + string(min), Tier: min}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testApp struct {
	engine   http.Handler
	store    *memory.Store
	llm      *scriptedLLM
	tenantID uuid.UUID
	nurseID  uuid.UUID
	unit     *model.Unit
	nurse    string
	admin    string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	tenantID := uuid.New()
	unit := &model.Unit{Name: "ICU", Code: "ICU", UnitType: model.UnitTypeICU, TotalBeds: 4}
	unit.TenantID = tenantID
	store.AddUnit(unit)

	mr := miniredis.RunT(t)
	broker := redisbroker.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { _ = broker.Close() })

	completer := &scriptedLLM{}
	services := app.NewServices(&config.Config{}, app.Deps{
		Repos:     store.Repositories(),
		Completer: completer,
		Broker:    broker,
		Metrics:   metrics.New("test"),
	})

	tokens := auth.NewJWTService("test-secret", "", "", time.Hour)
	prom := promhandler.New("test", nil)
	r := router.NewRouter(
		router.RouterConfig{RateLimiter: middleware.RateLimiterConfig{Rate: rate.Inf, Burst: 100}},
		nil,
		middleware.NewAuthMiddleware(tokens),
		prom,
		health.NewHandler(nil, prom.Handler()),
		services.AuditHandler(),
		services.Handlers()...,
	)

	nurseID := uuid.New()
	nurse, err := tokens.GenerateAccessToken(nurseID.String(), tenantID.String(), "charge_nurse")
	require.NoError(t, err)
	admin, err := tokens.GenerateAccessToken(uuid.NewString(), tenantID.String(), "admin")
	require.NoError(t, err)

	return &testApp{
		engine:   r.Engine(),
		store:    store,
		llm:      completer,
		tenantID: tenantID,
		nurseID:  nurseID,
		unit:     unit,
		nurse:    nurse,
		admin:    admin,
	}
}

func (a *testApp) do(t *testing.T, token, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "text/csv" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func decode(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func (a *testApp) createBed(t *testing.T, number string) model.Bed {
	t.Helper()
	w, env := a.do(t, a.nurse, http.MethodPost, "/api/v1/beds", map[string]interface{}{
		"unit_id":    a.unit.ID,
		"bed_number": number,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var b model.Bed
	decode(t, env, &b)
	return b
}

func TestHealthAndAuthentication(t *testing.T) {
	a := newTestApp(t)

	w, _ := a.do(t, "", http.MethodGet, "/api/v1/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.do(t, "", http.MethodGet, "/api/v1/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.do(t, "", http.MethodGet, "/api/v1/health/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")

	w, env := a.do(t, "", http.MethodGet, "/api/v1/beds", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, env = a.do(t, a.nurse, http.MethodGet, "/api/v1/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestBedLifecycle(t *testing.T) {
	a := newTestApp(t)
	b := a.createBed(t, "ICU-1")
	assert.Equal(t, model.BedStatusAvailable, b.Status)

	w, env := a.do(t, a.nurse, http.MethodGet, "/api/v1/beds?unit_id="+a.unit.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var beds []model.Bed
	decode(t, env, &beds)
	assert.Len(t, beds, 1)

	patientID := uuid.New()
	w, env = a.do(t, a.nurse, http.MethodPost, "/api/v1/beds/"+b.ID.String()+"/assign", map[string]interface{}{"patient_id": patientID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, env, &b)
	assert.Equal(t, model.BedStatusOccupied, b.Status)

	w, env = a.do(t, a.nurse, http.MethodPost, "/api/v1/beds/"+b.ID.String()+"/assign", map[string]interface{}{"patient_id": uuid.New()})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	w, env = a.do(t, a.nurse, http.MethodGet, "/api/v1/census", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var census model.Census
	decode(t, env, &census)
	assert.Equal(t, 1, census.Total.Occupied)

	w, env = a.do(t, a.nurse, http.MethodPost, "/api/v1/beds/"+b.ID.String()+"/release", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, env, &b)
	assert.Equal(t, model.BedStatusCleaning, b.Status)
	assert.Nil(t, b.PatientID)
}

func TestRequestErrors(t *testing.T) {
	a := newTestApp(t)

	w, env := a.do(t, a.nurse, http.MethodGet, "/api/v1/beds/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	w, env = a.do(t, a.nurse, http.MethodPost, "/api/v1/beds", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	w, env = a.do(t, a.nurse, http.MethodPost, "/api/v1/beds", map[string]interface{}{"unit_id": a.unit.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Message, "bed_number")

	w, _ = a.do(t, a.nurse, http.MethodGet, "/api/v1/beds/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = a.do(t, a.nurse, http.MethodGet, "/api/v1/appointments/availability?provider_id="+uuid.NewString()+"&date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransferAssignsBed(t *testing.T) {
	a := newTestApp(t)
	b := a.createBed(t, "ICU-2")

	w, env := a.do(t, a.nurse, http.MethodPost, "/api/v1/transfers", map[string]interface{}{
		"patient_id":           uuid.New(),
		"patient_name":         "Jordan Reyes",
		"direction":            "inbound",
		"origin_facility":      "County General",
		"destination_facility": "University Medical",
		"requesting_physician": "Dr. Okafor",
		"diagnosis":            "STEMI",
		"reason":               "cath lab",
		"priority":             "critical",
		"level_of_care":        "icu",
		"transport_mode":       "critical_care",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tr model.TransferRequest
	decode(t, env, &tr)
	assert.Equal(t, model.TransferStatusPending, tr.Status)
	base := "/api/v1/transfers/" + tr.ID.String()

	w, _ = a.do(t, a.nurse, http.MethodPost, base+"/accept", map[string]string{"accepting_physician": "Dr. Chen"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = a.do(t, a.nurse, http.MethodPost, base+"/assign-bed", map[string]interface{}{"bed_id": b.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, env, &tr)
	assert.Equal(t, model.TransferStatusBedAssigned, tr.Status)
	require.NotNil(t, tr.AssignedBedID)

	w, env = a.do(t, a.nurse, http.MethodGet, "/api/v1/beds/"+b.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, env, &b)
	assert.Equal(t, model.BedStatusReserved, b.Status)

	w, _ = a.do(t, a.nurse, http.MethodPost, base+"/complete", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env = a.do(t, a.nurse, http.MethodGet, "/api/v1/transfers/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var m model.TransferMetrics
	decode(t, env, &m)
	assert.Equal(t, 1, m.Total)
}

func TestWelfareScreening(t *testing.T) {
	a := newTestApp(t)

	w, env := a.do(t, a.nurse, http.MethodPost, "/api/v1/welfare-checks/screen", map[string]interface{}{"suicidal_ideation": true})
	require.Equal(t, http.StatusOK, w.Code)
	var s model.WelfareScreening
	decode(t, env, &s)
	assert.True(t, s.Needed)
	assert.Equal(t, model.RiskCritical, s.RiskLevel)

	w, _ = a.do(t, a.nurse, http.MethodPost, "/api/v1/welfare-checks/screen", map[string]interface{}{"missed_appointments": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardSummary(t *testing.T) {
	a := newTestApp(t)
	a.createBed(t, "ICU-3")

	w, env := a.do(t, a.nurse, http.MethodGet, "/api/v1/dashboard/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30", w.Header().Get("X-Poll-Interval"))
	var s model.DashboardSummary
	decode(t, env, &s)
	assert.Equal(t, 30, s.PollIntervalSeconds)
	assert.Equal(t, 1, s.Census.Total.Available)
}

func TestAuditTrailRequiresRole(t *testing.T) {
	a := newTestApp(t)
	a.createBed(t, "ICU-4")

	w, _ := a.do(t, a.nurse, http.MethodGet, "/api/v1/audit/logs", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := a.do(t, a.admin, http.MethodGet, "/api/v1/audit/logs?entity_type=bed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items      []model.AuditLog `json:"items"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	decode(t, env, &page)
	require.NotEmpty(t, page.Items)
	assert.Equal(t, a.nurseID, page.Items[0].ActorID)
	assert.Equal(t, len(page.Items), page.Pagination.Total)

	w, _ = a.do(t, a.admin, http.MethodGet, "/api/v1/audit/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Actor ID")
}

func TestFallRiskSkill(t *testing.T) {
	a := newTestApp(t)
	a.llm.text = `{"score": 60, "factors": ["history of falls"], "confidence": 0.8}`

	w, env := a.do(t, a.nurse, http.MethodPost, "/api/v1/skills/fall-risk", map[string]interface{}{
		"patient_id":       uuid.New(),
		"age":              81,
		"mobility":         "assisted",
		"history_of_falls": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out model.FallRiskAssessment
	decode(t, env, &out)
	assert.Equal(t, 60, out.Score)
	assert.True(t, out.RequiresReview)

	w, _ = a.do(t, a.nurse, http.MethodGet, "/api/v1/skills/unknown/accuracy", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationInbox(t *testing.T) {
	a := newTestApp(t)

	w, env := a.do(t, a.nurse, http.MethodPost, "/api/v1/notifications", map[string]interface{}{
		"user_id":   a.nurseID,
		"channel":   "in_app",
		"category":  "bed",
		"content":   "ICU-1 is ready",
		"recipient": "user:" + a.nurseID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var n model.Notification
	decode(t, env, &n)
	assert.Equal(t, model.NotificationStatusSent, n.Status)

	w, env = a.do(t, a.nurse, http.MethodGet, "/api/v1/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox []model.Notification
	decode(t, env, &inbox)
	require.Len(t, inbox, 1)

	w, _ = a.do(t, a.nurse, http.MethodPost, "/api/v1/notifications/"+n.ID.String()+"/read", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, env = a.do(t, a.nurse, http.MethodGet, "/api/v1/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, env, &inbox)
	assert.Empty(t, inbox)
}

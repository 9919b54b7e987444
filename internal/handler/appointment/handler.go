package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/handler"
	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/service/appointment"
	"github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

const dateLayout = "2006-01-02"

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/availability", h.GetAvailability)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id/reschedule", h.Reschedule)
		appointments.POST("/:id/cancel", h.Cancel)
		appointments.POST("/:id/confirm", h.step(h.service.Confirm))
		appointments.POST("/:id/check-in", h.step(h.service.CheckIn))
		appointments.POST("/:id/no-show", h.step(h.service.MarkNoShow))
		appointments.POST("/:id/complete", h.step(h.service.Complete))
	}
}

type stepFunc func(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error)

func (h *Handler) step(fn stepFunc) gin.HandlerFunc {
	return func(c *gin.Context) { h.run(c, fn) }
}

func (h *Handler) run(c *gin.Context, fn stepFunc) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	a, err := fn(c.Request.Context(), tenantID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, a)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	var req model.CreateAppointmentRequest
	if !handler.Bind(c, &req) {
		return
	}
	a, err := h.service.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	h.run(c, h.service.Get)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}

	filter := model.AppointmentFilter{Status: model.AppointmentStatus(c.Query("status"))}
	if filter.ProviderID, ok = handler.QueryUUID(c, "provider_id"); !ok {
		return
	}
	if filter.PatientID, ok = handler.QueryUUID(c, "patient_id"); !ok {
		return
	}
	if filter.From, ok = handler.QueryTime(c, "from"); !ok {
		return
	}
	if filter.To, ok = handler.QueryTime(c, "to"); !ok {
		return
	}

	appointments, err := h.service.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appointments)
}

// GetAvailability lists open slots for provider_id on date (YYYY-MM-DD),
// interpreted in the IANA zone tz when given and UTC otherwise
func (h *Handler) GetAvailability(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	providerID, ok := handler.QueryUUID(c, "provider_id")
	if !ok {
		return
	}
	if providerID == nil {
		httputil.RespondWithError(c, errors.BadRequest("provider_id is required", nil))
		return
	}

	loc := time.UTC
	if tz := c.Query("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("unknown time zone", err))
			return
		}
		loc = l
	}
	date, err := time.ParseInLocation(dateLayout, c.Query("date"), loc)
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("date must be YYYY-MM-DD", err))
		return
	}

	slots, err := h.service.GetAvailableSlots(c.Request.Context(), tenantID, *providerID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, slots)
}

func (h *Handler) Reschedule(c *gin.Context) {
	var req model.RescheduleAppointmentRequest
	if !handler.Bind(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
		return h.service.Reschedule(ctx, tenantID, id, req)
	})
}

func (h *Handler) Cancel(c *gin.Context) {
	var req model.CancelAppointmentRequest
	if !handler.Bind(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, tenantID, id uuid.UUID) (*model.Appointment, error) {
		return h.service.Cancel(ctx, tenantID, id, req)
	})
}

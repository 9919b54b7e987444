package bed

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/handler"
	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/service/bed"
	"github.com/jwalitptl/careops-api/pkg/httputil"
	"github.com/jwalitptl/careops-api/pkg/validator"
)

type Handler struct {
	service *bed.Service
}

func NewHandler(service *bed.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	units := r.Group("/units")
	{
		units.GET("", h.ListUnits)
		units.GET("/:id", h.GetUnit)
	}

	beds := r.Group("/beds")
	{
		beds.GET("", h.ListBeds)
		beds.POST("", h.CreateBed)
		beds.GET("/:id", h.GetBed)
		beds.PATCH("/:id/status", h.UpdateStatus)
		beds.POST("/:id/assign", h.AssignPatient)
		beds.POST("/:id/reserve", h.Reserve)
		beds.POST("/:id/cancel-reservation", h.CancelReservation)
		beds.POST("/:id/release", h.Release)
	}

	r.GET("/census", h.GetCensus)
}

func (h *Handler) ListUnits(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	units, err := h.service.ListUnits(c.Request.Context(), tenantID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, units)
}

func (h *Handler) GetUnit(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	unit, err := h.service.GetUnit(c.Request.Context(), tenantID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, unit)
}

func (h *Handler) ListBeds(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	unitID, ok := handler.QueryUUID(c, "unit_id")
	if !ok {
		return
	}
	filter := model.BedFilter{
		UnitID:  unitID,
		Status:  model.BedStatus(c.Query("status")),
		BedType: model.BedType(c.Query("bed_type")),
	}

	beds, err := h.service.ListBeds(c.Request.Context(), tenantID, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, beds)
}

func (h *Handler) CreateBed(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	var req model.CreateBedRequest
	if !handler.Bind(c, &req) {
		return
	}
	b, err := h.service.CreateBed(c.Request.Context(), tenantID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, b)
}

func (h *Handler) GetBed(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	b, err := h.service.GetBed(c.Request.Context(), tenantID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateBedStatusRequest
	if !handler.Bind(c, &req) {
		return
	}
	b, err := h.service.UpdateBedStatus(c.Request.Context(), tenantID, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

func (h *Handler) AssignPatient(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.AssignPatientRequest
	if !handler.Bind(c, &req) {
		return
	}
	b, err := h.service.AssignPatient(c.Request.Context(), tenantID, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

// reservationRequest names the patient a bed is held for
type reservationRequest struct {
	PatientID uuid.UUID `json:"patient_id" validate:"required"`
}

func (h *Handler) bindReservation(c *gin.Context) (reservationRequest, bool) {
	var req reservationRequest
	if !handler.Bind(c, &req) {
		return req, false
	}
	if err := validator.New().Validate(req); err != nil {
		httputil.RespondWithError(c, err)
		return req, false
	}
	return req, true
}

func (h *Handler) Reserve(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindReservation(c)
	if !ok {
		return
	}
	b, err := h.service.ReserveBed(c.Request.Context(), tenantID, id, req.PatientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

func (h *Handler) CancelReservation(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindReservation(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.service.CancelReservation(ctx, tenantID, id, req.PatientID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	b, err := h.service.GetBed(ctx, tenantID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

func (h *Handler) Release(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	b, err := h.service.ReleaseBed(c.Request.Context(), tenantID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, b)
}

func (h *Handler) GetCensus(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	census, err := h.service.GetCensus(c.Request.Context(), tenantID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, census)
}

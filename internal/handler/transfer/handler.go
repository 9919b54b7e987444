package transfer

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/handler"
	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/service/transfer"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

type Handler struct {
	service *transfer.Service
}

func NewHandler(service *transfer.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	transfers := r.Group("/transfers")
	{
		transfers.POST("", h.Create)
		transfers.GET("", h.List)
		transfers.GET("/metrics", h.Metrics)
		transfers.GET("/:id", h.Get)
		transfers.POST("/:id/accept", h.Accept)
		transfers.POST("/:id/decline", h.Decline)
		transfers.POST("/:id/assign-bed", h.AssignBed)
		transfers.POST("/:id/in-transit", h.step(h.service.MarkInTransit))
		transfers.POST("/:id/complete", h.step(h.service.Complete))
		transfers.POST("/:id/cancel", h.step(h.service.Cancel))
	}
}

type stepFunc func(ctx context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error)

// step serves the transitions that carry no body
func (h *Handler) step(fn stepFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.run(c, fn)
	}
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
	t, err := fn(c.Request.Context(), tenantID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) Create(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	var req model.CreateTransferRequest
	if !handler.Bind(c, &req) {
		return
	}
	t, err := h.service.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, t)
}

func (h *Handler) List(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	filter := model.TransferFilter{
		Status:    model.TransferStatus(c.Query("status")),
		Priority:  model.TransferPriority(c.Query("priority")),
		Direction: model.TransferDirection(c.Query("direction")),
	}
	transfers, err := h.service.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, transfers)
}

func (h *Handler) Metrics(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	m, err := h.service.GetTransferMetrics(c.Request.Context(), tenantID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, m)
}

func (h *Handler) Get(c *gin.Context) {
	h.run(c, h.service.Get)
}

func (h *Handler) Accept(c *gin.Context) {
	var req model.AcceptTransferRequest
	if !handler.Bind(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error) {
		return h.service.Accept(ctx, tenantID, id, req)
	})
}

func (h *Handler) Decline(c *gin.Context) {
	var req model.DeclineTransferRequest
	if !handler.Bind(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error) {
		return h.service.Decline(ctx, tenantID, id, req)
	})
}

func (h *Handler) AssignBed(c *gin.Context) {
	var req model.AssignTransferBedRequest
	if !handler.Bind(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, tenantID, id uuid.UUID) (*model.TransferRequest, error) {
		return h.service.AssignBed(ctx, tenantID, id, req)
	})
}

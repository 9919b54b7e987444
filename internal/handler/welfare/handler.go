package welfare

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/handler"
	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/service/welfare"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

type Handler struct {
	service *welfare.Service
}

func NewHandler(service *welfare.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	checks := r.Group("/welfare-checks")
	{
		checks.POST("", h.Request)
		checks.POST("/screen", h.Screen)
		checks.GET("", h.List)
		checks.GET("/:id", h.Get)
		checks.POST("/:id/dispatch", h.Dispatch)
		checks.POST("/:id/on-scene", h.OnScene)
		checks.POST("/:id/complete", h.Complete)
		checks.POST("/:id/unable-to-locate", h.UnableToLocate)
		checks.POST("/:id/cancel", h.Cancel)
	}
}

type checkFunc func(ctx context.Context, tenantID, id uuid.UUID) (*model.WelfareCheck, error)

func (h *Handler) run(c *gin.Context, fn checkFunc) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	check, err := fn(c.Request.Context(), tenantID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, check)
}

func (h *Handler) Request(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	var req model.CreateWelfareCheckRequest
	if !handler.Bind(c, &req) {
		return
	}
	check, err := h.service.Request(c.Request.Context(), tenantID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, check)
}

// Screen evaluates risk factors without creating a check
func (h *Handler) Screen(c *gin.Context) {
	if _, ok := handler.TenantID(c); !ok {
		return
	}
	var f model.RiskFactors
	if !handler.Bind(c, &f) {
		return
	}
	screening, err := h.service.Screen(f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, screening)
}

func (h *Handler) List(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	open, ok := handler.QueryBool(c, "open")
	if !ok {
		return
	}
	filter := model.WelfareFilter{
		Status:    model.WelfareStatus(c.Query("status")),
		RiskLevel: model.RiskLevel(c.Query("risk_level")),
		OpenOnly:  open,
	}
	checks, err := h.service.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, checks)
}

func (h *Handler) Get(c *gin.Context) {
	h.run(c, h.service.Get)
}

func (h *Handler) Dispatch(c *gin.Context) {
	var req model.DispatchWelfareCheckRequest
	if !handler.Bind(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, tenantID, id uuid.UUID) (*model.WelfareCheck, error) {
		return h.service.Dispatch(ctx, tenantID, id, req)
	})
}

func (h *Handler) OnScene(c *gin.Context) {
	var req model.OnSceneRequest
	if !handler.Bind(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, tenantID, id uuid.UUID) (*model.WelfareCheck, error) {
		return h.service.MarkOnScene(ctx, tenantID, id, req)
	})
}

func (h *Handler) Complete(c *gin.Context) {
	var req model.CompleteWelfareCheckRequest
	if !handler.Bind(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, tenantID, id uuid.UUID) (*model.WelfareCheck, error) {
		return h.service.Complete(ctx, tenantID, id, req)
	})
}

func (h *Handler) UnableToLocate(c *gin.Context) {
	var req model.CompleteWelfareCheckRequest
	if !handler.Bind(c, &req) {
		return
	}
	h.run(c, func(ctx context.Context, tenantID, id uuid.UUID) (*model.WelfareCheck, error) {
		return h.service.MarkUnableToLocate(ctx, tenantID, id, req)
	})
}

func (h *Handler) Cancel(c *gin.Context) {
	h.run(c, h.service.Cancel)
}

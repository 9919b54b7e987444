package optimizer

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/careops-api/internal/handler"
	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/service/optimizer"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

type Handler struct {
	service *optimizer.Service
}

func NewHandler(service *optimizer.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/bed-optimizer")
	{
		g.POST("/forecast", h.Forecast)
		g.POST("/discharge-priorities", h.DischargePriorities)
		g.POST("/match", h.Match)
	}
}

func (h *Handler) Forecast(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	var req model.ForecastRequest
	if !handler.Bind(c, &req) {
		return
	}
	fc, err := h.service.ForecastCapacity(c.Request.Context(), tenantID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, fc)
}

// DischargePriorities accepts an empty body to rank every unit
func (h *Handler) DischargePriorities(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	var req model.DischargePriorityRequest
	if c.Request.ContentLength != 0 && !handler.Bind(c, &req) {
		return
	}
	out, err := h.service.PrioritizeDischarges(c.Request.Context(), tenantID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, out)
}

func (h *Handler) Match(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	var req model.BedMatchRequest
	if !handler.Bind(c, &req) {
		return
	}
	m, err := h.service.MatchBed(c.Request.Context(), tenantID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, m)
}

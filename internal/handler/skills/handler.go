package skills

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/handler"
	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/service/skills"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

type Handler struct {
	service *skills.Service
}

func NewHandler(service *skills.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/skills")
	{
		g.POST("/"+model.SkillFallRisk, h.FallRisk)
		g.POST("/"+model.SkillCarePlan, h.CarePlan)
		g.POST("/"+model.SkillBillingCodes, h.BillingCodes)
		g.POST("/"+model.SkillHL7Interpret, h.InterpretHL7)
		g.POST("/predictions/:id/review", h.Review)
		g.GET("/:skill/accuracy", h.Accuracy)
	}
}

// invoke binds In, runs the skill for the caller's tenant and writes Out
func invoke[In any, Out any](c *gin.Context, fn func(context.Context, uuid.UUID, In) (Out, error)) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	var in In
	if !handler.Bind(c, &in) {
		return
	}
	out, err := fn(c.Request.Context(), tenantID, in)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, out)
}

func (h *Handler) FallRisk(c *gin.Context) {
	invoke(c, h.service.AssessFallRisk)
}

func (h *Handler) CarePlan(c *gin.Context) {
	invoke(c, h.service.GenerateCarePlan)
}

func (h *Handler) BillingCodes(c *gin.Context) {
	invoke(c, h.service.SuggestBillingCodes)
}

func (h *Handler) InterpretHL7(c *gin.Context) {
	invoke(c, h.service.InterpretHL7)
}

func (h *Handler) Review(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.ReviewPredictionRequest
	if !handler.Bind(c, &req) {
		return
	}
	p, err := h.service.RecordReview(c.Request.Context(), tenantID, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) Accuracy(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	acc, err := h.service.GetSkillAccuracy(c.Request.Context(), tenantID, c.Param("skill"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, acc)
}

package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/careops-api/internal/handler"
	"github.com/jwalitptl/careops-api/internal/service/dashboard"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

type Handler struct {
	service *dashboard.Service
}

func NewHandler(service *dashboard.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard/summary", h.Summary)
}

// Summary also reports the poll interval in X-Poll-Interval
func (h *Handler) Summary(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), tenantID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Header("X-Poll-Interval", strconv.Itoa(summary.PollIntervalSeconds))
	httputil.RespondWithSuccess(c, http.StatusOK, summary)
}

package audit

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/careops-api/internal/handler"
	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/service/audit"
	"github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/audit")
	{
		g.GET("/logs", h.ListLogs)
		g.GET("/logs/entity/:type/:id", h.GetEntityLogs)
		g.GET("/export", h.ExportLogs)
	}
}

func (h *Handler) filter(c *gin.Context) (model.AuditFilter, bool) {
	f := model.AuditFilter{EntityType: c.Query("entity_type")}
	var ok bool
	if f.EntityID, ok = handler.QueryUUID(c, "entity_id"); !ok {
		return f, false
	}
	if f.ActorID, ok = handler.QueryUUID(c, "actor_id"); !ok {
		return f, false
	}
	if f.From, ok = handler.QueryTime(c, "from"); !ok {
		return f, false
	}
	if f.To, ok = handler.QueryTime(c, "to"); !ok {
		return f, false
	}
	if f.Limit, ok = handler.Limit(c); !ok {
		return f, false
	}
	return f, true
}

func (h *Handler) ListLogs(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	f, ok := h.filter(c)
	if !ok {
		return
	}
	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("page and page_size must be integers", err))
		return
	}
	page.Normalize()
	logs, total, err := h.service.Page(c.Request.Context(), tenantID, f, page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, logs, page.Page, page.PageSize, total)
}

func (h *Handler) GetEntityLogs(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	entityID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	limit, ok := handler.Limit(c)
	if !ok {
		return
	}

	logs, err := h.service.List(c.Request.Context(), tenantID, model.AuditFilter{
		EntityType: c.Param("type"),
		EntityID:   &entityID,
		Limit:      limit,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, logs)
}

func (h *Handler) ExportLogs(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		httputil.RespondWithError(c, errors.BadRequest("unsupported format", nil))
		return
	}
	f, ok := h.filter(c)
	if !ok {
		return
	}
	if c.Query("limit") == "" {
		f.Limit = handler.MaxLimit
	}

	logs, err := h.service.List(c.Request.Context(), tenantID, f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if format == "json" {
		httputil.RespondWithSuccess(c, http.StatusOK, logs)
		return
	}

	filename := fmt.Sprintf("audit_logs_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"ID", "Actor ID", "Action", "Entity Type", "Entity ID", "Created At"})
	for _, l := range logs {
		_ = writer.Write([]string{
			l.ID.String(),
			l.ActorID.String(),
			l.Action,
			l.EntityType,
			l.EntityID.String(),
			l.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.Flush()
}

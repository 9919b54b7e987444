package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/careops-api/internal/handler"
	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/service/notification"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

type Handler struct {
	service *notification.Service
}

func NewHandler(service *notification.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.POST("", h.Send)
		notifications.GET("", h.ListMine)
		notifications.POST("/:id/read", h.MarkRead)
	}
}

func (h *Handler) Send(c *gin.Context) {
	tenantID, ok := handler.TenantID(c)
	if !ok {
		return
	}
	var req model.SendNotificationRequest
	if !handler.Bind(c, &req) {
		return
	}
	n, err := h.service.Send(c.Request.Context(), tenantID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, n)
}

// ListMine returns the caller's notifications, newest first
func (h *Handler) ListMine(c *gin.Context) {
	id, ok := handler.Identity(c)
	if !ok {
		return
	}
	unread, ok := handler.QueryBool(c, "unread")
	if !ok {
		return
	}
	limit, ok := handler.Limit(c)
	if !ok {
		return
	}
	items, err := h.service.ListForUser(c.Request.Context(), id.TenantID, id.UserID, unread, limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, items)
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := handler.Identity(c)
	if !ok {
		return
	}
	notificationID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), id.TenantID, notificationID, id.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

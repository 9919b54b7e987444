// Package handler holds the request helpers shared by the resource handlers.
package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/tenancy"
	"github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/httputil"
	"github.com/jwalitptl/careops-api/pkg/validator"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Identity returns the caller placed on the request context by the auth
// middleware. A missing identity is answered with 401.
func Identity(c *gin.Context) (tenancy.Identity, bool) {
	id, ok := tenancy.FromContext(c.Request.Context())
	if !ok || id.TenantID == uuid.Nil {
		httputil.RespondWithError(c, errors.Unauthorized(nil))
		return tenancy.Identity{}, false
	}
	return id, true
}

// TenantID is Identity for handlers that only need the tenant
func TenantID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := Identity(c)
	return id.TenantID, ok
}

// ParamID parses a uuid path parameter
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// Bind decodes the JSON body. Field rules are enforced by the services.
func Bind(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, validator.Translate(err))
		return false
	}
	return true
}

// QueryUUID parses an optional uuid query parameter
func QueryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid "+name, err))
		return nil, false
	}
	return &id, true
}

// QueryTime parses an optional RFC 3339 query parameter
func QueryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest(name+" must be an RFC 3339 timestamp", err))
		return nil, false
	}
	return &t, true
}

// QueryBool reads an optional boolean query parameter, false when absent
func QueryBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest(name+" must be a boolean", err))
		return false, false
	}
	return v, true
}

// Limit reads the limit query parameter bounded by MaxLimit
func Limit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return DefaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		httputil.RespondWithError(c, errors.BadRequest("limit must be a positive integer", err))
		return 0, false
	}
	if n > MaxLimit {
		n = MaxLimit
	}
	return n, true
}

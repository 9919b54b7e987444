package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/tenancy"
	"github.com/jwalitptl/careops-api/pkg/auth"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

const (
	ContextTenantID = "tenant_id"
	ContextUserID   = "user_id"
	ContextRole     = "role"
)

type AuthMiddleware struct {
	tokens auth.JWTService
}

func NewAuthMiddleware(tokens auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and puts the tenant identity on
// both the gin context and the request context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.AbortWithError(c, apperrors.Unauthorized(errors.New("missing authorization header")))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.AbortWithError(c, apperrors.Unauthorized(errors.New("invalid authorization format")))
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			httputil.AbortWithError(c, apperrors.Unauthorized(err))
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			httputil.AbortWithError(c, apperrors.Unauthorized(errors.New("token subject is not a user id")))
			return
		}
		tenantID, err := uuid.Parse(claims.Tenant())
		if err != nil {
			httputil.AbortWithError(c, apperrors.Unauthorized(errors.New("token tenant is not a valid id")))
			return
		}

		id := tenancy.Identity{TenantID: tenantID, UserID: userID, Role: claims.UserRole()}
		c.Set(ContextTenantID, tenantID)
		c.Set(ContextUserID, userID)
		c.Set(ContextRole, id.Role)
		c.Request = c.Request.WithContext(tenancy.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireRole lets the request through when the caller holds one of roles
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		id, ok := tenancy.FromContext(c.Request.Context())
		if !ok {
			httputil.AbortWithError(c, apperrors.Unauthorized(errors.New("no identity on request")))
			return
		}
		if !allowed[id.Role] {
			httputil.AbortWithError(c, apperrors.Forbidden("permission denied"))
			return
		}
		c.Next()
	}
}

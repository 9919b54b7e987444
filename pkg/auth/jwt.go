package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingTenant = errors.New("token carries no tenant")
)

// Claims issued by the hosted auth provider. The tenant can arrive either
// top level or inside app_metadata.
type Claims struct {
	jwt.RegisteredClaims
	TenantID    string                 `json:"tenant_id,omitempty"`
	Email       string                 `json:"email,omitempty"`
	Role        string                 `json:"role,omitempty"`
	AppMetadata map[string]interface{} `json:"app_metadata,omitempty"`
}

// Tenant resolves the tenant id from the claims
func (c *Claims) Tenant() string {
	if c.TenantID != "" {
		return c.TenantID
	}
	if v, ok := c.AppMetadata["tenant_id"].(string); ok {
		return v
	}
	return ""
}

// UserRole prefers the application role over the provider role
func (c *Claims) UserRole() string {
	if v, ok := c.AppMetadata["role"].(string); ok && v != "" {
		return v
	}
	return c.Role
}

type JWTService interface {
	GenerateAccessToken(userID, tenantID, role string) (string, error)
	ValidateToken(token string) (*Claims, error)
}

type jwtService struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewJWTService(secret, issuer, audience string, ttl time.Duration) JWTService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &jwtService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *jwtService) GenerateAccessToken(userID, tenantID, role string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		TenantID: tenantID,
		Role:     role,
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *jwtService) ValidateToken(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Tenant() == "" {
		return nil, ErrMissingTenant
	}
	return claims, nil
}

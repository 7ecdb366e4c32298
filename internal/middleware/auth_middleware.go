// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	xerrors "dedupe-service/internal/pkg/errors"
	"dedupe-service/internal/pkg/jwt"
	"dedupe-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// TokenValidator verifies a token and checks it has not been revoked.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

type AuthMiddleware struct {
	validator TokenValidator
	disabled  bool
}

// NewAuthMiddleware builds the operator auth middleware. With disabled set,
// every request runs as a local admin operator.
func NewAuthMiddleware(validator TokenValidator, disabled bool) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		disabled:  disabled,
	}
}

// Auth is the base authentication middleware that validates JWT tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.disabled || m.validator == nil {
			setOperator(c, &jwt.Claims{OperatorID: "local", Roles: []string{jwt.RoleAdmin}})
			c.Next()
			return
		}

		token := ExtractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if xerrors.Is(err, xerrors.ErrUnauthorized) {
				response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
				return
			}
			response.FromError(c, "failed to validate token", err)
			return
		}

		setOperator(c, claims)
		c.Next()
	}
}

// RequireRole middleware that requires user to have at least one of the specified roles
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRoles, exists := c.Get("roles")
		if !exists {
			response.Error(c, http.StatusForbidden, "no roles found - authentication required", nil)
			return
		}

		userRolesList, ok := userRoles.([]string)
		if !ok {
			response.Error(c, http.StatusInternalServerError, "invalid roles format", nil)
			return
		}

		for _, userRole := range userRolesList {
			for _, requiredRole := range roles {
				if userRole == requiredRole {
					c.Next()
					return
				}
			}
		}

		err := errors.New("operator does not have required role")
		response.Error(c, http.StatusForbidden, "insufficient permissions", err, map[string]interface{}{
			"required_roles": roles,
			"user_roles":     userRolesList,
		})
	}
}

// OperatorOnly guards routes that change merge state.
func (m *AuthMiddleware) OperatorOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleOperator, jwt.RoleAdmin),
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireRole)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleAdmin),
	}
}

func setOperator(c *gin.Context, claims *jwt.Claims) {
	c.Set("operator_id", claims.OperatorID)
	c.Set("jti", claims.ID)
	c.Set("roles", claims.Roles)
	if claims.ExpiresAt != nil {
		c.Set("token_expires_at", claims.ExpiresAt.Time)
	}
}

// ExtractToken reads a Bearer header, falling back to the token query
// parameter browsers use for websocket upgrades.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}

// internal/middleware/helpers.go
package middleware

import (
	"time"

	"dedupe-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// GetOperatorID gets the authenticated operator id from context
func GetOperatorID(c *gin.Context) (string, bool) {
	id, exists := c.Get("operator_id")
	if !exists {
		return "", false
	}

	s, ok := id.(string)
	return s, ok
}

// MustGetOperatorID gets operator ID from context or panics
func MustGetOperatorID(c *gin.Context) string {
	id, exists := GetOperatorID(c)
	if !exists {
		panic("operator_id not found in context")
	}
	return id
}

// GetJTI gets the id of the token the request was authenticated with
func GetJTI(c *gin.Context) string {
	jti, _ := c.Get("jti")
	s, _ := jti.(string)
	return s
}

// GetTokenExpiry returns the expiry of the request token, zero if unknown
func GetTokenExpiry(c *gin.Context) time.Time {
	exp, _ := c.Get("token_expires_at")
	t, _ := exp.(time.Time)
	return t
}

// GetRoles gets operator roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get("roles")
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

func HasRole(c *gin.Context, role string) bool {
	for _, r := range GetRoles(c) {
		if r == role {
			return true
		}
	}
	return false
}

func IsAdmin(c *gin.Context) bool {
	return HasRole(c, jwt.RoleAdmin)
}

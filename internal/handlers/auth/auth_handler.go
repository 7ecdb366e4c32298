// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"dedupe-service/internal/domain/auth"
	"dedupe-service/internal/middleware"
	"dedupe-service/internal/pkg/response"
	authUsecase "dedupe-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *authUsecase.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *authUsecase.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// GetMe returns the authenticated operator (requires auth)
func (h *AuthHandler) GetMe(c *gin.Context) {
	response.Success(c, http.StatusOK, "operator retrieved", auth.OperatorInfo{
		OperatorID: middleware.MustGetOperatorID(c),
		TokenID:    middleware.GetJTI(c),
		Roles:      middleware.GetRoles(c),
		ExpiresAt:  middleware.GetTokenExpiry(c),
	})
}

// Logout revokes the token used for this request (requires auth)
func (h *AuthHandler) Logout(c *gin.Context) {
	operatorID := middleware.MustGetOperatorID(c)
	jti := middleware.GetJTI(c)

	if err := h.authService.Logout(c.Request.Context(), operatorID, jti, middleware.GetTokenExpiry(c)); err != nil {
		h.logger.Error("logout failed",
			zap.String("operator_id", operatorID),
			zap.Error(err),
		)
		response.FromError(c, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// RevokeToken blacklists a token by id (admin only)
func (h *AuthHandler) RevokeToken(c *gin.Context) {
	var req auth.RevokeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), middleware.MustGetOperatorID(c), req.JTI); err != nil {
		response.FromError(c, "failed to revoke token", err)
		return
	}

	response.Success(c, http.StatusOK, "token revoked", gin.H{"jti": req.JTI})
}

// internal/domain/auth/dto.go
package auth

import "time"

// OperatorInfo describes the operator behind the current request.
type OperatorInfo struct {
	OperatorID string    `json:"operator_id"`
	TokenID    string    `json:"token_id,omitempty"`
	Roles      []string  `json:"roles"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

type RevokeTokenRequest struct {
	JTI string `json:"jti" binding:"required"`
}

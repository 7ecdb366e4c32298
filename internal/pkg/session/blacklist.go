// internal/pkg/session/blacklist.go
package session

import (
	"context"
	"time"
)

// Blacklist records revoked token ids until the tokens would have expired.
type Blacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
}

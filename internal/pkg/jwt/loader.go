// internal/pkg/jwt/loader.go
package jwt

import (
	"errors"
	"fmt"
	"time"
)

// Config names the key files and claims shared by the API, which only
// verifies, and dedupectl, which mints.
type Config struct {
	PrivPath string
	PubPath  string
	Issuer   string
	Audience string
	TTL      time.Duration
	KID      string
}

func LoadVerifier(cfg Config) (*Verifier, error) {
	if cfg.PubPath == "" {
		return nil, errors.New("JWT_PUBLIC_KEY_PATH is not set")
	}
	pub, err := LoadRSAPublicKeyFromPEM(cfg.PubPath)
	if err != nil {
		return nil, fmt.Errorf("verifier key %s: %w", cfg.PubPath, err)
	}
	return NewVerifier(pub, cfg.Issuer, cfg.Audience), nil
}

func LoadGenerator(cfg Config) (*Generator, error) {
	if cfg.PrivPath == "" {
		return nil, errors.New("JWT_PRIVATE_KEY_PATH is not set")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %s", cfg.TTL)
	}
	priv, err := LoadRSAPrivateKeyFromPEM(cfg.PrivPath)
	if err != nil {
		return nil, fmt.Errorf("signing key %s: %w", cfg.PrivPath, err)
	}
	return NewGenerator(priv, cfg.Issuer, cfg.Audience, cfg.KID, cfg.TTL), nil
}

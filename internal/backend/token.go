package backend

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"manualsmap/internal/config"
)

// TokenFetcher fetches a fresh map token.
type TokenFetcher interface {
	ConfiguredToken(ctx context.Context) (string, error)
}

// TokenSource caches the map token until shortly before it expires.
//
// The token is a JWT signed by the backend with a key the controller never
// sees, so only its exp claim is read; the signature is not checked.
type TokenSource struct {
	fetcher     TokenFetcher
	skew        time.Duration
	fallbackTTL time.Duration
	now         func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource creates a token cache in front of fetcher.
func NewTokenSource(fetcher TokenFetcher, cfg config.BackendConfig) *TokenSource {
	return &TokenSource{
		fetcher:     fetcher,
		skew:        cfg.TokenRefreshSkew,
		fallbackTTL: cfg.FallbackTokenTTL,
		now:         time.Now,
	}
}

// Token returns the cached token, fetching a new one when none is cached or
// the cached one is within the refresh skew of expiring.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt.Add(-s.skew)) {
		return s.token, nil
	}

	token, err := s.fetcher.ConfiguredToken(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expiresAt = s.expiry(token)
	log.Printf("[BACKEND] Map token refreshed, expires %s", s.expiresAt.Format(time.RFC3339))
	return token, nil
}

// Invalidate drops the cached token.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

func (s *TokenSource) expiry(token string) time.Time {
	fallback := s.now().Add(s.fallbackTTL)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fallback
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}

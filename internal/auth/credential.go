package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/handiism/suno-downloader/internal/logging"
	"github.com/handiism/suno-downloader/internal/metrics"
)

// ErrNoCredential is returned when every source failed. No work can proceed
// without a credential, so the pipeline treats it as fatal.
var ErrNoCredential = errors.New("no credential available")

// DefaultTTL is how long a fetched token is reused before refreshing.
const DefaultTTL = 5 * time.Minute

// expirySkew refreshes JWTs this long before their exp claim.
const expirySkew = 30 * time.Second

// Credential is a bearer token held in memory only.
type Credential struct {
	Token     string
	FetchedAt time.Time

	// ExpiresAt is the token's own expiry when it is a JWT with an exp
	// claim. Zero otherwise.
	ExpiresAt time.Time

	// Source names the Source that produced the token.
	Source string
}

// Source produces a fresh token.
type Source interface {
	Name() string
	Token(ctx context.Context) (string, error)
}

// Cache holds the current credential and refreshes it from an ordered list
// of sources.
type Cache struct {
	sources []Source
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger

	mu      sync.Mutex
	current *Credential
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger for source fallbacks.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) { c.logger = logging.OrNop(l) }
}

// NewCache creates a Cache that tries sources in order. A non-positive ttl
// means DefaultTTL.
func NewCache(ttl time.Duration, sources []Source, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		sources: sources,
		ttl:     ttl,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached credential while it is fresh. With forceRefresh,
// or once the credential is stale, the sources are consulted again.
//
// A refresh that fails leaves the previous credential in place but still
// returns ErrNoCredential.
func (c *Cache) Get(ctx context.Context, forceRefresh bool) (Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && c.current != nil && c.fresh(*c.current) {
		return *c.current, nil
	}

	for _, src := range c.sources {
		token, err := src.Token(ctx)
		if err == nil && token == "" {
			err = errors.New("empty token")
		}
		if err != nil {
			metrics.RecordCredential(src.Name(), false)
			c.logger.Warn("credential source failed, trying next",
				zap.String("source", src.Name()), zap.Error(err))
			if ctx.Err() != nil {
				return Credential{}, ctx.Err()
			}
			continue
		}

		metrics.RecordCredential(src.Name(), true)
		cred := Credential{
			Token:     token,
			FetchedAt: c.now(),
			ExpiresAt: jwtExpiry(token),
			Source:    src.Name(),
		}
		c.current = &cred
		c.logger.Debug("credential refreshed",
			zap.String("source", cred.Source),
			zap.Time("expires_at", cred.ExpiresAt))
		return cred, nil
	}

	return Credential{}, fmt.Errorf("tried %d sources: %w", len(c.sources), ErrNoCredential)
}

// fresh reports whether cred is younger than the TTL and not past its own
// expiry.
func (c *Cache) fresh(cred Credential) bool {
	now := c.now()
	if now.Sub(cred.FetchedAt) >= c.ttl {
		return false
	}
	if !cred.ExpiresAt.IsZero() && !now.Before(cred.ExpiresAt.Add(-expirySkew)) {
		return false
	}
	return true
}

// jwtExpiry reads the exp claim without verifying the signature. The token
// is only ever passed back to the server that issued it.
func jwtExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

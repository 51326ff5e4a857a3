// Package identity resolves opaque bearer tokens into profile identities.
// Tokens live in Redis under auth:token:<token> with a sliding TTL; the
// profile row is loaded from the database so a deactivated profile cannot
// keep using an old token.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/oggyb/matchpoint/internal/cache"
	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
)

// Identity is the resolved caller, threaded explicitly through every
// operation that needs it. There is no ambient "current user".
type Identity struct {
	ProfileID   string
	DisplayName string
}

// Provider resolves tokens against Redis and the profile table.
type Provider struct {
	cache    *cache.RedisCache
	db       *gorm.DB
	tokenTTL time.Duration
}

// NewProvider creates a Provider with the given token TTL.
func NewProvider(c *cache.RedisCache, database *gorm.DB, tokenTTL time.Duration) *Provider {
	return &Provider{cache: c, db: database, tokenTTL: tokenTTL}
}

// Resolve maps a bearer token to an Identity.
// Unknown or expired tokens, and tokens for missing or deactivated
// profiles, all yield errors.ErrUnauthenticated.
func (p *Provider) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, svcErr.ErrUnauthenticated
	}

	key := p.cache.KeyForAuthToken(token)
	profileID, err := p.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, svcErr.ErrUnauthenticated
		}
		return Identity{}, err
	}

	var profile db.Profile
	if err := p.db.WithContext(ctx).First(&profile, "id = ?", profileID).Error; err != nil {
		if svcErr.IsNotFound(err) {
			return Identity{}, svcErr.ErrUnauthenticated
		}
		return Identity{}, err
	}
	if !profile.Active {
		return Identity{}, svcErr.ErrUnauthenticated
	}

	// Sliding expiry: an active connection keeps its token alive.
	_ = p.cache.Client.Expire(ctx, key, p.tokenTTL).Err()

	return Identity{ProfileID: profile.ID, DisplayName: profile.DisplayName}, nil
}

// IssueToken creates a fresh token for the profile and stores it with the
// provider's TTL. Used by the login flow and the seed command.
func (p *Provider) IssueToken(ctx context.Context, profileID string) (string, error) {
	token := uuid.NewString()
	key := p.cache.KeyForAuthToken(token)
	if err := p.cache.Set(ctx, key, profileID, p.tokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// Revoke invalidates a token immediately.
func (p *Provider) Revoke(ctx context.Context, token string) error {
	return p.cache.Del(ctx, p.cache.KeyForAuthToken(token))
}

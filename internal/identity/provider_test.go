package identity_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/matchpoint/internal/cache"
	"github.com/oggyb/matchpoint/internal/config"
	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
	"github.com/oggyb/matchpoint/internal/identity"
)

const tokenTTL = time.Hour

func setupProvider(t *testing.T) (*identity.Provider, *miniredis.Miniredis, *gorm.DB) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbase.AutoMigrate(&db.Profile{}))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	redisCache := cache.NewRedisCache(cfg)

	return identity.NewProvider(redisCache, dbase, tokenTTL), mr, dbase
}

func seedProfile(t *testing.T, dbase *gorm.DB, id, name string) {
	t.Helper()
	require.NoError(t, dbase.Create(&db.Profile{
		ID:           id,
		DisplayName:  name,
		Email:        name + "@test.com",
		PasswordHash: "x",
		Active:       true,
	}).Error)
}

func TestIssueAndResolveToken(t *testing.T) {
	ctx := context.Background()
	provider, _, dbase := setupProvider(t)
	seedProfile(t, dbase, "p-1", "amina")

	token, err := provider.IssueToken(ctx, "p-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := provider.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "p-1", id.ProfileID)
	assert.Equal(t, "amina", id.DisplayName)
}

func TestResolveRejectsUnknownToken(t *testing.T) {
	provider, _, _ := setupProvider(t)

	_, err := provider.Resolve(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)

	_, err = provider.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	provider, mr, dbase := setupProvider(t)
	seedProfile(t, dbase, "p-1", "amina")

	token, err := provider.IssueToken(ctx, "p-1")
	require.NoError(t, err)

	mr.FastForward(tokenTTL + time.Second)

	_, err = provider.Resolve(ctx, token)
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)
}

// Each successful resolve renews the TTL, so an active session outlives the
// original expiry.
func TestResolveSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	provider, mr, dbase := setupProvider(t)
	seedProfile(t, dbase, "p-1", "amina")

	token, err := provider.IssueToken(ctx, "p-1")
	require.NoError(t, err)

	mr.FastForward(tokenTTL - time.Minute)
	_, err = provider.Resolve(ctx, token)
	require.NoError(t, err)

	// past the original deadline, before the renewed one
	mr.FastForward(tokenTTL - time.Minute)
	_, err = provider.Resolve(ctx, token)
	assert.NoError(t, err)
}

func TestResolveRejectsDeactivatedProfile(t *testing.T) {
	ctx := context.Background()
	provider, _, dbase := setupProvider(t)
	seedProfile(t, dbase, "p-1", "amina")

	token, err := provider.IssueToken(ctx, "p-1")
	require.NoError(t, err)

	require.NoError(t, dbase.Model(&db.Profile{}).
		Where("id = ?", "p-1").
		Update("active", false).Error)

	_, err = provider.Resolve(ctx, token)
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)
}

func TestResolveRejectsMissingProfile(t *testing.T) {
	ctx := context.Background()
	provider, _, _ := setupProvider(t)

	// token points at a profile that was never created
	token, err := provider.IssueToken(ctx, "ghost")
	require.NoError(t, err)

	_, err = provider.Resolve(ctx, token)
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)
}

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()
	provider, _, dbase := setupProvider(t)
	seedProfile(t, dbase, "p-1", "amina")

	token, err := provider.IssueToken(ctx, "p-1")
	require.NoError(t, err)
	require.NoError(t, provider.Revoke(ctx, token))

	_, err = provider.Resolve(ctx, token)
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)
}

package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
	"github.com/oggyb/matchpoint/internal/repository"
)

// Fixed profile ids in ascending order, so canonical match storage
// (alice < bob < carol) is predictable in assertions.
const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
	carol = "33333333-3333-3333-3333-333333333333"
)

// setup in-memory DB, shared-cache so transactions see the migrated schema
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(&db.Profile{}, &db.Swipe{}, &db.Match{}, &db.Block{}, &db.Message{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func countRows(t *testing.T, dbase *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, dbase.Model(model).Count(&n).Error)
	return n
}

func TestRecordSwipeMutualLikeCreatesMatch(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	// first like: no reciprocal row yet
	swipe, match, err := repo.RecordSwipe(ctx, alice, bob, db.SwipeLike)
	require.NoError(t, err)
	require.NotNil(t, swipe)
	assert.Nil(t, match)

	// reciprocal like completes the match
	_, match, err = repo.RecordSwipe(ctx, bob, alice, db.SwipeLike)
	require.NoError(t, err)
	require.NotNil(t, match)

	// canonical storage order, one row total
	assert.Equal(t, alice, match.UserAID)
	assert.Equal(t, bob, match.UserBID)
	assert.True(t, match.IsActive)
	assert.Equal(t, int64(1), countRows(t, dbase, &db.Match{}))
}

func TestRecordSwipeSuperlikeCountsAsPositive(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	_, _, err := repo.RecordSwipe(ctx, bob, alice, db.SwipeSuperlike)
	require.NoError(t, err)

	_, match, err := repo.RecordSwipe(ctx, alice, bob, db.SwipeLike)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, int64(1), countRows(t, dbase, &db.Match{}))
}

func TestRecordSwipeDislikeNeverMatches(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	// bob likes alice, alice dislikes back
	_, _, err := repo.RecordSwipe(ctx, bob, alice, db.SwipeLike)
	require.NoError(t, err)

	_, match, err := repo.RecordSwipe(ctx, alice, bob, db.SwipeDislike)
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Equal(t, int64(0), countRows(t, dbase, &db.Match{}))
}

func TestRecordSwipeSelfRejected(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	_, _, err := repo.RecordSwipe(ctx, alice, alice, db.SwipeLike)
	assert.ErrorIs(t, err, svcErr.ErrSelfAction)
	assert.Equal(t, int64(0), countRows(t, dbase, &db.Swipe{}))
}

func TestRecordSwipeDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	_, _, err := repo.RecordSwipe(ctx, alice, bob, db.SwipeLike)
	require.NoError(t, err)

	// same ordered pair again, even with a different value
	_, _, err = repo.RecordSwipe(ctx, alice, bob, db.SwipeDislike)
	assert.ErrorIs(t, err, svcErr.ErrDuplicateSwipe)
	assert.Equal(t, int64(1), countRows(t, dbase, &db.Swipe{}))
}

// A racing transaction may have inserted the pair's match first; the loser
// must return the existing row instead of erroring or duplicating it.
func TestRecordSwipeAdoptsExistingMatchRow(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	_, _, err := repo.RecordSwipe(ctx, bob, alice, db.SwipeLike)
	require.NoError(t, err)

	existing := db.Match{
		ID:       "99999999-9999-9999-9999-999999999999",
		UserAID:  alice,
		UserBID:  bob,
		IsActive: true,
	}
	require.NoError(t, dbase.Create(&existing).Error)

	_, match, err := repo.RecordSwipe(ctx, alice, bob, db.SwipeLike)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, existing.ID, match.ID)
	assert.Equal(t, int64(1), countRows(t, dbase, &db.Match{}))
}

// Reciprocal likes submitted at the same time must both succeed and
// converge on a single match row, whichever transaction lands first.
func TestRecordSwipeConcurrentReciprocalLikes(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // sqlite allows one writer at a time

	repo := repository.NewSwipeRepository(dbase)

	type outcome struct {
		match *db.Match
		err   error
	}
	results := make(chan outcome, 2)
	start := make(chan struct{})
	for _, pair := range [][2]string{{alice, bob}, {bob, alice}} {
		go func(swiperID, targetID string) {
			<-start
			_, match, err := repo.RecordSwipe(ctx, swiperID, targetID, db.SwipeLike)
			results <- outcome{match: match, err: err}
		}(pair[0], pair[1])
	}
	close(start)

	matched := 0
	for i := 0; i < 2; i++ {
		res := <-results
		require.NoError(t, res.err)
		if res.match != nil {
			matched++
			assert.Equal(t, alice, res.match.UserAID)
			assert.Equal(t, bob, res.match.UserBID)
		}
	}

	// whoever ran second saw the reciprocal row; exactly one match exists
	require.GreaterOrEqual(t, matched, 1)
	assert.Equal(t, int64(1), countRows(t, dbase, &db.Match{}))
}

func TestGetBetweenAndHasLiked(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	_, _, err := repo.RecordSwipe(ctx, alice, bob, db.SwipeLike)
	require.NoError(t, err)
	_, _, err = repo.RecordSwipe(ctx, alice, carol, db.SwipeDislike)
	require.NoError(t, err)

	swipe, err := repo.GetBetween(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, db.SwipeLike, swipe.Value)

	_, err = repo.GetBetween(ctx, bob, alice)
	assert.True(t, svcErr.IsNotFound(err))

	liked, err := repo.HasLiked(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, liked)

	// a dislike is not a like
	liked, err = repo.HasLiked(ctx, alice, carol)
	require.NoError(t, err)
	assert.False(t, liked)
}

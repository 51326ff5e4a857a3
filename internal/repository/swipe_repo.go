package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
)

// SwipeRepository provides data access methods for the Swipe model and owns
// the swipe-then-match critical section.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// positiveValues are the swipe values that can complete a match.
var positiveValues = []string{db.SwipeLike, db.SwipeSuperlike}

// RecordSwipe inserts a swipe and, for positive values, detects and creates
// the mutual match in the same transaction.
//
// Behavior:
//   - swiper == target → errors.ErrSelfAction, nothing written.
//   - Existing (swiper, target) row → errors.ErrDuplicateSwipe, nothing written.
//   - For LIKE/SUPER, the reciprocal (target → swiper) row is locked FOR
//     UPDATE before the existence check so two opposite-direction swipes
//     cannot both conclude "no reciprocal yet".
//   - The match insert is a get-or-create keyed on the canonical ordered
//     pair; when a racing transaction slipped past the lock, the loser's
//     insert hits the unique constraint and the winner's row is returned
//     instead of surfacing the conflict.
//
// Returns the created swipe and the match, nil match if no mutual like.
func (r *SwipeRepository) RecordSwipe(
	ctx context.Context,
	swiperID, targetID, value string,
) (*db.Swipe, *db.Match, error) {
	if swiperID == targetID {
		return nil, nil, svcErr.ErrSelfAction
	}

	swipe := db.Swipe{
		ID:       uuid.NewString(),
		SwiperID: swiperID,
		TargetID: targetID,
		Value:    value,
	}
	var match *db.Match

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&swipe).Error; err != nil {
			if svcErr.IsDuplicateKey(err) {
				return svcErr.ErrDuplicateSwipe
			}
			return fmt.Errorf("insert swipe: %w", err)
		}

		if value != db.SwipeLike && value != db.SwipeSuperlike {
			return nil
		}

		// Lock the reciprocal row for the rest of the transaction. A
		// concurrent opposite-direction transaction blocks here until we
		// commit, so at most one of the two sees "no match row yet".
		var reciprocal db.Swipe
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("swiper_id = ? AND target_id = ? AND value IN ?", targetID, swiperID, positiveValues).
			First(&reciprocal).Error
		if err != nil {
			if svcErr.IsNotFound(err) {
				return nil // no reciprocal like, no match
			}
			return fmt.Errorf("lock reciprocal swipe: %w", err)
		}

		userA, userB := db.CanonicalPair(swiperID, targetID)
		candidate := db.Match{
			ID:       uuid.NewString(),
			UserAID:  userA,
			UserBID:  userB,
			IsActive: true,
		}
		// Second line of defense: under looser isolation two transactions
		// can race past the lock; the loser's insert is absorbed by the
		// unique pair constraint and we adopt the winner's row below.
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_a_id"}, {Name: "user_b_id"}},
			DoNothing: true,
		}).Create(&candidate).Error
		if err != nil && !svcErr.IsDuplicateKey(err) {
			return fmt.Errorf("insert match: %w", err)
		}

		// Locking read so a racing loser observes the winner's committed
		// row instead of its own snapshot.
		var won db.Match
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_a_id = ? AND user_b_id = ?", userA, userB).
			First(&won).Error; err != nil {
			return fmt.Errorf("load match: %w", err)
		}
		match = &won
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return &swipe, match, nil
}

// GetBetween returns the swipe made by swiperID on targetID.
func (r *SwipeRepository) GetBetween(ctx context.Context, swiperID, targetID string) (*db.Swipe, error) {
	var swipe db.Swipe
	err := r.db.WithContext(ctx).
		Where("swiper_id = ? AND target_id = ?", swiperID, targetID).
		First(&swipe).Error
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &swipe, nil
}

// HasLiked checks whether swiperID has an outstanding positive swipe on
// targetID.
func (r *SwipeRepository) HasLiked(ctx context.Context, swiperID, targetID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Swipe{}).
		Where("swiper_id = ? AND target_id = ? AND value IN ?", swiperID, targetID, positiveValues).
		Count(&count).Error
	return count > 0, err
}

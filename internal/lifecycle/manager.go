// Package lifecycle owns the cascade that a block or unmatch triggers:
// flip the pair's swipes to DISLIKE, delete the match row, then tear down
// the match's chat room. The swipe flip and the match delete always run in
// the same transaction as the write that triggered them, so a crash cannot
// leave a dangling match with already-flipped swipes or the reverse.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/matchpoint/internal/app"
	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
	"github.com/oggyb/matchpoint/internal/metrics"
)

// RoomCloser is notified after a match has been deleted so the chat side can
// force-close the room. Called outside the deleting transaction, once it has
// committed.
type RoomCloser interface {
	CloseRoom(matchID string)
}

// Manager cascades block/unmatch side effects onto swipes and matches.
type Manager struct {
	appCtx *app.AppContext
	rooms  RoomCloser
}

// NewManager creates a Manager. rooms may be nil when no chat server is
// running (e.g. the seed command).
func NewManager(appCtx *app.AppContext, rooms RoomCloser) *Manager {
	return &Manager{appCtx: appCtx, rooms: rooms}
}

// OnBlockCreated inserts the block and atomically tears down any match
// between the two profiles.
//
// Behavior:
//   - blocker == blocked → errors.ErrSelfAction.
//   - Existing (blocker, blocked) row → errors.ErrDuplicateBlock.
//   - Any match between the two (in either stored order) has its swipes
//     flipped first, while the row is still live, then is deleted, all in
//     the block's transaction.
//   - Messages are retained; only the match and room access are revoked.
//
// Returns the created block and the id of the deleted match ("" if none).
func (m *Manager) OnBlockCreated(ctx context.Context, blockerID, blockedID string) (*db.Block, string, error) {
	if blockerID == blockedID {
		return nil, "", svcErr.ErrSelfAction
	}

	block := db.Block{
		ID:        uuid.NewString(),
		BlockerID: blockerID,
		BlockedID: blockedID,
	}
	var deletedMatchID string

	err := m.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&block).Error; err != nil {
			if svcErr.IsDuplicateKey(err) {
				return svcErr.ErrDuplicateBlock
			}
			return fmt.Errorf("insert block: %w", err)
		}

		userA, userB := db.CanonicalPair(blockerID, blockedID)
		var match db.Match
		err := tx.Where("user_a_id = ? AND user_b_id = ?", userA, userB).
			First(&match).Error
		if err != nil {
			if svcErr.IsNotFound(err) {
				return nil // nothing matched, block alone stands
			}
			return fmt.Errorf("find match: %w", err)
		}

		if err := m.onMatchDeleted(tx, &match); err != nil {
			return err
		}
		if err := tx.Delete(&db.Match{}, "id = ?", match.ID).Error; err != nil {
			return fmt.Errorf("delete match: %w", err)
		}
		deletedMatchID = match.ID
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	if deletedMatchID != "" {
		m.appCtx.Logger.Info("match torn down by block",
			"match_id", deletedMatchID, "blocker", blockerID, "blocked", blockedID)
		m.afterTeardown(ctx, deletedMatchID, blockerID, blockedID)
	}
	return &block, deletedMatchID, nil
}

// Unmatch deletes the match at a participant's request, running the same
// cascade as a block but without creating a block row.
func (m *Manager) Unmatch(ctx context.Context, matchID, requesterID string) error {
	var userA, userB string
	err := m.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var match db.Match
		if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
			return svcErr.Map(err)
		}
		if !match.HasParticipant(requesterID) {
			return svcErr.ErrForbidden
		}

		if err := m.onMatchDeleted(tx, &match); err != nil {
			return err
		}
		if err := tx.Delete(&db.Match{}, "id = ?", match.ID).Error; err != nil {
			return fmt.Errorf("delete match: %w", err)
		}
		userA, userB = match.UserAID, match.UserBID
		return nil
	})
	if err != nil {
		return err
	}

	m.appCtx.Logger.Info("match removed by participant",
		"match_id", matchID, "requester", requesterID)
	m.afterTeardown(ctx, matchID, userA, userB)
	return nil
}

// onMatchDeleted flips every swipe between the match's participants (both
// directions) to DISLIKE. It must run before the match row is removed, while
// participant identities are still readable, and inside the deleting
// transaction. Idempotent: re-running against an already-flipped pair
// changes nothing.
func (m *Manager) onMatchDeleted(tx *gorm.DB, match *db.Match) error {
	pair := []string{match.UserAID, match.UserBID}
	err := tx.Model(&db.Swipe{}).
		Where("swiper_id IN ? AND target_id IN ?", pair, pair).
		Update("value", db.SwipeDislike).Error
	if err != nil {
		return fmt.Errorf("flip swipes: %w", err)
	}
	return nil
}

// afterTeardown runs the post-commit side effects: evict the chat room and
// drop both participants' cached match counts.
func (m *Manager) afterTeardown(ctx context.Context, matchID, userA, userB string) {
	metrics.MatchesDestroyed.Inc()
	if m.rooms != nil {
		m.rooms.CloseRoom(matchID)
	}
	if m.appCtx.CacheAvailable() {
		_ = m.appCtx.RedisCache.Del(ctx, m.appCtx.RedisCache.KeyForMatchCount(userA))
		_ = m.appCtx.RedisCache.Del(ctx, m.appCtx.RedisCache.KeyForMatchCount(userB))
	}
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
	"github.com/oggyb/matchpoint/internal/utils/pagination"
)

// MatchRepository provides data access methods for the Match model. It also
// implements the match-lookup collaborator consumed by the chat room
// registry (Get + IsParticipant).
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// Get returns the match with the given id.
func (r *MatchRepository) Get(ctx context.Context, matchID string) (*db.Match, error) {
	var match db.Match
	if err := r.db.WithContext(ctx).First(&match, "id = ?", matchID).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	return &match, nil
}

// IsParticipant reports whether profileID is one of the match's two users.
func (r *MatchRepository) IsParticipant(profileID string, match *db.Match) bool {
	return match != nil && match.HasParticipant(profileID)
}

// FindBetween returns the match between the two profiles regardless of which
// one is stored as user A.
func (r *MatchRepository) FindBetween(ctx context.Context, profileA, profileB string) (*db.Match, error) {
	userA, userB := db.CanonicalPair(profileA, profileB)
	var match db.Match
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", userA, userB).
		First(&match).Error
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &match, nil
}

// ListForProfile returns the profile's active matches, newest first, with
// cursor-based pagination.
func (r *MatchRepository) ListForProfile(
	ctx context.Context,
	profileID string,
	paginationToken *string,
	limit int,
) ([]db.Match, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("(user_a_id = ? OR user_b_id = ?) AND is_active = ?", profileID, profileID, true).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.ID,
		)
	}

	var matches []db.Match
	if err := query.Find(&matches).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(matches) > limit {
		last := matches[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		matches = matches[:limit]
	}

	return matches, nextToken, nil
}

// CountForProfile returns how many active matches the profile has.
func (r *MatchRepository) CountForProfile(ctx context.Context, profileID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Match{}).
		Where("(user_a_id = ? OR user_b_id = ?) AND is_active = ?", profileID, profileID, true).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

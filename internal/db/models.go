package db

import (
	"time"
)

// Swipe values. SUPER matches the wire value used by clients for superlikes.
const (
	SwipeLike      = "LIKE"
	SwipeDislike   = "DISLIKE"
	SwipeSuperlike = "SUPER"
)

// Profile is the identity unit users swipe on. Discovery attributes
// (age range, gender preference, location) live upstream; only what the
// match/chat core needs is stored here.
type Profile struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	DisplayName  string    `gorm:"size:64;not null"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	Active       bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Swipe is a directional vote by one profile on another.
//
// Constraints:
//   - uniq_swipe_pair(swiper_id, target_id): one row per ordered pair.
//     The pair index also serves the reciprocal-row lookup in the match
//     transaction.
//
// Rows are never deleted; cascade teardown flips Value to DISLIKE.
type Swipe struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	SwiperID  string    `gorm:"type:char(36);not null;uniqueIndex:uniq_swipe_pair,priority:1"`
	TargetID  string    `gorm:"type:char(36);not null;uniqueIndex:uniq_swipe_pair,priority:2"`
	Value     string    `gorm:"size:10;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Match is the bidirectional relationship unlocked by a reciprocal like.
//
// Constraints:
//   - uniq_match_pair(user_a_id, user_b_id): one row per pair.
//   - Canonical storage order: UserAID < UserBID. Callers must canonicalize
//     before insert so the unordered pair maps to exactly one row.
//
// IsActive carries no column default: a default tag would make gorm omit
// the zero value on insert and an inactive match could never be stored.
// Creators set it explicitly.
type Match struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	UserAID   string    `gorm:"type:char(36);not null;uniqueIndex:uniq_match_pair,priority:1"`
	UserBID   string    `gorm:"type:char(36);not null;uniqueIndex:uniq_match_pair,priority:2;index"`
	IsActive  bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// Other returns the participant that is not profileID, or "" if profileID
// is not a participant.
func (m *Match) Other(profileID string) string {
	switch profileID {
	case m.UserAID:
		return m.UserBID
	case m.UserBID:
		return m.UserAID
	}
	return ""
}

// HasParticipant reports whether profileID is one of the two participants.
func (m *Match) HasParticipant(profileID string) bool {
	return profileID == m.UserAID || profileID == m.UserBID
}

// Block is a directional block. A blocking B does not imply B blocking A,
// and deleting a block does not resurrect a torn-down match.
type Block struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	BlockerID string    `gorm:"type:char(36);not null;uniqueIndex:uniq_block_pair,priority:1"`
	BlockedID string    `gorm:"type:char(36);not null;uniqueIndex:uniq_block_pair,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Message belongs to exactly one match; the sender must be a participant.
// Immutable after insert except for IsRead.
//
// Index idx_message_room(match_id, created_at DESC) serves the per-room
// history query with cursor pagination.
type Message struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	MatchID   string    `gorm:"type:char(36);not null;index:idx_message_room,priority:1"`
	SenderID  string    `gorm:"type:char(36);not null"`
	Text      string    `gorm:"size:2000;not null"`
	IsRead    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_message_room,priority:2,sort:desc"`
}

// CanonicalPair orders two profile ids into match storage order.
func CanonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
	"github.com/oggyb/matchpoint/internal/utils/pagination"
)

// MessageRepository provides durable storage for chat messages. It is the
// concrete message persistence gateway behind the chat room registry: the
// registry broadcasts only after Store has returned.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Store persists a message for the given match.
//
// Behavior:
//   - Missing match → errors.ErrNotFound.
//   - Sender not a participant of the match → errors.ErrNotFound, so the
//     gateway never leaks whether the room exists to outsiders.
//   - Nothing is written when validation fails.
func (r *MessageRepository) Store(ctx context.Context, matchID, senderID, text string) (*db.Message, error) {
	var msg db.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var match db.Match
		if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
			return svcErr.Map(err)
		}
		if !match.HasParticipant(senderID) {
			return svcErr.ErrNotFound
		}

		msg = db.Message{
			ID:       uuid.NewString(),
			MatchID:  matchID,
			SenderID: senderID,
			Text:     text,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByMatch returns a match's messages, newest first, with cursor-based
// pagination. The caller must be a participant.
func (r *MessageRepository) ListByMatch(
	ctx context.Context,
	matchID, requesterID string,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	var match db.Match
	if err := r.db.WithContext(ctx).First(&match, "id = ?", matchID).Error; err != nil {
		return nil, nil, svcErr.Map(err)
	}
	if !match.HasParticipant(requesterID) {
		return nil, nil, svcErr.ErrForbidden
	}

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ?", matchID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.ID,
		)
	}

	var messages []db.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		messages = messages[:limit]
	}

	return messages, nextToken, nil
}

// MarkRead flags every message in the match sent by the other participant
// as read. The reader must be a participant. Idempotent.
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, readerID string) error {
	var match db.Match
	if err := r.db.WithContext(ctx).First(&match, "id = ?", matchID).Error; err != nil {
		return svcErr.Map(err)
	}
	if !match.HasParticipant(readerID) {
		return svcErr.ErrForbidden
	}

	return r.db.WithContext(ctx).Model(&db.Message{}).
		Where("match_id = ? AND sender_id <> ? AND is_read = ?", matchID, readerID, false).
		Update("is_read", true).Error
}

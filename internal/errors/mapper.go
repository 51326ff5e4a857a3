// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Domain sentinels. Services and the chat gate branch on these instead of
// inspecting driver errors.
var (
	// ErrSelfAction is returned when a profile swipes on or blocks itself.
	ErrSelfAction = errors.New("cannot act on yourself")

	// ErrDuplicateSwipe is returned when a (swiper, target) pair already
	// has a swipe row.
	ErrDuplicateSwipe = errors.New("swipe already recorded for this pair")

	// ErrDuplicateBlock is returned when the ordered (blocker, blocked)
	// pair already has a block row.
	ErrDuplicateBlock = errors.New("block already recorded for this pair")

	// ErrInvalidSwipeValue is returned for swipe values outside
	// LIKE/DISLIKE/SUPER.
	ErrInvalidSwipeValue = errors.New("unsupported swipe value")

	// ErrNotFound is returned when a match, profile or message does not
	// exist.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden is returned when an authenticated identity is not a
	// participant of the match it is acting on.
	ErrForbidden = errors.New("not a participant of this match")

	// ErrUnauthenticated is returned when a credential is missing, expired
	// or unknown.
	ErrUnauthenticated = errors.New("invalid or missing credential")

	// ErrRoomClosed is returned when a room no longer accepts joins because
	// its match was torn down.
	ErrRoomClosed = errors.New("room is closed")
)

// Map converts repo/infra errors into domain errors. Keeps the service and
// chat layers clean by centralizing the translation.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return err

	default:
		return err
	}
}

// IsNotFound reports whether err is the domain not-found error, directly or
// wrapped.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKey reports whether err is a unique-constraint violation as
// surfaced by gorm's error translation.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

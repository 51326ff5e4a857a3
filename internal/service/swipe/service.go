package swipe

import (
	"context"
	"strconv"
	"time"

	"github.com/oggyb/matchpoint/internal/app"
	"github.com/oggyb/matchpoint/internal/db"
	svcErr "github.com/oggyb/matchpoint/internal/errors"
	"github.com/oggyb/matchpoint/internal/metrics"
	"github.com/oggyb/matchpoint/internal/repository"
)

// Service is the vote-facing API of the match core. It contains the business
// logic on top of the repository and cache layers; the transactional match
// detection itself lives in repository.SwipeRepository.
type Service struct {
	appCtx    *app.AppContext
	swipeRepo *repository.SwipeRepository
	matchRepo *repository.MatchRepository
}

// NewService creates a new swipe service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		swipeRepo: repository.NewSwipeRepository(appCtx.DB),
		matchRepo: repository.NewMatchRepository(appCtx.DB),
	}
}

// PutSwipe records a vote by actor on target and returns the created swipe
// plus the match when the vote completed a reciprocal like.
//
// Behavior:
//   - Validates the swipe value (LIKE/DISLIKE/SUPER).
//   - Delegates the atomic insert + reciprocal check to the repository.
//   - On a new match, bumps both participants' cached match counts.
func (s *Service) PutSwipe(ctx context.Context, actorID, targetID, value string) (*db.Swipe, *db.Match, error) {
	s.appCtx.Logger.Debug("PutSwipe called",
		"actor", actorID, "target", targetID, "value", value)

	switch value {
	case db.SwipeLike, db.SwipeDislike, db.SwipeSuperlike:
	default:
		return nil, nil, svcErr.ErrInvalidSwipeValue
	}

	swipe, match, err := s.swipeRepo.RecordSwipe(ctx, actorID, targetID, value)
	if err != nil {
		return nil, nil, err
	}

	if match != nil {
		metrics.MatchesCreated.Inc()
		s.appCtx.Logger.Info("mutual match created",
			"match_id", match.ID, "user_a", match.UserAID, "user_b", match.UserBID)

		// update cache
		for _, pid := range []string{match.UserAID, match.UserBID} {
			key := s.appCtx.RedisCache.KeyForMatchCount(pid)
			_, _ = s.appCtx.RedisCache.Incr(ctx, key)
			_ = s.appCtx.RedisCache.Client.Expire(ctx, key, time.Hour).Err() // refresh TTL
		}
	}

	return swipe, match, nil
}

// ListMatches returns the profile's active matches, newest first, with
// cursor-based pagination.
func (s *Service) ListMatches(ctx context.Context, profileID string, paginationToken *string, limit int) ([]db.Match, *string, error) {
	s.appCtx.Logger.Debug("ListMatches called", "profile", profileID)

	matches, nextToken, err := s.matchRepo.ListForProfile(ctx, profileID, paginationToken, limit)
	if err != nil {
		s.appCtx.Logger.Error("ListForProfile failed", "err", err)
		return nil, nil, svcErr.Map(err)
	}
	return matches, nextToken, nil
}

// CountMatches returns how many active matches the profile has.
// Cache-first strategy:
//  1. Attempts to read from Redis (matches:count:profileID).
//  2. On cache miss, falls back to the DB count.
//  3. On DB fetch, updates Redis with a 1h TTL.
func (s *Service) CountMatches(ctx context.Context, profileID string) (int64, error) {
	s.appCtx.Logger.Debug("CountMatches called", "profile", profileID)

	if n, ok, err := s.appCtx.RedisCache.GetMatchCount(ctx, profileID); err == nil && ok {
		return n, nil
	}

	count, err := s.matchRepo.CountForProfile(ctx, profileID)
	if err != nil {
		return 0, svcErr.Map(err)
	}

	_ = s.appCtx.RedisCache.Set(ctx,
		s.appCtx.RedisCache.KeyForMatchCount(profileID),
		strconv.FormatInt(count, 10), time.Hour)

	return count, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/model"
	"github.com/onemployment/api/internal/repository"
)

// FollowService manages the follow graph. Each relation is one
// (follower, target) edge, so both directions change in a single write.
type FollowService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewFollowService(store repository.Store, logger *slog.Logger) *FollowService {
	return &FollowService{store: store, logger: logger}
}

// Follow is idempotent. Following yourself is rejected.
func (s *FollowService) Follow(ctx context.Context, followerID, username string) error {
	target, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("service/follow: looking up %q: %w", username, err)
	}
	if target.ID == followerID {
		return apperror.ValidationFailed("username", "you cannot follow yourself")
	}

	if err := s.store.Follow(ctx, followerID, target.ID); err != nil {
		return fmt.Errorf("service/follow: %w", err)
	}
	s.logger.Info("user followed",
		slog.String("followerID", followerID),
		slog.String("targetID", target.ID),
	)
	return nil
}

// Unfollow is idempotent; a missing edge is not an error.
func (s *FollowService) Unfollow(ctx context.Context, followerID, username string) error {
	target, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("service/follow: looking up %q: %w", username, err)
	}
	if err := s.store.Unfollow(ctx, followerID, target.ID); err != nil {
		return fmt.Errorf("service/follow: %w", err)
	}
	return nil
}

func (s *FollowService) Followers(ctx context.Context, username string) ([]model.UserSummary, error) {
	return s.list(ctx, username, s.store.FollowerIDs)
}

func (s *FollowService) Following(ctx context.Context, username string) ([]model.UserSummary, error) {
	return s.list(ctx, username, s.store.FollowingIDs)
}

func (s *FollowService) list(
	ctx context.Context,
	username string,
	edges func(context.Context, string) ([]string, error),
) ([]model.UserSummary, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/follow: looking up %q: %w", username, err)
	}
	ids, err := edges(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/follow: %w", err)
	}
	byID, err := summaries(ctx, s.store, ids)
	if err != nil {
		return nil, fmt.Errorf("service/follow: %w", err)
	}

	// Keep edge order; drop ids whose user no longer exists.
	out := make([]model.UserSummary, 0, len(ids))
	for _, id := range ids {
		if sum, ok := byID[id]; ok {
			out = append(out, *sum)
		}
	}
	return out, nil
}

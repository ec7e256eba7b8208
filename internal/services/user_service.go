package services

import (
	"context"
	"fmt"

	"github.com/coup-study/coup-api/internal/authz"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/repository"
)

// UserService serves profile reads and self-service edits.
type UserService struct {
	userRepo repository.UserRepository
	guard    *Guard
}

func NewUserService(userRepo repository.UserRepository, guard *Guard) *UserService {
	return &UserService{
		userRepo: userRepo,
		guard:    guard,
	}
}

// GetProfile returns another user's profile. Deleted accounts are reported
// as missing.
func (s *UserService) GetProfile(ctx context.Context, actor *models.User, userID uint64) (*models.User, error) {
	if _, err := s.guard.Check(ctx, actor, authz.CapView, authz.Resource{Kind: authz.KindUser, OwnerID: userID}); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user.Status == models.UserStatusDeleted {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfileInput holds the editable profile fields.
type UpdateProfileInput struct {
	DisplayName string
}

// UpdateProfile edits the caller's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, userID uint64, input UpdateProfileInput) (*models.User, error) {
	if _, err := s.guard.Check(ctx, actor, authz.CapEditProfile, authz.Resource{Kind: authz.KindUser, OwnerID: userID}); err != nil {
		return nil, err
	}

	displayName, err := cleanDisplayName(input.DisplayName)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateProfile(ctx, userID, displayName); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	return user, nil
}

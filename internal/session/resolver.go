package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/coup-study/coup-api/internal/constants"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/repository"
)

// Resolver turns a raw credential into an active identity.
type Resolver struct {
	users  repository.UserRepository
	tokens *TokenIssuer
	log    *zap.Logger

	// tracks detached last-seen writes so shutdown can wait for them
	pending sync.WaitGroup
}

func NewResolver(users repository.UserRepository, tokens *TokenIssuer, log *zap.Logger) *Resolver {
	return &Resolver{users: users, tokens: tokens, log: log}
}

// Resolve verifies raw and loads its subject. It fails with an
// Unauthenticated error for a missing, malformed or expired credential or a
// vanished subject, and with AccountInactive for SUSPENDED and DELETED
// accounts. It performs no writes.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*models.User, error) {
	userID, err := r.tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, unauthenticated(err)
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.UnauthenticatedError("Account no longer exists")
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	if !user.IsActive() {
		return nil, apierrors.AccountInactiveError(string(user.Status))
	}
	return user, nil
}

func unauthenticated(err error) error {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return apierrors.UnauthenticatedError("Authentication required")
	case errors.Is(err, ErrTokenExpired):
		return apierrors.UnauthenticatedError("Session expired")
	default:
		return apierrors.UnauthenticatedError("Invalid session")
	}
}

// TouchLastSeen records activity without blocking the request. The write
// runs detached from ctx's cancellation and failures are only logged.
func (r *Resolver) TouchLastSeen(ctx context.Context, userID uint64) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.LastSeenTimeout)

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		defer cancel()

		if err := r.users.TouchLastSeen(detached, userID, time.Now().UTC()); err != nil {
			r.log.Warn("failed to update last seen", zap.Uint64("user_id", userID), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight last-seen writes finish.
func (r *Resolver) Wait() {
	r.pending.Wait()
}

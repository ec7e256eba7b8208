package middleware

import (
	"context"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/coup-study/coup-api/internal/constants"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
)

// IdentityResolver turns a session credential into an active user.
type IdentityResolver interface {
	Resolve(ctx context.Context, raw string) (*models.User, error)
	TouchLastSeen(ctx context.Context, userID uint64)
}

// InternalKeyChecker validates the shared key presented by internal callers.
type InternalKeyChecker interface {
	CheckInternal(key string) error
}

// RequireAuth resolves the caller on every request. Suspended and deleted
// accounts are refused here, before any handler runs.
func RequireAuth(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolver.Resolve(c.Request.Context(), credentialFrom(c))
		if err != nil {
			apierrors.Respond(c, err)
			c.Abort()
			return
		}

		resolver.TouchLastSeen(c.Request.Context(), user.ID)

		c.Set(constants.ContextKeyUser, user)
		c.Set(constants.ContextKeyUserID, user.ID)
		c.Next()
	}
}

// RequireInternalKey guards routes meant for trusted backend services.
func RequireInternalKey(checker InternalKeyChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := checker.CheckInternal(c.GetHeader(constants.HeaderInternalKey)); err != nil {
			apierrors.Respond(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// credentialFrom prefers an Authorization bearer token over the session cookie.
func credentialFrom(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return ""
	}
	if token, ok := sessions.Default(c).Get(constants.SessionTokenKey).(string); ok {
		return token
	}
	return ""
}

// CurrentUser returns the user resolved by RequireAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	default:
		return 0, false
	}
}

package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coup-study/coup-api/internal/database"
	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/repository"
)

type resolverTestEnv struct {
	resolver *Resolver
	tokens   *TokenIssuer
	users    repository.UserRepository
}

func setupResolverTestEnv(t *testing.T) *resolverTestEnv {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	users := repository.NewUserRepository(db)
	tokens := NewTokenIssuer("test-secret", "coup-test", time.Hour)
	return &resolverTestEnv{
		resolver: NewResolver(users, tokens, zap.NewNop()),
		tokens:   tokens,
		users:    users,
	}
}

func (env *resolverTestEnv) createUser(t *testing.T, email string, status models.UserStatus) *models.User {
	t.Helper()
	u := &models.User{Email: email, DisplayName: "tester", PasswordHash: "x", Role: models.UserRoleUser, Status: status}
	require.NoError(t, env.users.Create(context.Background(), u))
	return u
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	e, ok := apierrors.As(err)
	require.True(t, ok, "expected domain error, got %v", err)
	require.Equal(t, code, e.Code)
}

func TestResolve_ActiveUser(t *testing.T) {
	env := setupResolverTestEnv(t)
	u := env.createUser(t, "active@example.com", models.UserStatusActive)

	token, _, err := env.tokens.Issue(u.ID)
	require.NoError(t, err)

	got, err := env.resolver.Resolve(context.Background(), "  "+token+" ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestResolve_InactiveAccounts(t *testing.T) {
	env := setupResolverTestEnv(t)

	for _, status := range []models.UserStatus{models.UserStatusSuspended, models.UserStatusDeleted} {
		u := env.createUser(t, string(status)+"@example.com", status)
		token, _, err := env.tokens.Issue(u.ID)
		require.NoError(t, err)

		_, err = env.resolver.Resolve(context.Background(), token)
		requireCode(t, err, apierrors.ErrCodeAccountInactive)

		e, _ := apierrors.As(err)
		assert.Equal(t, string(status), e.Detail("status"))
	}
}

func TestResolve_Unauthenticated(t *testing.T) {
	env := setupResolverTestEnv(t)
	u := env.createUser(t, "u@example.com", models.UserStatusActive)

	valid, _, err := env.tokens.Issue(u.ID)
	require.NoError(t, err)

	otherKey, _, err := NewTokenIssuer("other-secret", "coup-test", time.Hour).Issue(u.ID)
	require.NoError(t, err)

	otherIssuer, _, err := NewTokenIssuer("test-secret", "someone-else", time.Hour).Issue(u.ID)
	require.NoError(t, err)

	ghost, _, err := env.tokens.Issue(u.ID + 999)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	tests := map[string]string{
		"missing":      "",
		"malformed":    "not-a-token",
		"tampered":     tampered,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"no subject":   ghost,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := env.resolver.Resolve(context.Background(), raw)
			requireCode(t, err, apierrors.ErrCodeUnauthorized)
		})
	}
}

func TestResolve_ExpiredToken(t *testing.T) {
	env := setupResolverTestEnv(t)
	u := env.createUser(t, "late@example.com", models.UserStatusActive)

	env.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := env.tokens.Issue(u.ID)
	require.NoError(t, err)
	env.tokens.now = time.Now

	_, err = env.resolver.Resolve(context.Background(), token)
	requireCode(t, err, apierrors.ErrCodeUnauthorized)
	e, _ := apierrors.As(err)
	assert.Equal(t, "Session expired", e.Message)
}

func TestTouchLastSeen_SurvivesCanceledRequest(t *testing.T) {
	env := setupResolverTestEnv(t)
	u := env.createUser(t, "seen@example.com", models.UserStatusActive)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env.resolver.TouchLastSeen(ctx, u.ID)
	env.resolver.Wait()

	reloaded, err := env.users.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastSeenAt)
}

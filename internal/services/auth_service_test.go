package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/coup-study/coup-api/internal/errors"
	"github.com/coup-study/coup-api/internal/models"
	"github.com/coup-study/coup-api/internal/session"
)

func TestAuth_SignupAndLogin(t *testing.T) {
	env := setupServiceTestEnv(t)
	ctx := context.Background()
	tokens := session.NewTokenIssuer("test-secret", "coup-api", time.Hour)
	svc := NewAuthService(env.users, tokens)

	user, err := svc.Signup(ctx, SignupInput{Email: "  Alice@Example.com ", Password: "password123", DisplayName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.UserRoleUser, user.Role)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.NotEqual(t, "password123", user.PasswordHash)

	_, err = svc.Signup(ctx, SignupInput{Email: "alice@example.com", Password: "password123", DisplayName: "Alice"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Signup(ctx, SignupInput{Email: "bob@example.com", Password: "short", DisplayName: "Bob"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = svc.Signup(ctx, SignupInput{Email: "not-an-email", Password: "password123", DisplayName: "Bob"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	result, err := svc.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	subject, err := tokens.Parse(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, subject)

	_, err = svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuth_LoginRefusesInactiveAccounts(t *testing.T) {
	env := setupServiceTestEnv(t)
	ctx := context.Background()
	svc := NewAuthService(env.users, session.NewTokenIssuer("test-secret", "coup-api", time.Hour))

	user, err := svc.Signup(ctx, SignupInput{Email: "carol@example.com", Password: "password123", DisplayName: "Carol"})
	require.NoError(t, err)
	require.NoError(t, env.users.UpdateStatus(ctx, user.ID, models.UserStatusDeleted))

	_, err = svc.Login(ctx, LoginInput{Email: "carol@example.com", Password: "password123"})
	e, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindAccountInactive, e.Kind)
	assert.Equal(t, "Account has been deleted", e.Message)
}

func TestUsers_ProfileEditIsSelfOnly(t *testing.T) {
	env := setupServiceTestEnv(t)
	ctx := context.Background()
	svc := NewUserService(env.users, env.guard)

	alice := env.createUser(t, "alice@example.com", models.UserRoleUser)
	admin := env.createUser(t, "admin@example.com", models.UserRoleSystemAdmin)

	updated, err := svc.UpdateProfile(ctx, alice, alice.ID, UpdateProfileInput{DisplayName: " Alice <b>B</b> "})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.DisplayName)

	_, err = svc.UpdateProfile(ctx, admin, alice.ID, UpdateProfileInput{DisplayName: "Hacked"})
	e, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindNotAuthorized, e.Kind)

	profile, err := svc.GetProfile(ctx, admin, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", profile.DisplayName)

	require.NoError(t, env.users.UpdateStatus(ctx, alice.ID, models.UserStatusDeleted))
	_, err = svc.GetProfile(ctx, admin, alice.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStudies_PrivateVisibilityAndInviteCode(t *testing.T) {
	env := setupServiceTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", models.UserRoleUser)
	stranger := env.createUser(t, "stranger@example.com", models.UserRoleUser)
	platformAdmin := env.createUser(t, "admin@example.com", models.UserRoleAdmin)

	public := env.createStudy(t, owner, CreateStudyInput{Name: "Public", Category: "go"})
	private := env.createStudy(t, owner, CreateStudyInput{Name: "Private", Visibility: models.VisibilityPrivate})
	assert.Nil(t, public.InviteCode)
	require.NotNil(t, private.InviteCode)

	_, err := env.studySvc.GetStudy(ctx, stranger, private.ID)
	assert.ErrorIs(t, err, ErrStudyNotFound)
	_, err = env.studySvc.GetStudy(ctx, stranger, public.ID)
	assert.NoError(t, err)
	_, err = env.studySvc.GetStudy(ctx, platformAdmin, private.ID)
	assert.NoError(t, err)

	studies, total, err := env.studySvc.ListPublicStudies(ctx, "", firstPage())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, studies, 1)
	assert.Equal(t, public.ID, studies[0].ID)

	_, total, err = env.studySvc.ListPublicStudies(ctx, "rust", firstPage())
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = env.studySvc.RegenerateInviteCode(ctx, stranger, private.ID)
	assert.Error(t, err)

	oldCode := *private.InviteCode
	code, err := env.studySvc.RegenerateInviteCode(ctx, owner, private.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldCode, code)

	_, err = env.membershipSvc.JoinByInviteCode(ctx, stranger, oldCode, "")
	assert.ErrorIs(t, err, ErrInvalidInviteCode)
	_, err = env.membershipSvc.JoinByInviteCode(ctx, stranger, code, "")
	assert.NoError(t, err)

	mine, err := env.studySvc.ListMyStudies(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestStudies_Update(t *testing.T) {
	env := setupServiceTestEnv(t)
	ctx := context.Background()

	owner := env.createUser(t, "owner@example.com", models.UserRoleUser)
	member := env.createUser(t, "member@example.com", models.UserRoleUser)
	study := env.createStudy(t, owner, CreateStudyInput{Name: "Before"})
	env.addActiveMember(t, study.ID, member, models.MemberRoleMember)

	name := "After"
	_, err := env.studySvc.UpdateStudy(ctx, member, study.ID, UpdateStudyInput{Name: &name})
	assert.Error(t, err)

	visibility := models.VisibilityPrivate
	updated, err := env.studySvc.UpdateStudy(ctx, owner, study.ID, UpdateStudyInput{Name: &name, Visibility: &visibility})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	assert.NotNil(t, updated.InviteCode, "going private issues an invite code")

	negative := -1
	_, err = env.studySvc.UpdateStudy(ctx, owner, study.ID, UpdateStudyInput{MaxMembers: &negative})
	e, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindInvalidInput, e.Kind)

	_, err = env.studySvc.UpdateStudy(ctx, owner, 9999, UpdateStudyInput{})
	assert.ErrorIs(t, err, ErrStudyNotFound)
}

package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/auth"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Register_ThenDuplicate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	sess, err := e.auth.Register(ctx, RegisterInput{
		Email: "Alice@Example.com", Username: "alice", Password: testPassword,
	})
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, models.RoleUser, sess.User.Role)
	assert.True(t, sess.User.IsActive)
	assert.NotEqual(t, testPassword, sess.User.PasswordDigest)

	claims, err := e.tokens.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)

	_, err = e.auth.Register(ctx, RegisterInput{Email: "alice@example.com", Username: "alice2", Password: testPassword})
	requireKind(t, err, common.ErrorConflict, "User with this email or username already exists")

	_, err = e.auth.Register(ctx, RegisterInput{Email: "other@example.com", Username: "alice", Password: testPassword})
	requireKind(t, err, common.ErrorConflict, "User with this email or username already exists")

	all, err := e.m.Users(nil).List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAuthService_Register_PasswordTooLong(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.auth.Register(ctx, RegisterInput{
		Email: "long@example.com", Username: "long", Password: strings.Repeat("p", 80),
	})
	requireKind(t, err, common.ErrorValidation, "")

	all, err := e.m.Users(nil).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAuthService_Login(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.seedUser(t, "bob", models.RoleUser)

	sess, err := e.auth.Login(ctx, "BOB@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, p.UserID, sess.User.ID)
	assert.False(t, sess.ExpiresAt.IsZero())
	require.Len(t, e.db.eventsFor(models.ActionUserLogin), 1)
}

func TestAuthService_Login_WrongPasswordHasNoSideEffects(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedUser(t, "bob", models.RoleUser)

	sess, err := e.auth.Login(ctx, "bob@example.com", "wrong-password")
	requireKind(t, err, common.ErrorUnauthorized, "Invalid credentials")
	assert.Nil(t, sess)
	assert.Empty(t, e.db.eventsFor(models.ActionUserLogin))

	_, err = e.auth.Login(ctx, "nobody@example.com", testPassword)
	requireKind(t, err, common.ErrorUnauthorized, "Invalid credentials")
}

func TestAuthService_Login_Inactive(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.seedUser(t, "bob", models.RoleUser)

	u, err := e.m.Users(nil).GetByID(ctx, p.UserID)
	require.NoError(t, err)
	u.IsActive = false
	_, err = e.m.Users(nil).Update(ctx, u)
	require.NoError(t, err)

	_, err = e.auth.Login(ctx, "bob@example.com", testPassword)
	requireKind(t, err, common.ErrorUnauthorized, "Invalid credentials")
}

func TestAuthService_Login_AnalyticsFailureIgnored(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "bob", models.RoleUser)
	e.db.analyticsErr = errors.New("analytics down")

	_, err := e.auth.Login(context.Background(), "bob@example.com", testPassword)
	require.NoError(t, err)
}

func TestAuthService_Authenticate_TokenLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "root", models.RoleAdmin)
	e.seedUser(t, "carol", models.RoleUser)

	sess, err := e.auth.Login(ctx, "carol@example.com", testPassword)
	require.NoError(t, err)

	u, err := e.auth.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, u.ID)

	_, err = e.users.ToggleStatus(ctx, admin, sess.User.ID)
	require.NoError(t, err)

	_, err = e.auth.Authenticate(ctx, sess.Token)
	requireKind(t, err, common.ErrorUnauthorized, "User not found or inactive")

	_, err = e.users.ToggleStatus(ctx, admin, sess.User.ID)
	require.NoError(t, err)
	_, err = e.auth.Authenticate(ctx, sess.Token)
	require.NoError(t, err)

	require.NoError(t, e.users.Delete(ctx, admin, sess.User.ID))
	_, err = e.auth.Authenticate(ctx, sess.Token)
	requireKind(t, err, common.ErrorUnauthorized, "User not found or inactive")
}

func TestAuthService_Authenticate_BadToken(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.auth.Authenticate(context.Background(), "not-a-token")
	requireKind(t, err, common.ErrorForbidden, "Invalid or expired token")

	other := auth.NewJWTManager([]byte("another-secret"), time.Hour)
	tok, _, err := other.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = e.auth.Authenticate(context.Background(), tok)
	requireKind(t, err, common.ErrorForbidden, "Invalid or expired token")
}

func TestAuthService_Authenticate_ServesFromCache(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.seedUser(t, "dave", models.RoleUser)

	tok, _, err := e.tokens.Issue(&models.User{ID: p.UserID, Email: p.Email, Role: p.Role})
	require.NoError(t, err)

	_, err = e.auth.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, 1, e.cache.Len())

	// removed behind the service's back: the cached entry still answers
	require.NoError(t, e.m.Users(nil).Delete(ctx, p.UserID))
	_, err = e.auth.Authenticate(ctx, tok)
	require.NoError(t, err)

	e.cache.Remove(p.UserID)
	_, err = e.auth.Authenticate(ctx, tok)
	requireKind(t, err, common.ErrorUnauthorized, "")
}

func TestAuthService_ProfileAndUpdate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	p := e.seedUser(t, "erin", models.RoleUser)

	e.upload(t, p, "a.txt", []byte("0123456789"), false)
	e.upload(t, p, "b.txt", []byte("abc"), false)
	_, err := e.folders.Create(ctx, p, CreateFolderInput{Name: "Docs"})
	require.NoError(t, err)

	prof, err := e.auth.Profile(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, p.UserID, prof.User.ID)
	assert.Equal(t, int64(2), prof.Stats.FileCount)
	assert.Equal(t, int64(1), prof.Stats.FolderCount)
	assert.Equal(t, int64(13), prof.Stats.TotalSize)

	first, avatar := " Erin ", "https://example.com/a.png"
	u, err := e.auth.UpdateProfile(ctx, p, ProfileUpdate{FirstName: &first, Avatar: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "Erin", u.FirstName)
	assert.Equal(t, avatar, u.Avatar)
	assert.Equal(t, "erin", u.Username)

	_, err = e.auth.Profile(ctx, nil)
	requireKind(t, err, common.ErrorUnauthorized, "User not authenticated")
}

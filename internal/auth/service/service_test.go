package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	authdomain "github.com/smallbiznis/billingportal/internal/auth/domain"
	"github.com/smallbiznis/billingportal/internal/auth/repository"
	"github.com/smallbiznis/billingportal/internal/clock"
	"github.com/smallbiznis/billingportal/internal/config"
	"github.com/smallbiznis/billingportal/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, c clock.Clock) authdomain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}))

	repo, sessionRepo := repository.New(dbConn)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		Log:         zap.NewNop(),
		Cfg:         config.Config{SessionTTL: time.Hour},
		Repo:        repo,
		SessionRepo: sessionRepo,
		GenID:       node,
		Clock:       c,
	})
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t, nil)

	user, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)
	require.NotNil(t, user)

	_, err = svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestCreateUserAssignsExternalUUID(t *testing.T) {
	svc := newTestService(t, nil)

	user, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "Bob@Example.com",
		Password: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "bob@example.com", user.Email)
	assert.Equal(t, "bob", user.DisplayName)
	_, err = uuid.Parse(user.ExternalID)
	assert.NoError(t, err)
}

func TestCreateUserRejectsShortPasswordAndDuplicates(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "c@example.com", Password: "12345"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidPassword)

	_, err = svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "not-an-email", Password: "123456"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidEmail)

	_, err = svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "c@example.com", Password: "123456"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "C@example.com", Password: "123456"})
	assert.ErrorIs(t, err, authdomain.ErrUserExists)
}

func TestIdentityFollowsSessionLifecycle(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "dana@example.com", Password: "hunter22"})
	require.NoError(t, err)

	login, err := svc.Login(ctx, authdomain.LoginRequest{Email: "dana@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, login.Identity.ID)

	identity, err := svc.Identity(ctx, login.RawToken)
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", identity.Email)

	fake.Advance(2 * time.Hour)
	_, err = svc.Identity(ctx, login.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionExpired)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "eve@example.com", Password: "hunter22"})
	require.NoError(t, err)
	login, err := svc.Login(ctx, authdomain.LoginRequest{Email: "eve@example.com", Password: "hunter22"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, login.RawToken))

	_, err = svc.Authenticate(ctx, login.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionRevoked)
	assert.ErrorIs(t, svc.Logout(ctx, "unknown-token"), authdomain.ErrInvalidSession)
}

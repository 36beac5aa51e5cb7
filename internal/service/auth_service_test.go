package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*testStack, AuthService, *model.User) {
	t.Helper()
	s := newTestStack(t)
	u := s.seedUser(t, "cashier@example.com", model.RoleCashier)
	svc := NewAuthService(s.users, jwt.NewManager("test-secret", "test", time.Hour), s.events)
	return s, svc, u
}

func TestLoginIssuesTokenAndAuthenticates(t *testing.T) {
	_, svc, u := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, &LoginRequest{Email: "Cashier@Example.com", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, u.ID, res.User.ID)

	claims, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, model.RoleCashier, claims.RoleCode)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	_, svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, &LoginRequest{Email: "cashier@example.com", Password: "wrong"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))

	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestSecondLoginReplacesSession(t *testing.T) {
	_, svc, _ := newAuthFixture(t)
	ctx := context.Background()

	first, err := svc.Login(ctx, &LoginRequest{Email: "cashier@example.com", Password: "secret123"})
	require.NoError(t, err)
	_, err = svc.Login(ctx, &LoginRequest{Email: "cashier@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, first.Token)
	assert.True(t, errors.Is(err, ErrSessionReplaced))
}

func TestInactiveUserCannotAuthenticate(t *testing.T) {
	s, svc, u := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, &LoginRequest{Email: "cashier@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&model.User{}).Where("id = ?", u.ID).Update("is_active", false).Error)

	_, err = svc.Authenticate(ctx, res.Token)
	assert.True(t, errors.Is(err, ErrUserInactive))
}

func TestResetPasswordInvalidatesSessions(t *testing.T) {
	_, svc, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, &LoginRequest{Email: "cashier@example.com", Password: "secret123"})
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, &ResetPasswordRequest{Email: "cashier@example.com", OldPassword: "nope", NewPassword: "newpass1"})
	assert.True(t, errors.Is(err, ErrWrongPassword))

	require.NoError(t, svc.ResetPassword(ctx, &ResetPasswordRequest{Email: "cashier@example.com", OldPassword: "secret123", NewPassword: "newpass1"}))
	_, err = svc.Authenticate(ctx, res.Token)
	assert.Error(t, err)

	_, err = svc.Login(ctx, &LoginRequest{Email: "cashier@example.com", Password: "newpass1"})
	assert.NoError(t, err)
}

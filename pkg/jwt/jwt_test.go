package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("secret", "pos", time.Hour)
	id := uuid.New()

	token, err := m.GenerateToken(id, "cashier@example.com", "Cashier", "CASHIER", []string{"order:create"}, "v1")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "CASHIER", claims.RoleCode)
	assert.Equal(t, []string{"order:create"}, claims.Privileges)
	assert.Equal(t, "v1", claims.TokenVersion)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, err := NewManager("one", "pos", time.Hour).GenerateToken(uuid.New(), "a@b.c", "A", "ADMIN", nil, "v")
	require.NoError(t, err)

	_, err = NewManager("two", "pos", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager("secret", "pos", -time.Hour)
	m.expiration = -time.Minute
	token, err := m.GenerateToken(uuid.New(), "a@b.c", "A", "ADMIN", nil, "v")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

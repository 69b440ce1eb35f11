package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

func TestManager_GenerateAndParse(t *testing.T) {
	m := NewManager("test-secret", 2*time.Hour, 7*24*time.Hour)

	pair, err := m.GenerateToken(42, "vendor@example.com", "老王租赁", "vendor")
	require.NoError(t, err)
	assert.Equal(t, int64(7200), pair.ExpiresIn)

	claims, err := m.ParseToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "vendor", claims.Role)
	assert.Equal(t, "vendor@example.com", claims.Email)
	assert.False(t, claims.Refresh)
	assert.NotEmpty(t, claims.ID)
}

func TestManager_ParseToken_Expired(t *testing.T) {
	m := NewManager("test-secret", time.Hour, 2*time.Hour)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	pair, err := m.GenerateToken(1, "a@b.com", "ab", "customer")
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(90 * time.Minute) }
	_, err = m.ParseToken(pair.AccessToken)
	assert.True(t, errors.Is(err, apperrors.ErrTokenExpired))

	// Refresh Token仍然有效
	_, err = m.ParseToken(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestManager_ParseToken_WrongSecret(t *testing.T) {
	pair, err := NewManager("secret-a", time.Hour, time.Hour).GenerateToken(1, "a@b.com", "ab", "customer")
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour, time.Hour).ParseToken(pair.AccessToken)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestManager_RefreshAccessToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour, 24*time.Hour)
	pair, err := m.GenerateToken(7, "c@d.com", "cd", "customer")
	require.NoError(t, err)

	access, err := m.RefreshAccessToken(pair.RefreshToken)
	require.NoError(t, err)

	claims, err := m.ParseToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "customer", claims.Role)

	// Access Token不能用来刷新
	_, err = m.RefreshAccessToken(pair.AccessToken)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestManager_RemainingTTL(t *testing.T) {
	m := NewManager("test-secret", time.Hour, time.Hour)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	pair, err := m.GenerateToken(1, "a@b.com", "ab", "admin")
	require.NoError(t, err)
	claims, err := m.ParseToken(pair.AccessToken)
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(20 * time.Minute) }
	assert.Equal(t, 40*time.Minute, m.RemainingTTL(claims))

	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	assert.Equal(t, time.Duration(0), m.RemainingTTL(claims))
}

package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xiebiao/rentalhub/internal/domain/user"
	"github.com/xiebiao/rentalhub/internal/infrastructure/persistence/memory"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
	"github.com/xiebiao/rentalhub/pkg/jwt"
)

type fakeSessions struct {
	saved     map[uint]map[string]interface{}
	blacklist map[string]time.Duration
	saveErr   error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		saved:     map[uint]map[string]interface{}{},
		blacklist: map[string]time.Duration{},
	}
}

func (f *fakeSessions) SaveSession(_ context.Context, userID uint, data map[string]interface{}, _ time.Duration) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[userID] = data
	return nil
}

func (f *fakeSessions) DeleteSession(_ context.Context, userID uint) error {
	delete(f.saved, userID)
	return nil
}

func (f *fakeSessions) AddToBlacklist(_ context.Context, token string, ttl time.Duration) error {
	f.blacklist[token] = ttl
	return nil
}

func newService() user.Service {
	return user.NewServiceWithCost(memory.NewUserRepository(memory.NewStore()), bcrypt.MinCost)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	sessions := newFakeSessions()
	jwtManager := jwt.NewManager("secret", 2*time.Hour, 7*24*time.Hour)

	reg, err := NewRegisterUseCase(svc).Execute(ctx, RegisterRequest{
		Email: "vendor@example.com", Password: "abc12345", Nickname: "老王", Role: "vendor",
	})
	require.NoError(t, err)
	assert.Equal(t, "vendor", reg.Role)

	login := NewLoginUseCase(svc, jwtManager, sessions, zap.NewNop())
	resp, err := login.Execute(ctx, LoginRequest{Email: "vendor@example.com", Password: "abc12345", ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, reg.ID, resp.User.ID)
	assert.Contains(t, sessions.saved, reg.ID)

	claims, err := jwtManager.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "vendor", claims.Role)

	_, err = login.Execute(ctx, LoginRequest{Email: "vendor@example.com", Password: "wrong123"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidPassword)
}

func TestRegister_RejectsAdminRole(t *testing.T) {
	_, err := NewRegisterUseCase(newService()).Execute(context.Background(), RegisterRequest{
		Email: "root@example.com", Password: "abc12345", Nickname: "root", Role: "admin",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidParams))
}

func TestLogin_SessionFailureDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, err := NewRegisterUseCase(svc).Execute(ctx, RegisterRequest{
		Email: "c@example.com", Password: "abc12345", Nickname: "小李", Role: "customer",
	})
	require.NoError(t, err)

	sessions := newFakeSessions()
	sessions.saveErr = errors.New("redis down")
	login := NewLoginUseCase(svc, jwt.NewManager("secret", time.Hour, time.Hour), sessions, zap.NewNop())

	resp, err := login.Execute(ctx, LoginRequest{Email: "c@example.com", Password: "abc12345"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLogout(t *testing.T) {
	sessions := newFakeSessions()
	sessions.saved[1] = map[string]interface{}{"user_id": 1}
	uc := NewLogoutUseCase(sessions)

	require.NoError(t, uc.Execute(context.Background(), 1, "token-a", 30*time.Minute))
	assert.NotContains(t, sessions.saved, uint(1))
	assert.Equal(t, 30*time.Minute, sessions.blacklist["token-a"])

	// 已过期的Token无需加入黑名单
	require.NoError(t, uc.Execute(context.Background(), 1, "token-b", 0))
	assert.NotContains(t, sessions.blacklist, "token-b")
}

package memory

import (
	"context"
	"sync"
	"time"
)

// SessionStore 会话与Token黑名单的内存实现(与redis.SessionStore方法一致)
// 过期按读取时惰性判断,不起后台清理协程
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[uint]map[string]interface{}
	blacklist map[string]time.Time
	now       func() time.Time
}

// NewSessionStore 创建内存会话存储
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:  make(map[uint]map[string]interface{}),
		blacklist: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SaveSession 保存会话(内存实现忽略ttl)
func (s *SessionStore) SaveSession(_ context.Context, userID uint, sessionData map[string]interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make(map[string]interface{}, len(sessionData))
	for k, v := range sessionData {
		data[k] = v
	}
	s.sessions[userID] = data
	return nil
}

// HasSession 是否存在会话
func (s *SessionStore) HasSession(userID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[userID]
	return ok
}

// DeleteSession 删除会话
func (s *SessionStore) DeleteSession(_ context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// AddToBlacklist 加入黑名单,ttl后自动失效
func (s *SessionStore) AddToBlacklist(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[token] = s.now().Add(ttl)
	return nil
}

// IsInBlacklist 检查黑名单
func (s *SessionStore) IsInBlacklist(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expireAt, ok := s.blacklist[token]
	return ok && s.now().Before(expireAt), nil
}

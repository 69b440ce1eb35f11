package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// SweepLock 到期扫描的跨实例互斥锁
// 设计说明：
// 1. 多个API实例都会启动扫描任务，同一周期只允许一个实例执行
// 2. SET key token NX PX ttl 获取锁，token用于防止误删别人的锁
// 3. 释放使用Lua脚本：只有token一致才DEL（检查+删除必须原子）
type SweepLock struct {
	client *redis.Client
	key    string
}

// NewSweepLock 创建扫描锁
func NewSweepLock(client *redis.Client) *SweepLock {
	return &SweepLock{client: client, key: "rental:lock:expiry-sweep"}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock 尝试获取锁
// 返回释放函数;未抢到锁时ok=false
func (l *SweepLock) TryLock(ctx context.Context, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, apperrors.WithCode(apperrors.ErrCodeRedisError, err, "获取扫描锁失败")
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return apperrors.WithCode(apperrors.ErrCodeRedisError, err, "释放扫描锁失败")
		}
		return nil
	}
	return release, true, nil
}

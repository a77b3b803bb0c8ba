package service

import (
	"context"
	"fmt"
	"time"

	"github.com/beanstamp/internal/cache"
	"github.com/beanstamp/internal/logger"
)

// AccountLocker 积分账户单写锁，获取失败返回 ErrAccountLocked
type AccountLocker interface {
	Acquire(ctx context.Context, customerID, merchantID string) (release func(), err error)
}

// NewAccountLocker 按配置创建账户锁，未启用单写或 Redis 不可用时不加锁
func NewAccountLocker(singleWriter bool, ttl time.Duration) AccountLocker {
	if !singleWriter || !cache.Enabled() {
		return noopAccountLocker{}
	}
	return &RedisAccountLocker{ttl: ttl}
}

type noopAccountLocker struct{}

func (noopAccountLocker) Acquire(context.Context, string, string) (func(), error) {
	return func() {}, nil
}

// RedisAccountLocker 基于 Redis SETNX 的账户单写锁
type RedisAccountLocker struct {
	ttl time.Duration
}

// Acquire 获取账户锁
func (l *RedisAccountLocker) Acquire(ctx context.Context, customerID, merchantID string) (func(), error) {
	key := cache.AccountLockKey(customerID, merchantID)
	owner, ok, err := cache.TryLock(ctx, key, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire account lock: %w", err)
	}
	if !ok {
		return nil, ErrAccountLocked
	}
	return func() {
		if err := cache.Unlock(context.Background(), key, owner); err != nil {
			logger.Warnw("account_lock_release_failed", "lock_key", key, "error", err)
		}
	}, nil
}

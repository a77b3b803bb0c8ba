package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 仅当持有者令牌一致时释放锁
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// AccountLockKey 积分账户单写锁键
func AccountLockKey(customerID, merchantID string) string {
	return fmt.Sprintf("lock:account:%s:%s", merchantID, customerID)
}

// ChurnDispatchLockKey 商户召回发送锁键
func ChurnDispatchLockKey(merchantID string) string {
	return fmt.Sprintf("lock:churn_dispatch:%s", merchantID)
}

// TryLock 尝试获取锁，返回持有者令牌；锁已被占用时 ok 为 false
func TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if !Enabled() {
		return "", true, nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	owner := uuid.NewString()
	ok, err := redisClient.SetNX(ctx, BuildKey(key), owner, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return owner, true, nil
}

// Unlock 释放由 owner 持有的锁
func Unlock(ctx context.Context, key, owner string) error {
	if !Enabled() || owner == "" {
		return nil
	}
	return releaseLockScript.Run(ctx, redisClient, []string{BuildKey(key)}, owner).Err()
}

package lock

import (
	"context"
	"time"

	"eshop/internal/pkg/redis"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const unlockScriptName = "lock_unlock"

// 只删除自己持有的 key
var unlockScript = `
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`

// RedisLocker 基于 SET NX PX 的租约锁。
// 多把锁逐个按排序后的顺序获取，中途失败时回滚已经拿到的 key，
// 这样在集群模式下各个 key 可以落在不同 slot。
type RedisLocker struct {
	client        *redis.Client
	lease         time.Duration
	retryInterval time.Duration
}

func NewRedisLocker(client *redis.Client, lease time.Duration) (*RedisLocker, error) {
	if err := client.LoadScriptFromContent(unlockScriptName, unlockScript); err != nil {
		return nil, err
	}
	return &RedisLocker{client: client, lease: leaseOrDefault(lease), retryInterval: 50 * time.Millisecond}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, wait time.Duration) (*Handle, bool, error) {
	return l.TryMultiLock(ctx, []string{key}, wait)
}

func (l *RedisLocker) TryMultiLock(ctx context.Context, keys []string, wait time.Duration) (*Handle, bool, error) {
	keys = normalizeKeys(keys)
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		expiry := time.Now().Add(l.lease)
		ok, err := l.acquireAll(ctx, keys, token)
		if err != nil {
			observe(BackendRedis, false, err)
			return nil, false, err
		}
		if ok {
			observe(BackendRedis, true, nil)
			return &Handle{Keys: keys, Token: token, Expiry: expiry}, true, nil
		}
		if !sleepUntil(ctx, deadline, l.retryInterval) {
			observe(BackendRedis, false, nil)
			return nil, false, nil
		}
	}
}

func (l *RedisLocker) acquireAll(ctx context.Context, keys []string, token string) (bool, error) {
	rdb := l.client.GetClient()
	acquired := make([]string, 0, len(keys))
	for _, k := range keys {
		ok, err := rdb.SetNX(ctx, k, token, l.lease).Result()
		if err != nil || !ok {
			l.release(context.WithoutCancel(ctx), acquired, token)
			if err != nil {
				return false, errors.Wrapf(err, "acquire lock %s", k)
			}
			return false, nil
		}
		acquired = append(acquired, k)
	}
	return true, nil
}

func (l *RedisLocker) release(ctx context.Context, keys []string, token string) error {
	var firstErr error
	for _, k := range keys {
		if _, err := l.client.RunScript(ctx, unlockScriptName, []string{k}, token); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "release lock %s", k)
		}
	}
	return firstErr
}

func (l *RedisLocker) Unlock(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	return l.release(ctx, h.Keys, h.Token)
}

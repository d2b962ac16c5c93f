package push

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "push:session:"
	offlineKeyPrefix = "push:offline:"
	savedKeyPrefix   = "push:offline:saved:"
)

// SessionStore 记录用户连接在哪个网关节点上，以及离线期间积压的通知
type SessionStore interface {
	Bind(ctx context.Context, userID, nodeID string) error
	Unbind(ctx context.Context, userID, nodeID string) error
	Node(ctx context.Context, userID string) (string, error)
	SaveOffline(ctx context.Context, userID, noticeID string, payload []byte) error
	DrainOffline(ctx context.Context, userID string) ([][]byte, error)
}

// 只在 key 仍属于本节点时才删除，避免用户已经重连到其它节点时误删
const unbindScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisSessionStore struct {
	client     goredis.UniversalClient
	ttl        time.Duration
	offlineTTL time.Duration
	maxOffline int64
	unbind     *goredis.Script
}

func NewRedisSessionStore(client goredis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{
		client:     client,
		ttl:        24 * time.Hour,
		offlineTTL: 7 * 24 * time.Hour,
		maxOffline: 100,
		unbind:     goredis.NewScript(unbindScript),
	}
}

func (s *RedisSessionStore) Bind(ctx context.Context, userID, nodeID string) error {
	return s.client.Set(ctx, sessionKeyPrefix+userID, nodeID, s.ttl).Err()
}

func (s *RedisSessionStore) Unbind(ctx context.Context, userID, nodeID string) error {
	return s.unbind.Run(ctx, s.client, []string{sessionKeyPrefix + userID}, nodeID).Err()
}

// Node 用户不在线时返回空串
func (s *RedisSessionStore) Node(ctx context.Context, userID string) (string, error) {
	node, err := s.client.Get(ctx, sessionKeyPrefix+userID).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return node, err
}

// SaveOffline 只保留最近 maxOffline 条。
// 所有节点都会处理同一条通知，noticeID 保证只存一次。
func (s *RedisSessionStore) SaveOffline(ctx context.Context, userID, noticeID string, payload []byte) error {
	first, err := s.client.SetNX(ctx, savedKeyPrefix+noticeID, 1, s.offlineTTL).Result()
	if err != nil {
		return err
	}
	if !first {
		return nil
	}
	key := offlineKeyPrefix + userID
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.LTrim(ctx, key, -s.maxOffline, -1)
		pipe.Expire(ctx, key, s.offlineTTL)
		return nil
	})
	return err
}

func (s *RedisSessionStore) DrainOffline(ctx context.Context, userID string) ([][]byte, error) {
	key := offlineKeyPrefix + userID
	var lrange *goredis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(lrange.Val()))
	for _, v := range lrange.Val() {
		out = append(out, []byte(v))
	}
	return out, nil
}

package lock

import (
	"fmt"

	"eshop/internal/pkg/redis"
)

// New 按配置选择锁后端，返回的 close 在服务关停时调用
func New(cfg Config, rdb *redis.Client, zkServers []string) (Locker, func(), error) {
	switch cfg.Backend {
	case BackendRedis, "":
		if rdb == nil {
			return nil, nil, fmt.Errorf("lock backend %q requires a redis client", BackendRedis)
		}
		l, err := NewRedisLocker(rdb, cfg.Lease)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil
	case BackendZookeeper:
		l, err := NewZkLocker(zkServers, cfg.Lease)
		if err != nil {
			return nil, nil, err
		}
		return l, l.Close, nil
	case BackendLocal:
		return NewLocalLocker(cfg.Lease), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

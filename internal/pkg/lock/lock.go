// Package lock 提供带租约的分布式互斥锁。
//
// TryLock 在 wait 时间内尝试获取锁，拿不到时返回 ok=false 而不是错误；
// 租约由配置统一决定，持有者崩溃后锁会在租约到期后自动释放。
package lock

import (
	"context"
	"time"

	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"
)

const (
	BackendRedis     = "redis"
	BackendZookeeper = "zookeeper"
	BackendLocal     = "local"

	DefaultLease = 30 * time.Second
)

// Config 锁配置，lease 对所有调用方一致
type Config struct {
	Backend     string        `mapstructure:"backend" yaml:"backend"`
	Lease       time.Duration `mapstructure:"lease" yaml:"lease"`
	DeductWait  time.Duration `mapstructure:"deduct_wait" yaml:"deduct_wait"`
	ReleaseWait time.Duration `mapstructure:"release_wait" yaml:"release_wait"`
	CacheWait   time.Duration `mapstructure:"cache_wait" yaml:"cache_wait"`
}

// Handle 持有的锁，Unlock 时用 Token 校验归属
type Handle struct {
	Keys   []string
	Token  string
	Expiry time.Time

	nodes []string // zookeeper 下自己创建的节点
}

type Locker interface {
	TryLock(ctx context.Context, key string, wait time.Duration) (*Handle, bool, error)
	// TryMultiLock 要么全部获取，要么一个都不持有
	TryMultiLock(ctx context.Context, keys []string, wait time.Duration) (*Handle, bool, error)
	// Unlock 释放未持有/已过期/他人持有的锁都是 no-op
	Unlock(ctx context.Context, h *Handle) error
}

// Do 获取锁后执行 fn，任何退出路径(包括 panic)都会释放锁；拿不到锁时返回 busy
func Do(ctx context.Context, l Locker, key string, wait time.Duration, busy error, fn func(ctx context.Context) error) error {
	h, ok, err := l.TryLock(ctx, key, wait)
	return run(ctx, l, h, ok, err, busy, fn)
}

// DoMulti 同时持有全部 key 后执行 fn
func DoMulti(ctx context.Context, l Locker, keys []string, wait time.Duration, busy error, fn func(ctx context.Context) error) error {
	h, ok, err := l.TryMultiLock(ctx, keys, wait)
	return run(ctx, l, h, ok, err, busy, fn)
}

func run(ctx context.Context, l Locker, h *Handle, ok bool, err error, busy error, fn func(ctx context.Context) error) error {
	if err != nil {
		return err
	}
	if !ok {
		return busy
	}
	defer func() {
		if err := l.Unlock(context.WithoutCancel(ctx), h); err != nil {
			logger.Ctx(ctx).Error().Err(err).Strs("keys", h.Keys).Msg("failed to release lock")
		}
	}()
	return fn(ctx)
}

func observe(backend string, ok bool, err error) {
	result := "acquired"
	switch {
	case err != nil:
		result = "error"
	case !ok:
		result = "busy"
	}
	metrics.LockAcquireTotal.WithLabelValues(backend, result).Inc()
}

func leaseOrDefault(lease time.Duration) time.Duration {
	if lease <= 0 {
		return DefaultLease
	}
	return lease
}

// sleepUntil 在 deadline 前等待一个重试间隔，返回 false 表示不应再重试
func sleepUntil(ctx context.Context, deadline time.Time, interval time.Duration) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	if interval > remaining {
		interval = remaining
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type localEntry struct {
	token  string
	expiry time.Time
}

// LocalLocker 进程内实现，单实例开发环境与测试使用
type LocalLocker struct {
	lease time.Duration
	mu    sync.Mutex
	held  map[string]localEntry
	now   func() time.Time
}

func NewLocalLocker(lease time.Duration) *LocalLocker {
	return &LocalLocker{
		lease: leaseOrDefault(lease),
		held:  make(map[string]localEntry),
		now:   time.Now,
	}
}

func (l *LocalLocker) TryLock(ctx context.Context, key string, wait time.Duration) (*Handle, bool, error) {
	return l.TryMultiLock(ctx, []string{key}, wait)
}

func (l *LocalLocker) TryMultiLock(ctx context.Context, keys []string, wait time.Duration) (*Handle, bool, error) {
	keys = normalizeKeys(keys)
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		if h, ok := l.tryAcquire(keys, token); ok {
			observe(BackendLocal, true, nil)
			return h, true, nil
		}
		if !sleepUntil(ctx, deadline, 10*time.Millisecond) {
			observe(BackendLocal, false, nil)
			return nil, false, nil
		}
	}
}

func (l *LocalLocker) tryAcquire(keys []string, token string) (*Handle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for _, k := range keys {
		if e, ok := l.held[k]; ok && now.Before(e.expiry) {
			return nil, false
		}
	}
	expiry := now.Add(l.lease)
	for _, k := range keys {
		l.held[k] = localEntry{token: token, expiry: expiry}
	}
	return &Handle{Keys: keys, Token: token, Expiry: expiry}, true
}

func (l *LocalLocker) Unlock(_ context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range h.Keys {
		if e, ok := l.held[k]; ok && e.token == h.Token {
			delete(l.held, k)
		}
	}
	return nil
}

// normalizeKeys 去重并排序，多把锁按固定顺序获取
func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

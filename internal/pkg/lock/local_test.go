package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errBusy = errors.New("busy")

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker(time.Second)
	ctx := context.Background()

	h, ok, err := l.TryLock(ctx, "order:cancel:o1", 0)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got (%v, %v)", ok, err)
	}

	_, ok, err = l.TryLock(ctx, "order:cancel:o1", 30*time.Millisecond)
	if err != nil || ok {
		t.Fatalf("expected second acquire to time out, got (%v, %v)", ok, err)
	}

	if err := l.Unlock(ctx, h); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok, _ := l.TryLock(ctx, "order:cancel:o1", 0); !ok {
		t.Fatalf("expected acquire after unlock")
	}
}

func TestLocalLocker_ForeignUnlockIsNoop(t *testing.T) {
	l := NewLocalLocker(time.Second)
	ctx := context.Background()

	h, _, _ := l.TryLock(ctx, "k", 0)
	if err := l.Unlock(ctx, &Handle{Keys: []string{"k"}, Token: "someone-else"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := l.TryLock(ctx, "k", 0); ok {
		t.Fatalf("foreign unlock must not release the lock")
	}
	if err := l.Unlock(ctx, h); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := l.Unlock(ctx, h); err != nil {
		t.Fatalf("double unlock must be a no-op, got %v", err)
	}
}

func TestLocalLocker_LeaseExpiry(t *testing.T) {
	l := NewLocalLocker(time.Second)
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if _, ok, _ := l.TryLock(ctx, "k", 0); !ok {
		t.Fatalf("expected acquire")
	}
	now = now.Add(2 * time.Second)
	if _, ok, _ := l.TryLock(ctx, "k", 0); !ok {
		t.Fatalf("expected acquire after lease expiry")
	}
}

func TestLocalLocker_MultiLockAllOrNothing(t *testing.T) {
	l := NewLocalLocker(time.Second)
	ctx := context.Background()

	held, _, _ := l.TryLock(ctx, "b", 0)
	if _, ok, _ := l.TryMultiLock(ctx, []string{"a", "b", "c"}, 0); ok {
		t.Fatalf("expected multi lock to fail while b is held")
	}
	if _, ok, _ := l.TryLock(ctx, "a", 0); !ok {
		t.Fatalf("failed multi lock must not leave a held")
	}
	_ = l.Unlock(ctx, held)

	h, ok, _ := l.TryMultiLock(ctx, []string{"c", "d", "c"}, 0)
	if !ok {
		t.Fatalf("expected multi lock to succeed")
	}
	if len(h.Keys) != 2 {
		t.Fatalf("expected duplicate keys to be collapsed, got %v", h.Keys)
	}
}

func TestDo(t *testing.T) {
	l := NewLocalLocker(time.Second)
	ctx := context.Background()

	t.Run("returns busy when held", func(t *testing.T) {
		h, _, _ := l.TryLock(ctx, "busy-key", 0)
		defer l.Unlock(ctx, h)

		err := Do(ctx, l, "busy-key", 0, errBusy, func(ctx context.Context) error {
			t.Fatalf("fn must not run")
			return nil
		})
		if !errors.Is(err, errBusy) {
			t.Fatalf("expected busy error, got %v", err)
		}
	})

	t.Run("releases on panic", func(t *testing.T) {
		func() {
			defer func() { _ = recover() }()
			_ = Do(ctx, l, "panic-key", 0, errBusy, func(ctx context.Context) error {
				panic("boom")
			})
		}()
		if _, ok, _ := l.TryLock(ctx, "panic-key", 0); !ok {
			t.Fatalf("expected lock to be released after panic")
		}
	})

	t.Run("multi returns busy when any key is held", func(t *testing.T) {
		h, _, _ := l.TryLock(ctx, "multi-b", 0)
		err := DoMulti(ctx, l, []string{"multi-a", "multi-b"}, 0, errBusy, func(ctx context.Context) error {
			t.Fatalf("fn must not run")
			return nil
		})
		if !errors.Is(err, errBusy) {
			t.Fatalf("expected busy error, got %v", err)
		}
		if _, ok, _ := l.TryLock(ctx, "multi-a", 0); !ok {
			t.Fatalf("failed multi lock must not leave keys held")
		}
		_ = l.Unlock(ctx, h)
	})

	t.Run("multi releases every key", func(t *testing.T) {
		err := DoMulti(ctx, l, []string{"multi-c", "multi-d"}, 0, errBusy, func(ctx context.Context) error {
			if _, ok, _ := l.TryLock(ctx, "multi-d", 0); ok {
				t.Fatalf("key must be held inside fn")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("do multi: %v", err)
		}
		for _, k := range []string{"multi-c", "multi-d"} {
			if _, ok, _ := l.TryLock(ctx, k, 0); !ok {
				t.Fatalf("expected %s released", k)
			}
		}
	})

	t.Run("serializes critical sections", func(t *testing.T) {
		var inside, maxInside int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = Do(ctx, l, "serial", time.Second, errBusy, func(ctx context.Context) error {
					n := atomic.AddInt32(&inside, 1)
					if n > atomic.LoadInt32(&maxInside) {
						atomic.StoreInt32(&maxInside, n)
					}
					time.Sleep(time.Millisecond)
					atomic.AddInt32(&inside, -1)
					return nil
				})
			}()
		}
		wg.Wait()
		if maxInside != 1 {
			t.Fatalf("expected at most one holder, saw %d", maxInside)
		}
	})
}

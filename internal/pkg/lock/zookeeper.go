package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

const lockRoot = "/distributed_locks" // 所有分布式锁的根节点

// ZkLocker 基于临时顺序节点的公平锁，租约即会话超时
type ZkLocker struct {
	conn  *zk.Conn
	lease time.Duration
}

// NewZkLocker 连接 ZooKeeper，sessionTimeout 作为锁租约
func NewZkLocker(servers []string, lease time.Duration) (*ZkLocker, error) {
	lease = leaseOrDefault(lease)
	conn, _, err := zk.Connect(servers, lease)
	if err != nil {
		return nil, fmt.Errorf("failed to connect zookeeper: %w", err)
	}
	if err := ensurePath(conn, lockRoot); err != nil {
		conn.Close()
		return nil, err
	}
	return &ZkLocker{conn: conn, lease: lease}, nil
}

func ensurePath(conn *zk.Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return fmt.Errorf("failed to check node %s: %w", path, err)
	}
	if exists {
		return nil
	}
	_, err = conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("failed to create node %s: %w", path, err)
	}
	return nil
}

// key 中的 '/' 会被 ZooKeeper 当作层级，这里统一替换掉
func lockPath(key string) string {
	return lockRoot + "/" + strings.ReplaceAll(key, "/", "_")
}

func (l *ZkLocker) TryLock(ctx context.Context, key string, wait time.Duration) (*Handle, bool, error) {
	return l.TryMultiLock(ctx, []string{key}, wait)
}

func (l *ZkLocker) TryMultiLock(ctx context.Context, keys []string, wait time.Duration) (*Handle, bool, error) {
	keys = normalizeKeys(keys)
	deadline := time.Now().Add(wait)
	h := &Handle{Keys: keys, Expiry: time.Now().Add(l.lease)}
	for _, k := range keys {
		node, ok, err := l.acquire(ctx, k, deadline)
		if err != nil || !ok {
			_ = l.Unlock(context.WithoutCancel(ctx), h)
			observe(BackendZookeeper, false, err)
			return nil, false, err
		}
		h.nodes = append(h.nodes, node)
	}
	h.Token = strings.Join(h.nodes, ",")
	observe(BackendZookeeper, true, nil)
	return h, true, nil
}

// acquire 在 key 目录下创建顺序节点，序号最小者持有锁，否则监听前一个节点
func (l *ZkLocker) acquire(ctx context.Context, key string, deadline time.Time) (string, bool, error) {
	path := lockPath(key)
	if err := ensurePath(l.conn, path); err != nil {
		return "", false, err
	}

	node, err := l.conn.CreateProtectedEphemeralSequential(path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return "", false, fmt.Errorf("failed to create sequential node: %w", err)
	}
	myName := strings.TrimPrefix(node, path+"/")

	giveUp := func() (string, bool, error) {
		if err := l.conn.Delete(node, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			return "", false, fmt.Errorf("failed to delete lock node: %w", err)
		}
		return "", false, nil
	}

	for {
		children, _, err := l.conn.Children(path)
		if err != nil {
			_, _, _ = giveUp()
			return "", false, fmt.Errorf("failed to get children nodes: %w", err)
		}
		sortBySequence(children)

		idx := -1
		for i, child := range children {
			if child == myName {
				idx = i
				break
			}
		}
		if idx < 0 {
			return "", false, errors.New("lock node disappeared, session may have expired")
		}
		if idx == 0 {
			return node, true, nil
		}

		prev := path + "/" + children[idx-1]
		exists, _, events, err := l.conn.ExistsW(prev)
		if err != nil {
			_, _, _ = giveUp()
			return "", false, fmt.Errorf("failed to watch previous node: %w", err)
		}
		if !exists {
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return giveUp()
		}
		timer := time.NewTimer(remaining)
		select {
		case <-events:
			timer.Stop()
		case <-timer.C:
			return giveUp()
		case <-ctx.Done():
			timer.Stop()
			return giveUp()
		}
	}
}

// sortBySequence 受保护节点名带 GUID 前缀，必须按末尾的序号排序
func sortBySequence(children []string) {
	seq := func(name string) string {
		if len(name) < 10 {
			return name
		}
		return name[len(name)-10:]
	}
	sort.Slice(children, func(i, j int) bool { return seq(children[i]) < seq(children[j]) })
}

func (l *ZkLocker) Unlock(_ context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	for _, node := range h.nodes {
		if err := l.conn.Delete(node, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
			return fmt.Errorf("failed to delete lock node: %w", err)
		}
	}
	h.nodes = nil
	return nil
}

func (l *ZkLocker) Close() {
	l.conn.Close()
}

package outbox

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore 进程内实现，用于测试与本地开发
type MemoryStore struct {
	mu   sync.Mutex
	msgs map[string]*Message
	// SaveErr 不为空时 Save 直接失败，用于模拟存储不可用
	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{msgs: make(map[string]*Message)}
}

func (s *MemoryStore) Save(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	s.msgs[msg.ID] = &cp
	return nil
}

func (s *MemoryStore) Resolve(_ context.Context, id string, state TxState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok || m.State != StatePending {
		return false, nil
	}
	m.State = state
	return true, nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (*Message, error) {
	m, ok := s.Get(id)
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (s *MemoryStore) MarkDelivered(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.msgs[id]; ok {
		m.Delivered = true
	}
	return nil
}

func (s *MemoryStore) IncrCheckTimes(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.msgs[id]; ok {
		m.CheckTimes++
	}
	return nil
}

func (s *MemoryStore) FetchUndelivered(_ context.Context, limit int) ([]*Message, error) {
	return s.filter(limit, func(m *Message) bool { return m.State == StateCommit && !m.Delivered }), nil
}

func (s *MemoryStore) FetchPending(_ context.Context, before time.Time, limit int) ([]*Message, error) {
	return s.filter(limit, func(m *Message) bool { return m.State == StatePending && m.CreatedAt.Before(before) }), nil
}

func (s *MemoryStore) filter(limit int, match func(*Message) bool) []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Message, 0)
	for _, m := range s.msgs {
		if match(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Get 返回消息副本
func (s *MemoryStore) Get(id string) (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// ByTopic 返回某主题下的全部消息
func (s *MemoryStore) ByTopic(topic string) []*Message {
	return s.filter(0, func(m *Message) bool { return m.Topic == topic })
}

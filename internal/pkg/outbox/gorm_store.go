package outbox

import (
	"context"
	"encoding/json"
	"time"

	"eshop/internal/pkg/persistence"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// MessageModel 表 outbox_message
type MessageModel struct {
	ID            string    `gorm:"primaryKey;size:64"`
	Topic         string    `gorm:"size:128;not null"`
	MessageKey    string    `gorm:"size:128"`
	CorrelationID string    `gorm:"size:64;index"`
	Checker       string    `gorm:"size:64"`
	Payload       string    `gorm:"type:mediumtext"`
	Headers       string    `gorm:"type:text"`
	State         string    `gorm:"size:16;not null;index:idx_state_delivered,priority:1"`
	Delivered     bool      `gorm:"not null;default:false;index:idx_state_delivered,priority:2"`
	CheckTimes    int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (MessageModel) TableName() string { return "outbox_message" }

func fromMessage(m *Message) (*MessageModel, error) {
	headers, err := json.Marshal(m.Headers)
	if err != nil {
		return nil, err
	}
	return &MessageModel{
		ID:            m.ID,
		Topic:         m.Topic,
		MessageKey:    m.Key,
		CorrelationID: m.CorrelationID,
		Checker:       m.Checker,
		Payload:       string(m.Payload),
		Headers:       string(headers),
		State:         string(m.State),
		Delivered:     m.Delivered,
		CheckTimes:    m.CheckTimes,
		CreatedAt:     m.CreatedAt,
	}, nil
}

func toMessage(m *MessageModel) *Message {
	msg := &Message{
		ID:            m.ID,
		Topic:         m.Topic,
		Key:           m.MessageKey,
		CorrelationID: m.CorrelationID,
		Checker:       m.Checker,
		Payload:       []byte(m.Payload),
		State:         TxState(m.State),
		Delivered:     m.Delivered,
		CheckTimes:    m.CheckTimes,
		CreatedAt:     m.CreatedAt,
	}
	if m.Headers != "" {
		_ = json.Unmarshal([]byte(m.Headers), &msg.Headers)
	}
	return msg
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, msg *Message) error {
	m, err := fromMessage(msg)
	if err != nil {
		return errors.Wrap(err, "encode outbox headers")
	}
	if err := persistence.DB(ctx, s.db).Create(m).Error; err != nil {
		return errors.Wrapf(err, "save outbox message %s", msg.ID)
	}
	msg.CreatedAt = m.CreatedAt
	return nil
}

func (s *GormStore) Resolve(ctx context.Context, id string, state TxState) (bool, error) {
	res := persistence.DB(ctx, s.db).Model(&MessageModel{}).
		Where("id = ? AND state = ?", id, string(StatePending)).
		Update("state", string(state))
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "resolve outbox message %s", id)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) Find(ctx context.Context, id string) (*Message, error) {
	var m MessageModel
	err := persistence.DB(ctx, s.db).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find outbox message %s", id)
	}
	return toMessage(&m), nil
}

func (s *GormStore) MarkDelivered(ctx context.Context, id string) error {
	err := persistence.DB(ctx, s.db).Model(&MessageModel{}).
		Where("id = ?", id).
		Update("delivered", true).Error
	return errors.Wrapf(err, "mark outbox message %s delivered", id)
}

func (s *GormStore) IncrCheckTimes(ctx context.Context, id string) error {
	err := persistence.DB(ctx, s.db).Model(&MessageModel{}).
		Where("id = ?", id).
		Update("check_times", gorm.Expr("check_times + 1")).Error
	return errors.Wrapf(err, "increase check times of %s", id)
}

func (s *GormStore) FetchUndelivered(ctx context.Context, limit int) ([]*Message, error) {
	var models []*MessageModel
	err := persistence.DB(ctx, s.db).
		Where("state = ? AND delivered = ?", string(StateCommit), false).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "fetch undelivered outbox messages")
	}
	return toMessages(models), nil
}

func (s *GormStore) FetchPending(ctx context.Context, before time.Time, limit int) ([]*Message, error) {
	var models []*MessageModel
	err := persistence.DB(ctx, s.db).
		Where("state = ? AND created_at < ?", string(StatePending), before).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "fetch pending outbox messages")
	}
	return toMessages(models), nil
}

func toMessages(models []*MessageModel) []*Message {
	out := make([]*Message, 0, len(models))
	for _, m := range models {
		out = append(out, toMessage(m))
	}
	return out
}

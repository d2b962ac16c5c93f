package ledger

import (
	"context"
	"errors"
	"time"

	"eshop/internal/pkg/persistence"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// OperationLogModel 表 operation_log，(resource_id, operation_key) 唯一
type OperationLogModel struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	ResourceID   string    `gorm:"size:64;not null;uniqueIndex:uk_resource_operation,priority:1"`
	OperationKey string    `gorm:"size:128;not null;uniqueIndex:uk_resource_operation,priority:2"`
	Status       string    `gorm:"size:16;not null"`
	Payload      string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (OperationLogModel) TableName() string { return "operation_log" }

func toEntry(m *OperationLogModel) *Entry {
	e := &Entry{
		ResourceID:   m.ResourceID,
		OperationKey: m.OperationKey,
		Status:       Status(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Payload != "" {
		e.Payload = []byte(m.Payload)
	}
	return e
}

// GormStore 基于 MySQL 的台账实现
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Find(ctx context.Context, resourceID, operationKey string) (*Entry, error) {
	var m OperationLogModel
	err := persistence.DB(ctx, s.db).
		Where("resource_id = ? AND operation_key = ?", resourceID, operationKey).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "find operation log %s/%s", resourceID, operationKey)
	}
	return toEntry(&m), nil
}

func (s *GormStore) Record(ctx context.Context, e *Entry) error {
	m := &OperationLogModel{
		ResourceID:   e.ResourceID,
		OperationKey: e.OperationKey,
		Status:       string(e.Status),
		Payload:      string(e.Payload),
	}
	if err := persistence.DB(ctx, s.db).Create(m).Error; err != nil {
		if persistence.IsDuplicateKey(err) {
			return ErrDuplicate.Wrap(err)
		}
		return pkgerrors.Wrapf(err, "record operation log %s/%s", e.ResourceID, e.OperationKey)
	}
	e.CreatedAt, e.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (s *GormStore) Transition(ctx context.Context, resourceID, operationKey string, from, to Status) (bool, error) {
	res := persistence.DB(ctx, s.db).Model(&OperationLogModel{}).
		Where("resource_id = ? AND operation_key = ? AND status = ?", resourceID, operationKey, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return false, pkgerrors.Wrapf(res.Error, "transition operation log %s/%s", resourceID, operationKey)
	}
	return res.RowsAffected == 1, nil
}

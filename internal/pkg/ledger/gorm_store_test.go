package ledger

import (
	"context"
	"errors"
	"testing"

	"eshop/internal/pkg/persistence"
	"eshop/internal/pkg/retry"
	"eshop/internal/pkg/testutil"
)

func TestGormStore_Integration(t *testing.T) {
	db := testutil.NewTestDB(t, &OperationLogModel{})
	testutil.Truncate(t, db, "operation_log")
	store := NewGormStore(db)
	ctx := context.Background()

	if e, err := store.Find(ctx, "o1", "S1"); err != nil || e != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", e, err)
	}
	if err := store.Record(ctx, &Entry{ResourceID: "o1", OperationKey: "S1", Status: StatusCompleted}); err != nil {
		t.Fatalf("record: %v", err)
	}
	err := store.Record(ctx, &Entry{ResourceID: "o1", OperationKey: "S1", Status: StatusCompleted})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	t.Run("rolled back transaction leaves no entry", func(t *testing.T) {
		tx := persistence.NewGormTransactor(db, retry.DefaultConfig)
		rollback := errors.New("insufficient stock")
		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := store.Record(ctx, &Entry{ResourceID: "o2", OperationKey: "S1", Status: StatusCompleted}); err != nil {
				return err
			}
			return rollback
		})
		if !errors.Is(err, rollback) {
			t.Fatalf("expected rollback error, got %v", err)
		}
		if e, _ := store.Find(ctx, "o2", "S1"); e != nil {
			t.Fatalf("expected entry to be rolled back, got %+v", e)
		}
	})

	ok, err := store.Transition(ctx, "o1", "S1", StatusCompleted, StatusReleased)
	if err != nil || !ok {
		t.Fatalf("transition: (%v, %v)", ok, err)
	}
	if ok, _ := store.Transition(ctx, "o1", "S1", StatusCompleted, StatusReleased); ok {
		t.Fatalf("second transition must miss")
	}
}

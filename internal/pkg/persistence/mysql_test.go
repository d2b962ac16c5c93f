package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func TestIsDuplicateKey(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm translated", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"mysql 1062", &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"mysql deadlock", &mysqlDriver.MySQLError{Number: 1213, Message: "Deadlock found"}, false},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicateKey(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestContextWithTx(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Fatalf("expected no tx in empty context")
	}
	tx := &gorm.DB{}
	ctx := ContextWithTx(context.Background(), tx)
	if TxFromContext(ctx) != tx {
		t.Fatalf("expected tx to round trip through context")
	}
	if DB(ctx, nil) != tx {
		t.Fatalf("expected DB to prefer the context tx")
	}
}

func TestNoopTransactor(t *testing.T) {
	want := errors.New("rollback")
	err := NoopTransactor{}.WithinTx(context.Background(), func(ctx context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

package bizerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var errStockMissing = NotFound("PRODUCT_SKU_STOCK_NOT_FOUND", "stock not found")

func TestError_IsMatchesByCode(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("deduct: %w", errStockMissing.Wrap(errors.New("record not found")))
	if !errors.Is(wrapped, errStockMissing) {
		t.Fatalf("expected wrapped copy to match sentinel")
	}

	other := NotFound("ORDER_NOT_FOUND", "order not found")
	if errors.Is(wrapped, other) {
		t.Fatalf("expected different code not to match")
	}

	if errStockMissing.Unwrap() != nil {
		t.Fatalf("expected sentinel to stay without cause")
	}
}

func TestKindOfAndRetryable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
		status    int
	}{
		{"validation", Validation("X", "x"), KindValidation, false, http.StatusBadRequest},
		{"conflict", Conflict("X", "x"), KindConflict, true, http.StatusConflict},
		{"not found", errStockMissing, KindNotFound, false, http.StatusNotFound},
		{"business rule", BusinessRule("X", "x"), KindBusinessRule, false, http.StatusUnprocessableEntity},
		{"publish", PublishFailure("X", "x"), KindPublishFailure, true, http.StatusBadGateway},
		{"downstream", Downstream("X", "x"), KindDownstream, true, http.StatusBadGateway},
		{"plain", errors.New("boom"), KindSystem, true, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, got)
			}
			if got := Retryable(tc.err); got != tc.retryable {
				t.Fatalf("expected retryable=%v, got %v", tc.retryable, got)
			}
			if got := HTTPStatus(tc.err); got != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, got)
			}
		})
	}
}

func TestFailure_HidesUnknownErrors(t *testing.T) {
	t.Parallel()

	res := Failure(errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	if res.Success {
		t.Fatalf("expected failure")
	}
	if res.Code != SystemErrorCode {
		t.Fatalf("expected %s, got %s", SystemErrorCode, res.Code)
	}

	res = Failure(errStockMissing.WithMessage("sku %s missing", "S1"))
	if res.Code != "PRODUCT_SKU_STOCK_NOT_FOUND" || res.Message != "sku S1 missing" {
		t.Fatalf("unexpected result %+v", res)
	}
}

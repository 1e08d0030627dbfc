package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     error
		business bool
	}{
		{name: "invalid phone", err: ErrInvalidPhone, kind: ErrValidation, business: true},
		{name: "price", err: ErrPriceNotPositive, kind: ErrValidation, business: true},
		{name: "email taken", err: ErrEmailTaken, kind: ErrConflict, business: true},
		{name: "customer not found", err: ErrCustomerNotFound, kind: ErrNotFound, business: true},
		{name: "product id", err: NewProductNotFoundError("p-1"), kind: ErrNotFound, business: true},
		{name: "order field", err: &UnknownOrderFieldError{Field: "x"}, kind: ErrValidation, business: true},
		{name: "wrapped", err: fmt.Errorf("create: %w", ErrEmailTaken), kind: ErrConflict, business: true},
		{name: "infrastructure", err: errors.New("connection reset"), kind: nil, business: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.kind != nil && !errors.Is(tt.err, tt.kind) {
				t.Errorf("expected %v to be %v", tt.err, tt.kind)
			}
			if got := IsBusiness(tt.err); got != tt.business {
				t.Errorf("IsBusiness() = %v, want %v", got, tt.business)
			}
		})
	}
}

func TestProductNotFoundError(t *testing.T) {
	err := NewProductNotFoundError("42")
	if err.Error() != "Invalid product ID: 42" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatal("expected errors.Is(err, ErrProductNotFound)")
	}
	if errors.Is(err, ErrCustomerNotFound) {
		t.Fatal("product error must not match customer error")
	}
}

func TestIsIdempotencyConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "already exists", err: ErrIdempotencyKeyAlreadyExists, want: true},
		{name: "hash mismatch", err: ErrIdempotencyHashMismatch, want: true},
		{name: "wrapped", err: errors.Join(ErrIdempotencyHashMismatch, errors.New("extra")), want: true},
		{name: "other", err: ErrEmailTaken, want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIdempotencyConflict(tt.err); got != tt.want {
				t.Errorf("IsIdempotencyConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

func TestProductValidate(t *testing.T) {
	cases := []struct {
		name    string
		product domain.Product
		want    error
	}{
		{name: "ok", product: domain.Product{Name: "Laptop", Price: decimal.RequireFromString("999.99"), Stock: 10}},
		{name: "zero stock", product: domain.Product{Name: "Mouse", Price: decimal.RequireFromString("29.99")}},
		{name: "negative price", product: domain.Product{Name: "X", Price: decimal.NewFromInt(-5)}, want: domain.ErrPriceNotPositive},
		{name: "zero price", product: domain.Product{Name: "X", Price: decimal.Zero}, want: domain.ErrPriceNotPositive},
		{name: "negative stock", product: domain.Product{Name: "X", Price: decimal.NewFromInt(1), Stock: -1}, want: domain.ErrStockNegative},
		{name: "no name", product: domain.Product{Price: decimal.NewFromInt(1)}, want: domain.ErrNameRequired},
		{name: "name too long", product: domain.Product{Name: strings.Repeat("x", domain.MaxNameLength+1), Price: decimal.NewFromInt(1)}, want: domain.ErrNameTooLong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.product.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestProductLowStock(t *testing.T) {
	if !(&domain.Product{Stock: domain.LowStockThreshold - 1}).LowStock() {
		t.Fatal("stock below threshold must be low")
	}
	if (&domain.Product{Stock: domain.LowStockThreshold}).LowStock() {
		t.Fatal("stock equal to threshold is not low")
	}
}

func TestSumPrices(t *testing.T) {
	products := []domain.Product{
		{Price: decimal.RequireFromString("999.99")},
		{Price: decimal.RequireFromString("29.99")},
	}

	got := domain.SumPrices(products)
	if !got.Equal(decimal.RequireFromString("1029.98")) {
		t.Fatalf("expected 1029.98, got %s", got)
	}
	if !domain.SumPrices(nil).IsZero() {
		t.Fatal("sum of no products must be zero")
	}
}

func TestUniqueIDs(t *testing.T) {
	got := domain.UniqueIDs([]string{"b", "a", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

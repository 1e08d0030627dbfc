package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order агрегирует заказ клиента и набор товаров.
type Order struct {
	ID         string
	CustomerID string
	ProductIDs []string
	// TotalAmount фиксируется при создании и не пересчитывается при смене цен.
	TotalAmount decimal.Decimal
	OrderDate   time.Time
	CreatedAt   time.Time
}

// SumPrices возвращает точную сумму цен товаров.
func SumPrices(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}
	return total
}

// UniqueIDs убирает повторы, сохраняя порядок первого вхождения.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

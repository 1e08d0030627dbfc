package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// LowStockThreshold — товары с остатком ниже порога считаются заканчивающимися.
	LowStockThreshold = 10
	// RestockQuantity — на сколько единиц пополняется остаток заканчивающегося товара.
	RestockQuantity = 10
)

// Product описывает товар каталога.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	CreatedAt time.Time
}

// Validate проверяет цену и остаток товара.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(p.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !p.Price.IsPositive() {
		return ErrPriceNotPositive
	}
	if p.Stock < 0 {
		return ErrStockNegative
	}
	return nil
}

// LowStock сообщает, нужно ли пополнять остаток товара.
func (p *Product) LowStock() bool {
	return p.Stock < LowStockThreshold
}

package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Канонические имена полей сортировки.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldCreatedAt   = "created_at"
	FieldPrice       = "price"
	FieldStock       = "stock"
	FieldTotalAmount = "total_amount"
	FieldOrderDate   = "order_date"
)

var (
	// CustomerOrderFields — поля, по которым разрешена сортировка клиентов.
	CustomerOrderFields = []string{FieldID, FieldName, FieldEmail, FieldPhone, FieldCreatedAt}
	// ProductOrderFields — поля, по которым разрешена сортировка товаров.
	ProductOrderFields = []string{FieldID, FieldName, FieldPrice, FieldStock, FieldCreatedAt}
	// OrderOrderFields — поля, по которым разрешена сортировка заказов.
	OrderOrderFields = []string{FieldID, FieldTotalAmount, FieldOrderDate, FieldCreatedAt}
)

// SortField задаёт одно поле сортировки.
type SortField struct {
	Field string
	Desc  bool
}

// Ordering — список полей сортировки, применяемых по порядку.
type Ordering []SortField

// ParseOrdering разбирает список вида ["-price", "name"]. Префикс "-" означает убывание,
// имена принимаются как в camelCase, так и в snake_case.
func ParseOrdering(fields []string, allowed []string) (Ordering, error) {
	index := make(map[string]string, len(allowed))
	for _, f := range allowed {
		index[normalizeField(f)] = f
	}

	ordering := make(Ordering, 0, len(fields))
	for _, raw := range fields {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		desc := false
		if strings.HasPrefix(name, "-") {
			desc = true
			name = strings.TrimPrefix(name, "-")
		} else if strings.HasPrefix(name, "+") {
			name = strings.TrimPrefix(name, "+")
		}
		canonical, ok := index[normalizeField(name)]
		if !ok {
			return nil, &UnknownOrderFieldError{Field: raw}
		}
		ordering = append(ordering, SortField{Field: canonical, Desc: desc})
	}
	return ordering, nil
}

// WithTieBreak дополняет сортировку полями created_at и id (по возрастанию),
// чтобы порядок страниц был детерминированным.
func (o Ordering) WithTieBreak() Ordering {
	result := make(Ordering, 0, len(o)+2)
	result = append(result, o...)
	for _, field := range []string{FieldCreatedAt, FieldID} {
		if !o.has(field) {
			result = append(result, SortField{Field: field})
		}
	}
	return result
}

func (o Ordering) has(field string) bool {
	for _, f := range o {
		if f.Field == field {
			return true
		}
	}
	return false
}

func normalizeField(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

// Page ограничивает выборку. Limit <= 0 означает "без ограничения".
type Page struct {
	Limit  int
	Offset int
}

// CustomerFilter — фильтры списка клиентов.
type CustomerFilter struct {
	NameContains  string
	EmailContains string
	CreatedAtGte  *time.Time
	CreatedAtLte  *time.Time
}

// Match проверяет клиента на соответствие фильтру.
func (f CustomerFilter) Match(c Customer) bool {
	if !containsFold(c.Name, f.NameContains) || !containsFold(c.Email, f.EmailContains) {
		return false
	}
	return timeInRange(c.CreatedAt, f.CreatedAtGte, f.CreatedAtLte)
}

// ProductFilter — фильтры списка товаров.
type ProductFilter struct {
	NameContains string
	PriceGte     *decimal.Decimal
	PriceLte     *decimal.Decimal
	StockGte     *int
	StockLte     *int
	Stock        *int
}

// Match проверяет товар на соответствие фильтру.
func (f ProductFilter) Match(p Product) bool {
	if !containsFold(p.Name, f.NameContains) {
		return false
	}
	if !decimalInRange(p.Price, f.PriceGte, f.PriceLte) {
		return false
	}
	if f.StockGte != nil && p.Stock < *f.StockGte {
		return false
	}
	if f.StockLte != nil && p.Stock > *f.StockLte {
		return false
	}
	if f.Stock != nil && p.Stock != *f.Stock {
		return false
	}
	return true
}

// OrderFilter — фильтры списка заказов. CustomerName и ProductName требуют
// связанных записей, поэтому проверяются хранилищем.
type OrderFilter struct {
	TotalAmountGte *decimal.Decimal
	TotalAmountLte *decimal.Decimal
	OrderDateGte   *time.Time
	OrderDateLte   *time.Time
	CustomerName   string
	ProductName    string
}

// MatchOwnFields проверяет поля самого заказа (без связанных записей).
func (f OrderFilter) MatchOwnFields(o Order) bool {
	if !decimalInRange(o.TotalAmount, f.TotalAmountGte, f.TotalAmountLte) {
		return false
	}
	return timeInRange(o.OrderDate, f.OrderDateGte, f.OrderDateLte)
}

// ContainsFold — регистронезависимая проверка подстроки; пустой needle совпадает всегда.
func ContainsFold(s, needle string) bool {
	return containsFold(s, needle)
}

func containsFold(s, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(needle))
}

func timeInRange(t time.Time, gte, lte *time.Time) bool {
	if gte != nil && t.Before(*gte) {
		return false
	}
	if lte != nil && t.After(*lte) {
		return false
	}
	return true
}

func decimalInRange(v decimal.Decimal, gte, lte *decimal.Decimal) bool {
	if gte != nil && v.LessThan(*gte) {
		return false
	}
	if lte != nil && v.GreaterThan(*lte) {
		return false
	}
	return true
}

package graphqlsvc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
)

func inputObject(args map[string]interface{}, key string) map[string]interface{} {
	m, _ := args[key].(map[string]interface{})
	return m
}

func stringArg(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func intArg(m map[string]interface{}, key string) *int {
	switch v := m[key].(type) {
	case int:
		return &v
	case *int:
		return v
	default:
		return nil
	}
}

func decimalArg(m map[string]interface{}, key string) *decimal.Decimal {
	switch v := m[key].(type) {
	case decimal.Decimal:
		return &v
	case *decimal.Decimal:
		return v
	default:
		return nil
	}
}

// timeArg принимает значение DateTime; строки разбираются как RFC3339.
func timeArg(m map[string]interface{}, key string) *time.Time {
	switch v := m[key].(type) {
	case time.Time:
		t := v.UTC()
		return &t
	case *time.Time:
		if v == nil {
			return nil
		}
		t := v.UTC()
		return &t
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	default:
		return nil
	}
}

func stringList(value interface{}) []string {
	items, _ := value.([]interface{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// nullProductID подставляется вместо null-элементов productIds, чтобы мутация
// отклонила их как неизвестный товар, а не проигнорировала.
const nullProductID = "null"

func productIDList(value interface{}) []string {
	items, _ := value.([]interface{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			s = nullProductID
		}
		out = append(out, s)
	}
	return out
}

func customerFilterArg(args map[string]interface{}) domain.CustomerFilter {
	in := inputObject(args, "filter")
	return domain.CustomerFilter{
		NameContains:  stringArg(in, "nameIcontains"),
		EmailContains: stringArg(in, "emailIcontains"),
		CreatedAtGte:  timeArg(in, "createdAtGte"),
		CreatedAtLte:  timeArg(in, "createdAtLte"),
	}
}

func productFilterArg(args map[string]interface{}) domain.ProductFilter {
	in := inputObject(args, "filter")
	return domain.ProductFilter{
		NameContains: stringArg(in, "nameIcontains"),
		PriceGte:     decimalArg(in, "priceGte"),
		PriceLte:     decimalArg(in, "priceLte"),
		StockGte:     intArg(in, "stockGte"),
		StockLte:     intArg(in, "stockLte"),
		Stock:        intArg(in, "stock"),
	}
}

func orderFilterArg(args map[string]interface{}) domain.OrderFilter {
	in := inputObject(args, "filter")
	return domain.OrderFilter{
		TotalAmountGte: decimalArg(in, "totalAmountGte"),
		TotalAmountLte: decimalArg(in, "totalAmountLte"),
		OrderDateGte:   timeArg(in, "orderDateGte"),
		OrderDateLte:   timeArg(in, "orderDateLte"),
		CustomerName:   stringArg(in, "customerName"),
		ProductName:    stringArg(in, "productName"),
	}
}

func customerInputArg(m map[string]interface{}) crm.CustomerInput {
	return crm.CustomerInput{
		Name:  stringArg(m, "name"),
		Email: stringArg(m, "email"),
		Phone: stringArg(m, "phone"),
	}
}

func productInputArg(m map[string]interface{}) crm.ProductInput {
	in := crm.ProductInput{
		Name:  stringArg(m, "name"),
		Stock: intArg(m, "stock"),
	}
	if price := decimalArg(m, "price"); price != nil {
		in.Price = *price
	}
	return in
}

func orderInputArg(m map[string]interface{}) crm.OrderInput {
	return crm.OrderInput{
		CustomerID: stringArg(m, "customerId"),
		ProductIDs: productIDList(m["productIds"]),
		OrderDate:  timeArg(m, "orderDate"),
	}
}

package graphqlsvc

import (
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/shopspring/decimal"
)

// Decimal передаёт денежные значения строкой, чтобы не терять точность;
// на входе принимает строку, целое или число с плавающей точкой.
var Decimal = graphql.NewScalar(graphql.ScalarConfig{
	Name:         "Decimal",
	Description:  "Fixed-point decimal number serialized as a string, e.g. \"999.99\".",
	Serialize:    serializeDecimal,
	ParseValue:   parseDecimalValue,
	ParseLiteral: parseDecimalLiteral,
})

func serializeDecimal(value interface{}) interface{} {
	switch v := value.(type) {
	case decimal.Decimal:
		return v.StringFixed(2)
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		return v.StringFixed(2)
	default:
		return nil
	}
}

func parseDecimalValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil
		}
		return d
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat32(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case decimal.Decimal:
		return v
	default:
		return nil
	}
}

func parseDecimalLiteral(valueAST ast.Value) interface{} {
	switch v := valueAST.(type) {
	case *ast.StringValue:
		return parseDecimalValue(v.Value)
	case *ast.IntValue:
		return parseDecimalValue(v.Value)
	case *ast.FloatValue:
		return parseDecimalValue(v.Value)
	default:
		return nil
	}
}

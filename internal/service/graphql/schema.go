// Package graphqlsvc публикует слой мутаций и запросов CRM как GraphQL API поверх HTTP.
package graphqlsvc

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
)

type schemaBuilder struct {
	svc *crm.Service

	customerType *graphql.Object
	productType  *graphql.Object
	orderType    *graphql.Object
	pageInfoType *graphql.Object

	customerInput *graphql.InputObject
	productInput  *graphql.InputObject
	orderInput    *graphql.InputObject
}

// NewSchema собирает GraphQL-схему CRM поверх сервиса.
func NewSchema(svc *crm.Service) (graphql.Schema, error) {
	b := &schemaBuilder{svc: svc}
	b.buildObjectTypes()
	b.buildInputTypes()

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    b.queryType(),
		Mutation: b.mutationType(),
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("build graphql schema: %w", err)
	}
	return schema, nil
}

// sourceField строит resolver поля из значения-источника типа T.
func sourceField[T any](get func(T) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		switch src := p.Source.(type) {
		case T:
			return get(src), nil
		case *T:
			if src == nil {
				return nil, nil
			}
			return get(*src), nil
		default:
			return nil, fmt.Errorf("unexpected source type %T", p.Source)
		}
	}
}

func (b *schemaBuilder) buildObjectTypes() {
	b.customerType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Customer",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: sourceField(func(c domain.Customer) interface{} { return c.ID })},
			"name":      &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: sourceField(func(c domain.Customer) interface{} { return c.Name })},
			"email":     &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: sourceField(func(c domain.Customer) interface{} { return c.Email })},
			"phone":     &graphql.Field{Type: graphql.String, Resolve: sourceField(func(c domain.Customer) interface{} { return c.Phone })},
			"createdAt": &graphql.Field{Type: graphql.DateTime, Resolve: sourceField(func(c domain.Customer) interface{} { return c.CreatedAt })},
		},
	})

	b.productType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Product",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: sourceField(func(p domain.Product) interface{} { return p.ID })},
			"name":      &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: sourceField(func(p domain.Product) interface{} { return p.Name })},
			"price":     &graphql.Field{Type: graphql.NewNonNull(Decimal), Resolve: sourceField(func(p domain.Product) interface{} { return p.Price })},
			"stock":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int), Resolve: sourceField(func(p domain.Product) interface{} { return p.Stock })},
			"createdAt": &graphql.Field{Type: graphql.DateTime, Resolve: sourceField(func(p domain.Product) interface{} { return p.CreatedAt })},
		},
	})

	b.orderType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Order",
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: sourceField(func(o domain.Order) interface{} { return o.ID })},
			"customer": &graphql.Field{
				Type: b.customerType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					order, ok := p.Source.(domain.Order)
					if !ok {
						return nil, fmt.Errorf("unexpected source type %T", p.Source)
					}
					return b.svc.Customer(p.Context, order.CustomerID)
				},
			},
			"products": &graphql.Field{
				Type: graphql.NewList(b.productType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					order, ok := p.Source.(domain.Order)
					if !ok {
						return nil, fmt.Errorf("unexpected source type %T", p.Source)
					}
					return b.svc.ProductsByIDs(p.Context, order.ProductIDs)
				},
			},
			"totalAmount": &graphql.Field{Type: graphql.NewNonNull(Decimal), Resolve: sourceField(func(o domain.Order) interface{} { return o.TotalAmount })},
			"orderDate":   &graphql.Field{Type: graphql.DateTime, Resolve: sourceField(func(o domain.Order) interface{} { return o.OrderDate })},
			"createdAt":   &graphql.Field{Type: graphql.DateTime, Resolve: sourceField(func(o domain.Order) interface{} { return o.CreatedAt })},
		},
	})

	b.pageInfoType = graphql.NewObject(graphql.ObjectConfig{
		Name: "PageInfo",
		Fields: graphql.Fields{
			"hasNextPage":     &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"hasPreviousPage": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"startCursor":     &graphql.Field{Type: graphql.String},
			"endCursor":       &graphql.Field{Type: graphql.String},
		},
	})
}

func (b *schemaBuilder) buildInputTypes() {
	b.customerInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CustomerInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"email": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"phone": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})
	b.productInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "ProductInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"price": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(Decimal)},
			"stock": &graphql.InputObjectFieldConfig{Type: graphql.Int},
		},
	})
	b.orderInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "OrderInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"customerId": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"productIds": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.ID))},
			"orderDate":  &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
		},
	})
}

// connectionType строит relay-connection для типа узла.
func (b *schemaBuilder) connectionType(node *graphql.Object) *graphql.Object {
	edge := graphql.NewObject(graphql.ObjectConfig{
		Name: node.Name() + "Edge",
		Fields: graphql.Fields{
			"cursor": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"node":   &graphql.Field{Type: node},
		},
	})
	return graphql.NewObject(graphql.ObjectConfig{
		Name: node.Name() + "Connection",
		Fields: graphql.Fields{
			"edges":      &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(edge))},
			"pageInfo":   &graphql.Field{Type: graphql.NewNonNull(b.pageInfoType)},
			"totalCount": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})
}

func connectionArgs(filter *graphql.InputObject) graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"filter":  &graphql.ArgumentConfig{Type: filter},
		"orderBy": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
		"first":   &graphql.ArgumentConfig{Type: graphql.Int},
		"after":   &graphql.ArgumentConfig{Type: graphql.String},
	}
}

// connection собирает значение connection из страницы выборки.
func connection[T any](items []T, total int, page domain.Page, empty bool) map[string]interface{} {
	if empty {
		items = items[:0]
	}

	edges := make([]interface{}, 0, len(items))
	for i, item := range items {
		edges = append(edges, map[string]interface{}{
			"cursor": encodeCursor(page.Offset + i),
			"node":   item,
		})
	}

	pageInfo := map[string]interface{}{
		"hasNextPage":     page.Offset+len(items) < total,
		"hasPreviousPage": page.Offset > 0,
		"startCursor":     nil,
		"endCursor":       nil,
	}
	if len(items) > 0 {
		pageInfo["startCursor"] = encodeCursor(page.Offset)
		pageInfo["endCursor"] = encodeCursor(page.Offset + len(items) - 1)
	}

	return map[string]interface{}{
		"edges":      edges,
		"pageInfo":   pageInfo,
		"totalCount": total,
	}
}

package graphqlsvc

import (
	"github.com/graphql-go/graphql"

	"github.com/vladislavdragonenkov/crm/internal/service/crm"
)

func (b *schemaBuilder) queryType() *graphql.Object {
	customerFilter := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CustomerFilterInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"nameIcontains":  &graphql.InputObjectFieldConfig{Type: graphql.String},
			"emailIcontains": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"createdAtGte":   &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
			"createdAtLte":   &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
		},
	})
	productFilter := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "ProductFilterInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"nameIcontains": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"priceGte":      &graphql.InputObjectFieldConfig{Type: Decimal},
			"priceLte":      &graphql.InputObjectFieldConfig{Type: Decimal},
			"stockGte":      &graphql.InputObjectFieldConfig{Type: graphql.Int},
			"stockLte":      &graphql.InputObjectFieldConfig{Type: graphql.Int},
			"stock":         &graphql.InputObjectFieldConfig{Type: graphql.Int},
		},
	})
	orderFilter := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "OrderFilterInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"totalAmountGte": &graphql.InputObjectFieldConfig{Type: Decimal},
			"totalAmountLte": &graphql.InputObjectFieldConfig{Type: Decimal},
			"orderDateGte":   &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
			"orderDateLte":   &graphql.InputObjectFieldConfig{Type: graphql.DateTime},
			"customerName":   &graphql.InputObjectFieldConfig{Type: graphql.String},
			"productName":    &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hello": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(graphql.ResolveParams) (interface{}, error) {
					return b.svc.Hello(), nil
				},
			},
			"customers": &graphql.Field{
				Type: graphql.NewList(b.customerType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return b.svc.Customers(p.Context)
				},
			},
			"products": &graphql.Field{
				Type: graphql.NewList(b.productType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return b.svc.Products(p.Context)
				},
			},
			"orders": &graphql.Field{
				Type: graphql.NewList(b.orderType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return b.svc.Orders(p.Context)
				},
			},
			"allCustomers": &graphql.Field{
				Type: b.connectionType(b.customerType),
				Args: connectionArgs(customerFilter),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					page, empty, err := pageFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					res, err := b.svc.AllCustomers(p.Context, customerFilterArg(p.Args), stringList(p.Args["orderBy"]), page)
					if err != nil {
						return nil, err
					}
					return connection(res.Items, res.TotalCount, page, empty), nil
				},
			},
			"allProducts": &graphql.Field{
				Type: b.connectionType(b.productType),
				Args: connectionArgs(productFilter),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					page, empty, err := pageFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					res, err := b.svc.AllProducts(p.Context, productFilterArg(p.Args), stringList(p.Args["orderBy"]), page)
					if err != nil {
						return nil, err
					}
					return connection(res.Items, res.TotalCount, page, empty), nil
				},
			},
			"allOrders": &graphql.Field{
				Type: b.connectionType(b.orderType),
				Args: connectionArgs(orderFilter),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					page, empty, err := pageFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					res, err := b.svc.AllOrders(p.Context, orderFilterArg(p.Args), stringList(p.Args["orderBy"]), page)
					if err != nil {
						return nil, err
					}
					return connection(res.Items, res.TotalCount, page, empty), nil
				},
			},
		},
	})
}

func (b *schemaBuilder) payloadType(name, entityField string, entity graphql.Output) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: name,
		Fields: graphql.Fields{
			entityField: &graphql.Field{Type: entity},
			"message":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"success":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		},
	})
}

func (b *schemaBuilder) mutationType() *graphql.Object {
	bulkPayload := graphql.NewObject(graphql.ObjectConfig{
		Name: "BulkCreateCustomersPayload",
		Fields: graphql.Fields{
			"customers": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(b.customerType))},
			"errors":    &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.String))},
			"success":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		},
	})
	lowStockPayload := graphql.NewObject(graphql.ObjectConfig{
		Name: "UpdateLowStockProductsPayload",
		Fields: graphql.Fields{
			"updatedProducts": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(b.productType))},
			"count":           &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"message":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"success":         &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		},
	})

	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createCustomer": &graphql.Field{
				Type: b.payloadType("CreateCustomerPayload", "customer", b.customerType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(b.customerInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					res := b.svc.CreateCustomer(p.Context, customerInputArg(inputObject(p.Args, "input")))
					return map[string]interface{}{
						"customer": entityOrNil(res.Customer),
						"message":  res.Message,
						"success":  res.Success,
					}, nil
				},
			},
			"bulkCreateCustomers": &graphql.Field{
				Type: bulkPayload,
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.customerInput)))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					raw, _ := p.Args["input"].([]interface{})
					inputs := make([]crm.CustomerInput, 0, len(raw))
					for _, item := range raw {
						m, _ := item.(map[string]interface{})
						inputs = append(inputs, customerInputArg(m))
					}
					res := b.svc.BulkCreateCustomers(p.Context, inputs)
					return map[string]interface{}{
						"customers": nonNilSlice(res.Customers),
						"errors":    nonNilSlice(res.Errors),
						"success":   res.Success,
					}, nil
				},
			},
			"createProduct": &graphql.Field{
				Type: b.payloadType("CreateProductPayload", "product", b.productType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(b.productInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					res := b.svc.CreateProduct(p.Context, productInputArg(inputObject(p.Args, "input")))
					return map[string]interface{}{
						"product": entityOrNil(res.Product),
						"message": res.Message,
						"success": res.Success,
					}, nil
				},
			},
			"createOrder": &graphql.Field{
				Type: b.payloadType("CreateOrderPayload", "order", b.orderType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(b.orderInput)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					res := b.svc.CreateOrder(p.Context, orderInputArg(inputObject(p.Args, "input")))
					return map[string]interface{}{
						"order":   entityOrNil(res.Order),
						"message": res.Message,
						"success": res.Success,
					}, nil
				},
			},
			"updateLowStockProducts": &graphql.Field{
				Type: lowStockPayload,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					res := b.svc.UpdateLowStockProducts(p.Context)
					return map[string]interface{}{
						"updatedProducts": nonNilSlice(res.UpdatedProducts),
						"count":           res.Count,
						"message":         res.Message,
						"success":         res.Success,
					}, nil
				},
			},
		},
	})
}

// entityOrNil разыменовывает указатель, чтобы отсутствующая сущность стала null.
func entityOrNil[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

package crm_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

func seedProducts(t *testing.T, svc *crm.Service, stocks map[string]int) {
	t.Helper()
	for name, stock := range stocks {
		res := svc.CreateProduct(context.Background(), crm.ProductInput{
			Name:  name,
			Price: decimal.RequireFromString("10.00"),
			Stock: intPtr(stock),
		})
		require.True(t, res.Success)
	}
}

func TestAllProducts_StockGteIndependentOfOrdering(t *testing.T) {
	svc := newTestService(t, memory.NewStore())
	seedProducts(t, svc, map[string]int{"A": 0, "B": 9, "C": 10, "D": 11, "E": 100})
	ctx := context.Background()

	gte := 10
	filter := domain.ProductFilter{StockGte: &gte}

	collect := func(orderBy []string) map[string]bool {
		res, err := svc.AllProducts(ctx, filter, orderBy, domain.Page{})
		require.NoError(t, err)
		require.Equal(t, 3, res.TotalCount)
		names := make(map[string]bool, len(res.Items))
		for _, p := range res.Items {
			require.GreaterOrEqual(t, p.Stock, 10)
			names[p.Name] = true
		}
		return names
	}

	expected := map[string]bool{"C": true, "D": true, "E": true}
	require.Equal(t, expected, collect(nil))
	require.Equal(t, expected, collect([]string{"-stock"}))
	require.Equal(t, expected, collect([]string{"name", "-createdAt"}))
}

func TestAllProducts_OrderingAndPaging(t *testing.T) {
	svc := newTestService(t, memory.NewStore())
	seedProducts(t, svc, map[string]int{"A": 1, "B": 2, "C": 3})

	res, err := svc.AllProducts(context.Background(), domain.ProductFilter{}, []string{"-stock"}, domain.Page{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalCount)
	require.Len(t, res.Items, 2)
	require.Equal(t, "B", res.Items[0].Name)
	require.Equal(t, "A", res.Items[1].Name)
}

func TestAllQueries_UnknownOrderField(t *testing.T) {
	svc := newTestService(t, memory.NewStore())
	ctx := context.Background()

	_, err := svc.AllCustomers(ctx, domain.CustomerFilter{}, []string{"-salary"}, domain.Page{})
	require.Error(t, err)
	require.True(t, domain.IsValidation(err))
	require.Equal(t, "Unknown order field: -salary", err.Error())

	_, err = svc.AllOrders(ctx, domain.OrderFilter{}, []string{"price"}, domain.Page{})
	require.Error(t, err)
	require.Equal(t, "Unknown order field: price", err.Error())
}

func TestAllOrders_FilterByCustomerAndProductName(t *testing.T) {
	svc := newTestService(t, memory.NewStore())
	fx := seedOrderFixture(t, svc)
	ctx := context.Background()

	other := svc.CreateCustomer(ctx, crm.CustomerInput{Name: "Jane Smith", Email: "jane@example.com"})
	require.True(t, other.Success)

	require.True(t, svc.CreateOrder(ctx, crm.OrderInput{CustomerID: fx.customerID, ProductIDs: []string{fx.laptop}}).Success)
	require.True(t, svc.CreateOrder(ctx, crm.OrderInput{CustomerID: other.Customer.ID, ProductIDs: []string{fx.mouse, fx.keyboard}}).Success)

	res, err := svc.AllOrders(ctx, domain.OrderFilter{CustomerName: "jane"}, nil, domain.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	require.Equal(t, other.Customer.ID, res.Items[0].CustomerID)

	res, err = svc.AllOrders(ctx, domain.OrderFilter{ProductName: "LAP"}, nil, domain.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	require.Equal(t, fx.customerID, res.Items[0].CustomerID)

	minTotal := decimal.RequireFromString("100")
	res, err = svc.AllOrders(ctx, domain.OrderFilter{TotalAmountGte: &minTotal}, []string{"-totalAmount"}, domain.Page{})
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalCount)
	require.True(t, res.Items[0].TotalAmount.Equal(decimal.RequireFromString("999.99")))

	customer, err := svc.Customer(ctx, res.Items[0].CustomerID)
	require.NoError(t, err)
	require.Equal(t, "John Doe", customer.Name)

	products, err := svc.ProductsByIDs(ctx, res.Items[1].ProductIDs)
	require.NoError(t, err)
	require.Len(t, products, 2)
}

func TestAllCustomers_FilterByEmail(t *testing.T) {
	svc := newTestService(t, memory.NewStore())
	ctx := context.Background()

	for _, in := range []crm.CustomerInput{
		{Name: "Alice", Email: "alice@corp.com"},
		{Name: "Bob", Email: "bob@home.net"},
	} {
		require.True(t, svc.CreateCustomer(ctx, in).Success)
	}

	res, err := svc.AllCustomers(ctx, domain.CustomerFilter{EmailContains: "CORP"}, []string{"-created_at"}, domain.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	require.Equal(t, "Alice", res.Items[0].Name)
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

func seedCRMFixtures(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	customers := []domain.Customer{
		{ID: "c-1", Name: "Alice", Email: "alice@example.com", Phone: "+1234567890", CreatedAt: base},
		{ID: "c-2", Name: "Bob", Email: "bob@example.com", CreatedAt: base.Add(time.Minute)},
	}
	for _, c := range customers {
		require.NoError(t, store.Customers().Create(ctx, c))
	}

	products := []domain.Product{
		{ID: "p-1", Name: "Laptop", Price: decimal.RequireFromString("999.99"), Stock: 3, CreatedAt: base},
		{ID: "p-2", Name: "Mouse", Price: decimal.RequireFromString("29.99"), Stock: 50, CreatedAt: base.Add(time.Minute)},
		{ID: "p-3", Name: "Keyboard", Price: decimal.RequireFromString("79.99"), Stock: 0, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, p := range products {
		require.NoError(t, store.Products().Create(ctx, p))
	}

	orders := []domain.Order{
		{ID: "o-1", CustomerID: "c-1", ProductIDs: []string{"p-1", "p-2"}, TotalAmount: decimal.RequireFromString("1029.98"), OrderDate: base, CreatedAt: base},
		{ID: "o-2", CustomerID: "c-2", ProductIDs: []string{"p-3"}, TotalAmount: decimal.RequireFromString("79.99"), OrderDate: base.Add(time.Hour), CreatedAt: base.Add(time.Hour)},
	}
	for _, o := range orders {
		require.NoError(t, store.Orders().Create(ctx, o))
	}
}

func TestCustomerRepository_PostgresFlow(t *testing.T) {
	store := testStore(t)
	seedCRMFixtures(t, store)
	ctx := context.Background()

	err := store.Customers().Create(ctx, domain.Customer{ID: "c-3", Name: "Dup", Email: "alice@example.com", CreatedAt: time.Now().UTC()})
	require.ErrorIs(t, err, domain.ErrEmailTaken)

	exists, err := store.Customers().ExistsByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.True(t, exists)

	got, err := store.Customers().Get(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, "+1234567890", got.Phone)

	_, err = store.Customers().Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)

	items, total, err := store.Customers().List(ctx, domain.CustomerFilter{EmailContains: "EXAMPLE"},
		domain.Ordering{{Field: domain.FieldName, Desc: true}}, domain.Page{Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, items, 1)
	require.Equal(t, "Bob", items[0].Name)
}

func TestProductRepository_PostgresFlow(t *testing.T) {
	store := testStore(t)
	seedCRMFixtures(t, store)
	ctx := context.Background()

	low, err := store.Products().ListLowStock(ctx, domain.LowStockThreshold)
	require.NoError(t, err)
	require.Len(t, low, 2)
	require.Equal(t, "p-1", low[0].ID)
	require.True(t, low[0].Price.Equal(decimal.RequireFromString("999.99")))

	require.NoError(t, store.Products().UpdateStock(ctx, "p-1", 13))
	require.ErrorIs(t, store.Products().UpdateStock(ctx, "missing", 1), domain.ErrProductNotFound)

	minPrice := decimal.RequireFromString("50")
	items, total, err := store.Products().List(ctx, domain.ProductFilter{PriceGte: &minPrice},
		domain.Ordering{{Field: domain.FieldPrice}}, domain.Page{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, []string{"p-3", "p-1"}, []string{items[0].ID, items[1].ID})

	byIDs, err := store.Products().ListByIDs(ctx, []string{"p-2", "missing", "p-1"})
	require.NoError(t, err)
	require.Len(t, byIDs, 2)
	require.Equal(t, "p-2", byIDs[0].ID)
}

func TestOrderRepository_PostgresFlow(t *testing.T) {
	store := testStore(t)
	seedCRMFixtures(t, store)
	ctx := context.Background()

	order, err := store.Orders().Get(ctx, "o-1")
	require.NoError(t, err)
	require.Equal(t, []string{"p-1", "p-2"}, order.ProductIDs)
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("1029.98")))

	items, total, err := store.Orders().List(ctx, domain.OrderFilter{ProductName: "key"}, nil, domain.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "o-2", items[0].ID)

	items, total, err = store.Orders().List(ctx, domain.OrderFilter{CustomerName: "ALI"},
		domain.Ordering{{Field: domain.FieldOrderDate, Desc: true}}, domain.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "o-1", items[0].ID)

	err = store.Orders().Create(ctx, domain.Order{
		ID: "o-3", CustomerID: "c-1", ProductIDs: []string{"nope"},
		TotalAmount: decimal.Zero, OrderDate: time.Now().UTC(), CreatedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestStore_PostgresWithinTxRollback(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := store.WithinTx(ctx, func(tx domain.Store) error {
		if err := tx.Customers().Create(ctx, domain.Customer{ID: "c-tx", Name: "Tx", Email: "tx@example.com", CreatedAt: time.Now().UTC()}); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	_, err = store.Customers().Get(ctx, "c-tx")
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

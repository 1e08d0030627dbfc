package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/client/graphql"
	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	graphqlsvc "github.com/vladislavdragonenkov/crm/internal/service/graphql"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

func newServer(t *testing.T, withIdempotency bool) (*crm.Service, *httptest.Server) {
	t.Helper()

	quiet := log.New()
	quiet.SetLevel(log.PanicLevel)
	logger := log.NewEntry(quiet)

	svc := crm.NewService(memory.NewStore(), metrics.NewCRMMetricsWithRegisterer(prometheus.NewRegistry()), logger)
	schema, err := graphqlsvc.NewSchema(svc)
	require.NoError(t, err)

	cfg := graphqlsvc.RouterConfig{Handler: graphqlsvc.NewHandler(schema, logger), Logger: logger}
	if withIdempotency {
		cfg.Idempotency = graphqlsvc.NewIdempotencyMiddleware(memory.NewIdempotencyRepository(), 0, logger)
	}
	srv := httptest.NewServer(graphqlsvc.NewRouter(cfg))
	t.Cleanup(srv.Close)
	return svc, srv
}

func TestSeed_CreatesSampleData(t *testing.T) {
	svc, srv := newServer(t, true)
	var out bytes.Buffer

	require.NoError(t, seed(context.Background(), graphql.New(srv.URL+"/graphql"), &out))

	customers, err := svc.Customers(context.Background())
	require.NoError(t, err)
	assert.Len(t, customers, 3)

	orders, err := svc.AllOrders(context.Background(), domain.OrderFilter{}, []string{"total_amount"}, domain.Page{})
	require.NoError(t, err)
	require.Equal(t, 2, orders.TotalCount)
	assert.Equal(t, "109.98", orders.Items[0].TotalAmount.StringFixed(2))
	assert.Equal(t, "1029.98", orders.Items[1].TotalAmount.StringFixed(2))

	assert.True(t, strings.HasSuffix(out.String(), "Database seeded successfully!\n"))
}

func TestSeed_RerunReplaysWithIdempotencyKeys(t *testing.T) {
	svc, srv := newServer(t, true)
	client := graphql.New(srv.URL + "/graphql")

	require.NoError(t, seed(context.Background(), client, &bytes.Buffer{}))
	require.NoError(t, seed(context.Background(), client, &bytes.Buffer{}))

	orders, err := svc.Orders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestSeed_RerunSkipsExistingWithoutIdempotency(t *testing.T) {
	svc, srv := newServer(t, false)
	client := graphql.New(srv.URL + "/graphql")
	ctx := context.Background()

	require.NoError(t, seed(ctx, client, &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, seed(ctx, client, &out))
	assert.Contains(t, out.String(), "customer john@example.com already exists, skipped")
	assert.Contains(t, out.String(), "product Laptop already exists, skipped")
	assert.Contains(t, out.String(), "order-2 already exists, skipped")

	customers, err := svc.Customers(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 3)
	products, err := svc.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 3)
	orders, err := svc.Orders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestSeed_ReusesPreexistingCustomer(t *testing.T) {
	svc, srv := newServer(t, false)
	ctx := context.Background()

	existing := svc.CreateCustomer(ctx, crm.CustomerInput{Name: "Johnny", Email: "john@example.com"})
	require.True(t, existing.Success)

	require.NoError(t, seed(ctx, graphql.New(srv.URL+"/graphql"), &bytes.Buffer{}))

	customers, err := svc.Customers(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 3)

	orders, err := svc.AllOrders(ctx, domain.OrderFilter{CustomerName: "Johnny"}, nil, domain.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, orders.TotalCount)
	assert.Equal(t, existing.Customer.ID, orders.Items[0].CustomerID)
}

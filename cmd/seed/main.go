package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/crm/internal/client/graphql"
)

const defaultTimeout = 30 * time.Second

// doer — часть GraphQL-клиента, нужная сидеру.
type doer interface {
	Do(ctx context.Context, req graphql.Request, out any) error
}

type seedCustomer struct {
	key   string
	name  string
	email string
	phone string
}

type seedProduct struct {
	key   string
	name  string
	price string
	stock int
}

var (
	seedCustomers = []seedCustomer{
		{key: "john", name: "John Doe", email: "john@example.com", phone: "+1234567890"},
		{key: "jane", name: "Jane Smith", email: "jane@example.com", phone: "123-456-7890"},
		{key: "bob", name: "Bob Johnson", email: "bob@example.com"},
	}
	seedProducts = []seedProduct{
		{key: "laptop", name: "Laptop", price: "999.99", stock: 10},
		{key: "mouse", name: "Mouse", price: "29.99", stock: 50},
		{key: "keyboard", name: "Keyboard", price: "79.99", stock: 25},
	}
	// Заказы: клиент и товары по ключам выше.
	seedOrders = []struct {
		key      string
		customer string
		products []string
	}{
		{key: "order-1", customer: "john", products: []string{"laptop", "mouse"}},
		{key: "order-2", customer: "jane", products: []string{"mouse", "keyboard"}},
	}
)

const (
	createCustomerMutation = `mutation($input: CustomerInput!) {
  createCustomer(input: $input) { customer { id } message success }
}`
	createProductMutation = `mutation($input: ProductInput!) {
  createProduct(input: $input) { product { id } message success }
}`
	createOrderMutation = `mutation($input: OrderInput!) {
  createOrder(input: $input) { order { id totalAmount } message success }
}`
)

const (
	findCustomerQuery = `query($email: String!) {
  allCustomers(filter: {emailIcontains: $email}) { edges { node { id email } } }
}`
	findProductQuery = `query($name: String!) {
  allProducts(filter: {nameIcontains: $name}, orderBy: ["created_at"]) { edges { node { id name } } }
}`
	findOrdersQuery = `query($customer: String!) {
  allOrders(filter: {customerName: $customer}) {
    edges { node { id totalAmount customer { id } products { id } } }
  }
}`
)

type mutationResult struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func main() {
	_ = godotenv.Load()

	var endpoint string
	flag.StringVar(&endpoint, "endpoint", "", "GraphQL endpoint (fallback: "+graphql.EndpointEnv+")")
	flag.Parse()
	if strings.TrimSpace(endpoint) == "" {
		endpoint = os.Getenv(graphql.EndpointEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := seed(ctx, graphql.New(endpoint), os.Stdout); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
}

// seed создаёт демонстрационные данные через API. Уже существующие записи
// (по email клиента, имени товара, клиенту и составу заказа) пропускаются, а каждый
// запрос несёт Idempotency-Key, поэтому повторный запуск безопасен.
func seed(ctx context.Context, client doer, out io.Writer) error {
	customerIDs := make(map[string]string, len(seedCustomers))
	for _, c := range seedCustomers {
		id, err := findCustomer(ctx, client, c.email)
		if err != nil {
			return fmt.Errorf("find customer %s: %w", c.name, err)
		}
		if id == "" {
			if id, err = createCustomer(ctx, client, c); err != nil {
				return fmt.Errorf("create customer %s: %w", c.name, err)
			}
		} else {
			_, _ = fmt.Fprintf(out, "customer %s already exists, skipped\n", c.email)
		}
		customerIDs[c.key] = id
	}

	productIDs := make(map[string]string, len(seedProducts))
	for _, p := range seedProducts {
		id, err := findProduct(ctx, client, p.name)
		if err != nil {
			return fmt.Errorf("find product %s: %w", p.name, err)
		}
		if id == "" {
			if id, err = createProduct(ctx, client, p); err != nil {
				return fmt.Errorf("create product %s: %w", p.name, err)
			}
		} else {
			_, _ = fmt.Fprintf(out, "product %s already exists, skipped\n", p.name)
		}
		productIDs[p.key] = id
	}

	customerNames := make(map[string]string, len(seedCustomers))
	for _, c := range seedCustomers {
		customerNames[c.key] = c.name
	}

	for _, o := range seedOrders {
		ids := make([]string, 0, len(o.products))
		for _, key := range o.products {
			ids = append(ids, productIDs[key])
		}
		existing, err := findOrder(ctx, client, customerNames[o.customer], customerIDs[o.customer], ids)
		if err != nil {
			return fmt.Errorf("find %s: %w", o.key, err)
		}
		if existing != "" {
			_, _ = fmt.Fprintf(out, "%s already exists, skipped\n", o.key)
			continue
		}

		input := map[string]any{"customerId": customerIDs[o.customer], "productIds": ids}
		var resp struct {
			CreateOrder struct {
				mutationResult
				Order *struct {
					ID          string `json:"id"`
					TotalAmount string `json:"totalAmount"`
				} `json:"order"`
			} `json:"createOrder"`
		}
		if err := mutate(ctx, client, "seed-"+o.key, createOrderMutation, input, &resp, &resp.CreateOrder.mutationResult); err != nil {
			return fmt.Errorf("create %s: %w", o.key, err)
		}
		_, _ = fmt.Fprintf(out, "%s: %s total %s\n", o.key, resp.CreateOrder.Order.ID, resp.CreateOrder.Order.TotalAmount)
	}

	_, err := fmt.Fprintln(out, "Database seeded successfully!")
	return err
}

type idNode struct {
	ID string `json:"id"`
}

func createCustomer(ctx context.Context, client doer, c seedCustomer) (string, error) {
	input := map[string]any{"name": c.name, "email": c.email}
	if c.phone != "" {
		input["phone"] = c.phone
	}
	var resp struct {
		CreateCustomer struct {
			mutationResult
			Customer *idNode `json:"customer"`
		} `json:"createCustomer"`
	}
	if err := mutate(ctx, client, "seed-customer-"+c.key, createCustomerMutation, input, &resp, &resp.CreateCustomer.mutationResult); err != nil {
		return "", err
	}
	return resp.CreateCustomer.Customer.ID, nil
}

func createProduct(ctx context.Context, client doer, p seedProduct) (string, error) {
	input := map[string]any{"name": p.name, "price": p.price, "stock": p.stock}
	var resp struct {
		CreateProduct struct {
			mutationResult
			Product *idNode `json:"product"`
		} `json:"createProduct"`
	}
	if err := mutate(ctx, client, "seed-product-"+p.key, createProductMutation, input, &resp, &resp.CreateProduct.mutationResult); err != nil {
		return "", err
	}
	return resp.CreateProduct.Product.ID, nil
}

// findCustomer ищет клиента с точно совпадающим email; пустой ID — не найден.
func findCustomer(ctx context.Context, client doer, email string) (string, error) {
	var resp struct {
		AllCustomers struct {
			Edges []struct {
				Node struct {
					ID    string `json:"id"`
					Email string `json:"email"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"allCustomers"`
	}
	if err := client.Do(ctx, graphql.Request{Query: findCustomerQuery, Variables: map[string]any{"email": email}}, &resp); err != nil {
		return "", err
	}
	for _, e := range resp.AllCustomers.Edges {
		if e.Node.Email == email {
			return e.Node.ID, nil
		}
	}
	return "", nil
}

// findProduct возвращает самый ранний товар с точно совпадающим именем.
func findProduct(ctx context.Context, client doer, name string) (string, error) {
	var resp struct {
		AllProducts struct {
			Edges []struct {
				Node struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"allProducts"`
	}
	if err := client.Do(ctx, graphql.Request{Query: findProductQuery, Variables: map[string]any{"name": name}}, &resp); err != nil {
		return "", err
	}
	for _, e := range resp.AllProducts.Edges {
		if e.Node.Name == name {
			return e.Node.ID, nil
		}
	}
	return "", nil
}

// findOrder ищет заказ клиента с тем же набором товаров.
func findOrder(ctx context.Context, client doer, customerName, customerID string, productIDs []string) (string, error) {
	var resp struct {
		AllOrders struct {
			Edges []struct {
				Node struct {
					ID       string   `json:"id"`
					Customer *idNode  `json:"customer"`
					Products []idNode `json:"products"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"allOrders"`
	}
	if err := client.Do(ctx, graphql.Request{Query: findOrdersQuery, Variables: map[string]any{"customer": customerName}}, &resp); err != nil {
		return "", err
	}

	want := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		want[id] = struct{}{}
	}
	for _, e := range resp.AllOrders.Edges {
		if e.Node.Customer == nil || e.Node.Customer.ID != customerID || len(e.Node.Products) != len(want) {
			continue
		}
		same := true
		for _, p := range e.Node.Products {
			if _, ok := want[p.ID]; !ok {
				same = false
				break
			}
		}
		if same {
			return e.Node.ID, nil
		}
	}
	return "", nil
}

func mutate(ctx context.Context, client doer, key, query string, input map[string]any, out any, result *mutationResult) error {
	err := client.Do(ctx, graphql.Request{
		Query:          query,
		Variables:      map[string]any{"input": input},
		IdempotencyKey: key,
	}, out)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s", result.Message)
	}
	return nil
}

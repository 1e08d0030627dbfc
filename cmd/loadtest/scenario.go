package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/client/graphql"
)

// Исходы вызова в отчёте; HTTP-ошибки попадают туда как HTTP_<code>.
const (
	outcomeOK         = "OK"
	outcomeRejected   = "REJECTED"
	outcomePartial    = "PARTIAL"
	outcomeGraphQL    = "GRAPHQL_ERROR"
	outcomeTimeout    = "TIMEOUT"
	outcomeConnection = "TRANSPORT"
)

const (
	createCustomerMutation = `mutation($input: CustomerInput!) {
  createCustomer(input: $input) { customer { id } message success }
}`
	bulkCreateCustomersMutation = `mutation($input: [CustomerInput!]!) {
  bulkCreateCustomers(input: $input) { customers { id } errors success }
}`
	createProductMutation = `mutation($input: ProductInput!) {
  createProduct(input: $input) { product { id } message success }
}`
	createOrderMutation = `mutation($input: OrderInput!) {
  createOrder(input: $input) { order { id totalAmount } message success }
}`
	recentOrdersQuery = `query($first: Int) {
  allOrders(orderBy: ["-order_date"], first: $first) {
    totalCount
    edges { node { id totalAmount } }
  }
}`
)

// doer — часть GraphQL-клиента, нужная нагрузочному тесту.
type doer interface {
	Do(ctx context.Context, req graphql.Request, out any) error
}

// rejectedError — мутация вернула success=false.
type rejectedError struct{ message string }

func (e *rejectedError) Error() string { return "mutation rejected: " + e.message }

// partialError — bulkCreateCustomers создал не всех клиентов.
type partialError struct{ errors []string }

func (e *partialError) Error() string {
	return fmt.Sprintf("bulk create: %d entries failed: %s", len(e.errors), strings.Join(e.errors, "; "))
}

func outcomeOf(err error) string {
	var (
		statusErr  *graphql.HTTPStatusError
		respErr    *graphql.ResponseError
		rejected   *rejectedError
		partialErr *partialError
	)
	switch {
	case err == nil:
		return outcomeOK
	case errors.As(err, &statusErr):
		return fmt.Sprintf("HTTP_%d", statusErr.StatusCode)
	case errors.As(err, &respErr):
		return outcomeGraphQL
	case errors.As(err, &rejected):
		return outcomeRejected
	case errors.As(err, &partialErr):
		return outcomePartial
	case errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout
	default:
		return outcomeConnection
	}
}

// loadRun — состояние одного прогона: клиент, фикстуры и накопленная статистика.
type loadRun struct {
	cfg    config
	client doer
	rec    *recorder

	customerID string
	productID  string
}

// runLoad создаёт фикстуры и гоняет сценарии в cfg.concurrency воркерах.
func runLoad(ctx context.Context, cfg config, client doer) (report, error) {
	run := &loadRun{cfg: cfg, client: client, rec: newRecorder()}
	if cfg.mode == modeOrder || cfg.mode == modeOrderQuery {
		if err := run.createFixtures(ctx); err != nil {
			return report{}, err
		}
	}

	started := time.Now()
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for range cfg.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				run.scenario(ctx, i)
			}
		}()
	}
	dispatchJobs(jobs, cfg)
	wg.Wait()

	return run.rec.report(cfg, started, time.Since(started)), nil
}

// dispatchJobs выдаёт номера сценариев до total или до истечения duration.
func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}
	bounded := cfg.duration <= 0 || cfg.totalSet

	for i := 0; !bounded || i < cfg.total; i++ {
		select {
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

func (r *loadRun) createFixtures(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*r.cfg.timeout)
	defer cancel()

	var err error
	r.customerID, err = r.create(ctx, "createCustomer", "customer", createCustomerMutation,
		map[string]any{"name": "Load Test", "email": fmt.Sprintf("load-%s@example.com", r.cfg.runTag)},
		"lt-setup-customer-"+r.cfg.runTag)
	if err != nil {
		return fmt.Errorf("create fixture customer: %w", err)
	}
	r.productID, err = r.create(ctx, "createProduct", "product", createProductMutation,
		map[string]any{"name": "Load Test Product " + r.cfg.runTag, "price": r.cfg.price, "stock": 1000},
		"lt-setup-product-"+r.cfg.runTag)
	if err != nil {
		return fmt.Errorf("create fixture product: %w", err)
	}
	return nil
}

func (r *loadRun) scenario(ctx context.Context, i int) {
	start := time.Now()
	var err error
	switch r.cfg.mode {
	case modeCustomer:
		_, err = r.timed(ctx, "createCustomer", func(ctx context.Context) (string, error) {
			return r.create(ctx, "createCustomer", "customer", createCustomerMutation,
				r.customerInput(i, 0), fmt.Sprintf("lt-customer-%s-%d", r.cfg.runTag, i))
		})
	case modeBulkCustomer:
		_, err = r.timed(ctx, "bulkCreateCustomers", func(ctx context.Context) (string, error) {
			return "", r.bulkCreate(ctx, i)
		})
	default:
		_, err = r.timed(ctx, "createOrder", func(ctx context.Context) (string, error) {
			return r.create(ctx, "createOrder", "order", createOrderMutation,
				map[string]any{"customerId": r.customerID, "productIds": []string{r.productID}},
				fmt.Sprintf("lt-order-%s-%d", r.cfg.runTag, i))
		})
		if err == nil && r.cfg.mode == modeOrderQuery {
			_, err = r.timed(ctx, "allOrders", func(ctx context.Context) (string, error) {
				return "", r.client.Do(ctx, graphql.Request{
					Query:     recentOrdersQuery,
					Variables: map[string]any{"first": r.cfg.pageSize},
				}, nil)
			})
		}
	}
	r.rec.observe(opScenario, time.Since(start), outcomeOf(err))
}

// timed выполняет одну операцию с таймаутом и записывает её исход.
func (r *loadRun) timed(ctx context.Context, op string, fn func(context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.timeout)
	defer cancel()

	start := time.Now()
	id, err := fn(ctx)
	r.rec.observe(op, time.Since(start), outcomeOf(err))
	return id, err
}

func (r *loadRun) customerInput(i, j int) map[string]any {
	return map[string]any{
		"name":  fmt.Sprintf("Load %d-%d", i, j),
		"email": fmt.Sprintf("load-%s-%d-%d@example.com", r.cfg.runTag, i, j),
		"phone": fmt.Sprintf("+1555%07d", (i*r.cfg.batch+j)%10_000_000),
	}
}

// create выполняет create-мутацию и возвращает id созданной записи.
func (r *loadRun) create(ctx context.Context, field, entity, query string, input map[string]any, key string) (string, error) {
	var data map[string]json.RawMessage
	err := r.client.Do(ctx, graphql.Request{
		Query:          query,
		Variables:      map[string]any{"input": input},
		IdempotencyKey: key,
	}, &data)
	if err != nil {
		return "", err
	}
	return createdID(data[field], entity)
}

func (r *loadRun) bulkCreate(ctx context.Context, i int) error {
	inputs := make([]map[string]any, r.cfg.batch)
	for j := range inputs {
		inputs[j] = r.customerInput(i, j)
	}

	var data struct {
		Bulk struct {
			Errors []string `json:"errors"`
		} `json:"bulkCreateCustomers"`
	}
	err := r.client.Do(ctx, graphql.Request{
		Query:          bulkCreateCustomersMutation,
		Variables:      map[string]any{"input": inputs},
		IdempotencyKey: fmt.Sprintf("lt-bulk-%s-%d", r.cfg.runTag, i),
	}, &data)
	if err != nil {
		return err
	}
	if len(data.Bulk.Errors) > 0 {
		return &partialError{errors: data.Bulk.Errors}
	}
	return nil
}

// createdID достаёт id сущности из payload вида {entity {id} message success}.
func createdID(raw json.RawMessage, entity string) (string, error) {
	var payload struct {
		Message string `json:"message"`
		Success bool   `json:"success"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode mutation payload: %w", err)
	}
	if !payload.Success {
		return "", &rejectedError{message: payload.Message}
	}

	var fields map[string]json.RawMessage
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("decode mutation payload: %w", err)
	}
	if err := json.Unmarshal(fields[entity], &created); err != nil || created.ID == "" {
		return "", fmt.Errorf("mutation response has no %s id", entity)
	}
	return created.ID, nil
}

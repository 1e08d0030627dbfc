package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
)

// Сообщения об успешных мутациях.
const (
	msgCustomerCreated = "Customer created successfully"
	msgProductCreated  = "Product created successfully"
	msgOrderCreated    = "Order created successfully"
	msgNoRestock       = "No products needed restocking"

	bulkInvalidPhone = "Invalid phone format"
)

// CustomerInput — входные данные для создания клиента. Пустой Phone означает "не указан".
type CustomerInput struct {
	Name  string
	Email string
	Phone string
}

// ProductInput — входные данные для создания товара. Stock == nil означает 0.
// Цена округляется до копеек, как NUMERIC(12,2) в PostgreSQL.
type ProductInput struct {
	Name  string
	Price decimal.Decimal
	Stock *int
}

// OrderInput — входные данные для создания заказа. OrderDate == nil означает "сейчас".
type OrderInput struct {
	CustomerID string
	ProductIDs []string
	OrderDate  *time.Time
}

// CustomerResult — результат createCustomer.
type CustomerResult struct {
	Customer *domain.Customer
	Message  string
	Success  bool
}

// BulkCustomersResult — результат bulkCreateCustomers.
type BulkCustomersResult struct {
	Customers []domain.Customer
	Errors    []string
	Success   bool
}

// ProductResult — результат createProduct.
type ProductResult struct {
	Product *domain.Product
	Message string
	Success bool
}

// OrderResult — результат createOrder.
type OrderResult struct {
	Order   *domain.Order
	Message string
	Success bool
}

// LowStockResult — результат updateLowStockProducts.
type LowStockResult struct {
	UpdatedProducts []domain.Product
	Count           int
	Message         string
	Success         bool
}

type customerPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type productPayload struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type restockPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PreviousStock int    `json:"previous_stock"`
	Stock         int    `json:"stock"`
}

type orderPayload struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	ProductIDs  []string        `json:"product_ids"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OrderDate   time.Time       `json:"order_date"`
}

func customerCreatedEvent(c domain.Customer) pendingEvent {
	return pendingEvent{
		aggregateType: domain.AggregateCustomer,
		aggregateID:   c.ID,
		eventType:     domain.EventCustomerCreated,
		payload: customerPayload{
			ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, CreatedAt: c.CreatedAt,
		},
	}
}

// newCustomer обрезает пробелы вокруг имени, email и телефона до валидации.
func (s *Service) newCustomer(in CustomerInput) domain.Customer {
	return domain.Customer{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		CreatedAt: s.now(),
	}
}

// insertCustomer проверяет уникальность email и сохраняет клиента с событием в рамках tx.
func insertCustomer(ctx context.Context, tx domain.Store, customer domain.Customer) error {
	exists, err := tx.Customers().ExistsByEmail(ctx, customer.Email)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrEmailTaken
	}
	if err := tx.Customers().Create(ctx, customer); err != nil {
		return err
	}
	return enqueue(tx, customerCreatedEvent(customer))
}

// CreateCustomer валидирует и создаёт клиента. Ошибки возвращаются в результате.
func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput) CustomerResult {
	done := s.metrics.MutationStarted("createCustomer")

	customer := s.newCustomer(in)
	err := customer.Validate()
	if err == nil {
		err = s.store.WithinTx(ctx, func(tx domain.Store) error {
			return insertCustomer(ctx, tx, customer)
		})
	}
	if err != nil {
		return CustomerResult{Message: s.failure(ctx, "createCustomer", "Error creating customer", err, done)}
	}

	done(metrics.ResultSuccess)
	s.metrics.RecordCustomersCreated(1)
	s.recordEvents(customerCreatedEvent(customer))
	s.logger.WithField("customer_id", customer.ID).Info("customer created")

	return CustomerResult{Customer: &customer, Message: msgCustomerCreated, Success: true}
}

// BulkCreateCustomers создаёт клиентов в одной транзакции. Ошибки отдельных записей
// собираются в Errors, не прерывая обработку; сбой самой транзакции откатывает всю пачку.
func (s *Service) BulkCreateCustomers(ctx context.Context, inputs []CustomerInput) BulkCustomersResult {
	done := s.metrics.MutationStarted("bulkCreateCustomers")

	var (
		created []domain.Customer
		errs    []string
	)
	err := s.store.WithinTx(ctx, func(tx domain.Store) error {
		created = make([]domain.Customer, 0, len(inputs))
		errs = make([]string, 0)

		for i, in := range inputs {
			customer := s.newCustomer(in)
			err := customer.Validate()
			if err == nil {
				// Каждая запись под своим savepoint: сбой одной не ломает остальные.
				err = tx.WithinTx(ctx, func(entry domain.Store) error {
					return insertCustomer(ctx, entry, customer)
				})
			}
			switch {
			case err == nil:
				created = append(created, customer)
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, domain.ErrInvalidPhone):
				errs = append(errs, fmt.Sprintf("Customer %d: %s", i+1, bulkInvalidPhone))
			default:
				if !domain.IsBusiness(err) {
					s.logger.WithContext(ctx).WithError(err).WithField("entry", i+1).Warn("bulk customer entry failed")
				}
				errs = append(errs, fmt.Sprintf("Customer %d: %s", i+1, err.Error()))
			}
		}
		return nil
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("operation", "bulkCreateCustomers").Error("mutation failed")
		done(metrics.ResultFailure)
		return BulkCustomersResult{
			Customers: []domain.Customer{},
			Errors:    []string{fmt.Sprintf("Error creating customers: %v", err)},
		}
	}

	result := BulkCustomersResult{Customers: created, Errors: errs, Success: len(created) > 0}
	if result.Success {
		done(metrics.ResultSuccess)
	} else {
		done(metrics.ResultBusinessError)
	}
	s.metrics.RecordCustomersCreated(len(created))
	for _, c := range created {
		s.recordEvents(customerCreatedEvent(c))
	}
	s.logger.WithFields(log.Fields{
		"created": len(created),
		"failed":  len(errs),
	}).Info("bulk customers processed")

	return result
}

// CreateProduct валидирует и создаёт товар; остаток по умолчанию 0.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) ProductResult {
	done := s.metrics.MutationStarted("createProduct")

	product := domain.Product{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Price:     in.Price.Round(2),
		CreatedAt: s.now(),
	}
	if in.Stock != nil {
		product.Stock = *in.Stock
	}
	event := pendingEvent{
		aggregateType: domain.AggregateProduct,
		aggregateID:   product.ID,
		eventType:     domain.EventProductCreated,
		payload:       productPayload{ID: product.ID, Name: product.Name, Price: product.Price, Stock: product.Stock},
	}

	err := product.Validate()
	if err == nil {
		err = s.store.WithinTx(ctx, func(tx domain.Store) error {
			if err := tx.Products().Create(ctx, product); err != nil {
				return err
			}
			return enqueue(tx, event)
		})
	}
	if err != nil {
		return ProductResult{Message: s.failure(ctx, "createProduct", "Error creating product", err, done)}
	}

	done(metrics.ResultSuccess)
	s.recordEvents(event)
	s.logger.WithField("product_id", product.ID).Info("product created")

	return ProductResult{Product: &product, Message: msgProductCreated, Success: true}
}

// CreateOrder создаёт заказ. Пустой список товаров отклоняется до обращения к хранилищу.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput) OrderResult {
	done := s.metrics.MutationStarted("createOrder")

	if len(in.ProductIDs) == 0 {
		return OrderResult{Message: s.failure(ctx, "createOrder", "Error creating order", domain.ErrProductsRequired, done)}
	}

	now := s.now()
	order := domain.Order{
		ID:         s.newID(),
		CustomerID: strings.TrimSpace(in.CustomerID),
		ProductIDs: domain.UniqueIDs(in.ProductIDs),
		OrderDate:  now,
		CreatedAt:  now,
	}
	if in.OrderDate != nil && !in.OrderDate.IsZero() {
		order.OrderDate = in.OrderDate.UTC()
	}

	var event pendingEvent
	err := s.store.WithinTx(ctx, func(tx domain.Store) error {
		if _, err := tx.Customers().Get(ctx, order.CustomerID); err != nil {
			return err
		}

		products, err := tx.Products().ListByIDs(ctx, order.ProductIDs)
		if err != nil {
			return err
		}
		if len(products) != len(order.ProductIDs) {
			return domain.NewProductNotFoundError(firstMissing(order.ProductIDs, products))
		}
		order.TotalAmount = domain.SumPrices(products)

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		event = pendingEvent{
			aggregateType: domain.AggregateOrder,
			aggregateID:   order.ID,
			eventType:     domain.EventOrderCreated,
			payload: orderPayload{
				ID:          order.ID,
				CustomerID:  order.CustomerID,
				ProductIDs:  order.ProductIDs,
				TotalAmount: order.TotalAmount,
				OrderDate:   order.OrderDate,
			},
		}
		return enqueue(tx, event)
	})
	if err != nil {
		return OrderResult{Message: s.failure(ctx, "createOrder", "Error creating order", err, done)}
	}

	done(metrics.ResultSuccess)
	s.recordEvents(event)
	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"total_amount": order.TotalAmount.StringFixed(2),
	}).Info("order created")

	return OrderResult{Order: &order, Message: msgOrderCreated, Success: true}
}

func firstMissing(ids []string, found []domain.Product) string {
	present := make(map[string]struct{}, len(found))
	for _, p := range found {
		present[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return id
		}
	}
	return ""
}

// UpdateLowStockProducts пополняет на RestockQuantity все товары с остатком ниже порога.
func (s *Service) UpdateLowStockProducts(ctx context.Context) LowStockResult {
	done := s.metrics.MutationStarted("updateLowStockProducts")

	var (
		updated []domain.Product
		events  []pendingEvent
	)
	err := s.store.WithinTx(ctx, func(tx domain.Store) error {
		products, err := tx.Products().ListLowStock(ctx, domain.LowStockThreshold)
		if err != nil {
			return err
		}

		updated = make([]domain.Product, 0, len(products))
		events = make([]pendingEvent, 0, len(products))
		for _, p := range products {
			previous := p.Stock
			p.Stock += domain.RestockQuantity
			if err := tx.Products().UpdateStock(ctx, p.ID, p.Stock); err != nil {
				return err
			}
			updated = append(updated, p)
			events = append(events, pendingEvent{
				aggregateType: domain.AggregateProduct,
				aggregateID:   p.ID,
				eventType:     domain.EventProductRestocked,
				payload:       restockPayload{ID: p.ID, Name: p.Name, PreviousStock: previous, Stock: p.Stock},
			})
		}
		return enqueue(tx, events...)
	})
	if err != nil {
		return LowStockResult{
			UpdatedProducts: []domain.Product{},
			Message:         s.failure(ctx, "updateLowStockProducts", "Error updating low stock products", unexpected(err), done),
		}
	}

	done(metrics.ResultSuccess)
	s.metrics.RecordProductsRestocked(len(updated))
	s.recordEvents(events...)
	s.logger.WithField("count", len(updated)).Info("low stock products updated")

	message := msgNoRestock
	if len(updated) > 0 {
		message = fmt.Sprintf("Updated %d low-stock products", len(updated))
	}
	return LowStockResult{UpdatedProducts: updated, Count: len(updated), Message: message, Success: true}
}

// unexpectedError скрывает категорию ошибки: у операции без входных данных
// любой сбой считается внутренним.
type unexpectedError struct{ err error }

func (e unexpectedError) Error() string { return e.err.Error() }

func unexpected(err error) error { return unexpectedError{err: err} }

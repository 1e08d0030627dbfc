package domain

import "context"

// CustomerRepository описывает требования к хранилищу клиентов.
type CustomerRepository interface {
	// Create сохраняет клиента. Возвращает ErrEmailTaken, если email уже занят.
	Create(ctx context.Context, customer Customer) error
	// Get возвращает клиента или ErrCustomerNotFound.
	Get(ctx context.Context, id string) (Customer, error)
	// ExistsByEmail проверяет, занят ли email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// List возвращает страницу клиентов и общее число совпавших с фильтром записей.
	List(ctx context.Context, filter CustomerFilter, ordering Ordering, page Page) ([]Customer, int, error)
}

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// ListByIDs возвращает найденные товары в порядке ids; отсутствующие пропускаются.
	ListByIDs(ctx context.Context, ids []string) ([]Product, error)
	// ListLowStock возвращает товары с остатком меньше threshold.
	ListLowStock(ctx context.Context, threshold int) ([]Product, error)
	// UpdateStock перезаписывает остаток товара.
	UpdateStock(ctx context.Context, id string, stock int) error
	List(ctx context.Context, filter ProductFilter, ordering Ordering, page Page) ([]Product, int, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе со связями на товары.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, filter OrderFilter, ordering Ordering, page Page) ([]Order, int, error)
}

// OutboxRepository — очередь событий, записанных вместе с мутацией клиента,
// товара или заказа. MarkSent и MarkFailed закрывают только pending-событие.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// Store объединяет репозитории и даёт атомарные единицы работы.
type Store interface {
	Customers() CustomerRepository
	Products() ProductRepository
	Orders() OrderRepository
	Outbox() OutboxRepository
	// WithinTx выполняет fn атомарно: при ошибке fn все изменения откатываются.
	// Вложенный вызов на tx работает как savepoint: ошибка fn откатывает
	// только его изменения, внешняя транзакция продолжается.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// state — все записи in-memory хранилища.
type state struct {
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]domain.Order
	outbox    map[string]*outboxRecord
}

func newState() *state {
	return &state{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
		outbox:    make(map[string]*outboxRecord),
	}
}

func (s *state) clone() *state {
	dst := newState()
	for k, v := range s.customers {
		dst.customers[k] = v
	}
	for k, v := range s.products {
		dst.products[k] = v
	}
	for k, v := range s.orders {
		v.ProductIDs = append([]string(nil), v.ProductIDs...)
		dst.orders[k] = v
	}
	for k, v := range s.outbox {
		rec := *v
		dst.outbox[k] = &rec
	}
	return dst
}

// dataset — состояние, с которым работают репозитории: закоммиченное
// или приватная копия открытой транзакции.
type dataset struct {
	mu sync.RWMutex
	st *state
	// writeMu сериализует запись вне транзакций с WithinTx; nil для копии транзакции.
	writeMu *sync.Mutex
}

// lock берёт блокировку на запись и возвращает функцию её снятия.
func (d *dataset) lock() func() {
	if d.writeMu != nil {
		d.writeMu.Lock()
	}
	d.mu.Lock()
	return func() {
		d.mu.Unlock()
		if d.writeMu != nil {
			d.writeMu.Unlock()
		}
	}
}

func (d *dataset) snapshot() *state {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.st.clone()
}

func (d *dataset) replace(st *state) {
	d.mu.Lock()
	d.st = st
	d.mu.Unlock()
}

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
// Транзакция работает с приватной копией состояния и публикует её при коммите,
// поэтому читатели вне транзакции видят только закоммиченные данные.
type Store struct {
	txMu sync.Mutex
	ds   *dataset
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	s := &Store{}
	s.ds = &dataset{st: newState(), writeMu: &s.txMu}
	return s
}

// Customers возвращает репозиторий клиентов.
func (s *Store) Customers() domain.CustomerRepository { return &customerRepository{ds: s.ds} }

// Products возвращает репозиторий товаров.
func (s *Store) Products() domain.ProductRepository { return &productRepository{ds: s.ds} }

// Orders возвращает репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository { return &orderRepository{ds: s.ds} }

// Outbox возвращает репозиторий transactional outbox.
func (s *Store) Outbox() domain.OutboxRepository { return &outboxRepository{ds: s.ds} }

// Ping всегда успешен для in-memory хранилища.
func (s *Store) Ping(context.Context) error { return nil }

// WithinTx выполняет fn атомарно. Запись вне транзакций ждёт её завершения,
// при ошибке или панике копия просто отбрасывается.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txStore{ds: &dataset{st: s.ds.snapshot()}}
	if err := fn(tx); err != nil {
		return err
	}
	s.ds.replace(tx.ds.st)
	return nil
}

// txStore — представление открытой транзакции. Вложенный WithinTx работает
// как savepoint: ошибка откатывает только его изменения.
type txStore struct {
	ds *dataset
}

func (t *txStore) Customers() domain.CustomerRepository { return &customerRepository{ds: t.ds} }

func (t *txStore) Products() domain.ProductRepository { return &productRepository{ds: t.ds} }

func (t *txStore) Orders() domain.OrderRepository { return &orderRepository{ds: t.ds} }

func (t *txStore) Outbox() domain.OutboxRepository { return &outboxRepository{ds: t.ds} }

func (t *txStore) Ping(context.Context) error { return nil }

func (t *txStore) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nested := &txStore{ds: &dataset{st: t.ds.snapshot()}}
	if err := fn(nested); err != nil {
		return err
	}
	t.ds.replace(nested.ds.st)
	return nil
}

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Store = (*txStore)(nil)
)

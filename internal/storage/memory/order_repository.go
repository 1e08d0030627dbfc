package memory

import (
	"context"
	"strings"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

type orderRepository struct {
	ds *dataset
}

var orderComparators = map[string]comparator[domain.Order]{
	domain.FieldID:          func(a, b domain.Order) int { return strings.Compare(a.ID, b.ID) },
	domain.FieldTotalAmount: func(a, b domain.Order) int { return a.TotalAmount.Cmp(b.TotalAmount) },
	domain.FieldOrderDate:   func(a, b domain.Order) int { return a.OrderDate.Compare(b.OrderDate) },
	domain.FieldCreatedAt:   func(a, b domain.Order) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

// Create сохраняет заказ. Ссылки на клиента и товары проверяются, как это сделал бы внешний ключ.
func (r *orderRepository) Create(_ context.Context, order domain.Order) error {
	defer r.ds.lock()()

	if _, exists := r.ds.st.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	if _, ok := r.ds.st.customers[order.CustomerID]; !ok {
		return domain.ErrCustomerNotFound
	}
	for _, id := range order.ProductIDs {
		if _, ok := r.ds.st.products[id]; !ok {
			return domain.NewProductNotFoundError(id)
		}
	}

	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	order.ProductIDs = append([]string(nil), order.ProductIDs...)
	r.ds.st.orders[order.ID] = order
	return nil
}

func (r *orderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.ds.mu.RLock()
	defer r.ds.mu.RUnlock()

	order, ok := r.ds.st.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.ProductIDs = append([]string(nil), order.ProductIDs...)
	return order, nil
}

func (r *orderRepository) List(_ context.Context, filter domain.OrderFilter, ordering domain.Ordering, page domain.Page) ([]domain.Order, int, error) {
	r.ds.mu.RLock()
	result := make([]domain.Order, 0, len(r.ds.st.orders))
	for _, order := range r.ds.st.orders {
		if !filter.MatchOwnFields(order) || !r.matchRelated(filter, order) {
			continue
		}
		order.ProductIDs = append([]string(nil), order.ProductIDs...)
		result = append(result, order)
	}
	r.ds.mu.RUnlock()

	sortRecords(result, ordering, orderComparators)
	return paginate(result, page), len(result), nil
}

// matchRelated проверяет фильтры по имени клиента и товаров. Вызывается под RLock.
func (r *orderRepository) matchRelated(filter domain.OrderFilter, order domain.Order) bool {
	if filter.CustomerName != "" {
		customer, ok := r.ds.st.customers[order.CustomerID]
		if !ok || !domain.ContainsFold(customer.Name, filter.CustomerName) {
			return false
		}
	}
	if filter.ProductName != "" {
		for _, id := range order.ProductIDs {
			if product, ok := r.ds.st.products[id]; ok && domain.ContainsFold(product.Name, filter.ProductName) {
				return true
			}
		}
		return false
	}
	return true
}

var _ domain.OrderRepository = (*orderRepository)(nil)

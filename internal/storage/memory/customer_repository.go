package memory

import (
	"context"
	"strings"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

type customerRepository struct {
	ds *dataset
}

var customerComparators = map[string]comparator[domain.Customer]{
	domain.FieldID:        func(a, b domain.Customer) int { return strings.Compare(a.ID, b.ID) },
	domain.FieldName:      func(a, b domain.Customer) int { return strings.Compare(a.Name, b.Name) },
	domain.FieldEmail:     func(a, b domain.Customer) int { return strings.Compare(a.Email, b.Email) },
	domain.FieldPhone:     func(a, b domain.Customer) int { return strings.Compare(a.Phone, b.Phone) },
	domain.FieldCreatedAt: func(a, b domain.Customer) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

// Create сохраняет клиента, если ID и email ещё не заняты.
func (r *customerRepository) Create(_ context.Context, customer domain.Customer) error {
	defer r.ds.lock()()

	for _, existing := range r.ds.st.customers {
		if existing.Email == customer.Email {
			return domain.ErrEmailTaken
		}
	}
	if _, exists := r.ds.st.customers[customer.ID]; exists {
		return domain.ErrEmailTaken
	}
	r.ds.st.customers[customer.ID] = customer
	return nil
}

// Get возвращает клиента или ErrCustomerNotFound.
func (r *customerRepository) Get(_ context.Context, id string) (domain.Customer, error) {
	r.ds.mu.RLock()
	defer r.ds.mu.RUnlock()

	customer, ok := r.ds.st.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

// ExistsByEmail проверяет точное совпадение email.
func (r *customerRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.ds.mu.RLock()
	defer r.ds.mu.RUnlock()

	for _, existing := range r.ds.st.customers {
		if existing.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// List фильтрует, сортирует и режет выборку клиентов.
func (r *customerRepository) List(_ context.Context, filter domain.CustomerFilter, ordering domain.Ordering, page domain.Page) ([]domain.Customer, int, error) {
	r.ds.mu.RLock()
	result := make([]domain.Customer, 0, len(r.ds.st.customers))
	for _, customer := range r.ds.st.customers {
		if filter.Match(customer) {
			result = append(result, customer)
		}
	}
	r.ds.mu.RUnlock()

	sortRecords(result, ordering, customerComparators)
	return paginate(result, page), len(result), nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)

package memory

import (
	"cmp"
	"context"
	"strings"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

type productRepository struct {
	ds *dataset
}

var productComparators = map[string]comparator[domain.Product]{
	domain.FieldID:        func(a, b domain.Product) int { return strings.Compare(a.ID, b.ID) },
	domain.FieldName:      func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) },
	domain.FieldPrice:     func(a, b domain.Product) int { return a.Price.Cmp(b.Price) },
	domain.FieldStock:     func(a, b domain.Product) int { return cmp.Compare(a.Stock, b.Stock) },
	domain.FieldCreatedAt: func(a, b domain.Product) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func (r *productRepository) Create(_ context.Context, product domain.Product) error {
	defer r.ds.lock()()

	if _, exists := r.ds.st.products[product.ID]; exists {
		return domain.ErrConflict
	}
	r.ds.st.products[product.ID] = product
	return nil
}

func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	r.ds.mu.RLock()
	defer r.ds.mu.RUnlock()

	product, ok := r.ds.st.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (r *productRepository) ListByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	r.ds.mu.RLock()
	defer r.ds.mu.RUnlock()

	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := r.ds.st.products[id]; ok {
			result = append(result, product)
		}
	}
	return result, nil
}

func (r *productRepository) ListLowStock(_ context.Context, threshold int) ([]domain.Product, error) {
	r.ds.mu.RLock()
	result := make([]domain.Product, 0)
	for _, product := range r.ds.st.products {
		if product.Stock < threshold {
			result = append(result, product)
		}
	}
	r.ds.mu.RUnlock()

	sortRecords(result, nil, productComparators)
	return result, nil
}

func (r *productRepository) UpdateStock(_ context.Context, id string, stock int) error {
	defer r.ds.lock()()

	product, ok := r.ds.st.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.Stock = stock
	r.ds.st.products[id] = product
	return nil
}

func (r *productRepository) List(_ context.Context, filter domain.ProductFilter, ordering domain.Ordering, page domain.Page) ([]domain.Product, int, error) {
	r.ds.mu.RLock()
	result := make([]domain.Product, 0, len(r.ds.st.products))
	for _, product := range r.ds.st.products {
		if filter.Match(product) {
			result = append(result, product)
		}
	}
	r.ds.mu.RUnlock()

	sortRecords(result, ordering, productComparators)
	return paginate(result, page), len(result), nil
}

var _ domain.ProductRepository = (*productRepository)(nil)

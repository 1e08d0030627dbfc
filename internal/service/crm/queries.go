package crm

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// ListResult — страница выборки и общее число записей, совпавших с фильтром.
type ListResult[T any] struct {
	Items      []T
	TotalCount int
}

// Customers возвращает всех клиентов в порядке создания.
func (s *Service) Customers(ctx context.Context) ([]domain.Customer, error) {
	items, _, err := s.store.Customers().List(ctx, domain.CustomerFilter{}, nil, domain.Page{})
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return items, nil
}

// Products возвращает все товары в порядке создания.
func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	items, _, err := s.store.Products().List(ctx, domain.ProductFilter{}, nil, domain.Page{})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return items, nil
}

// Orders возвращает все заказы в порядке создания.
func (s *Service) Orders(ctx context.Context) ([]domain.Order, error) {
	items, _, err := s.store.Orders().List(ctx, domain.OrderFilter{}, nil, domain.Page{})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return items, nil
}

// AllCustomers возвращает отфильтрованную и упорядоченную страницу клиентов.
// Неизвестное поле в orderBy даёт UnknownOrderFieldError.
func (s *Service) AllCustomers(ctx context.Context, filter domain.CustomerFilter, orderBy []string, page domain.Page) (ListResult[domain.Customer], error) {
	ordering, err := domain.ParseOrdering(orderBy, domain.CustomerOrderFields)
	if err != nil {
		return ListResult[domain.Customer]{}, err
	}
	items, total, err := s.store.Customers().List(ctx, filter, ordering, page)
	if err != nil {
		return ListResult[domain.Customer]{}, fmt.Errorf("list customers: %w", err)
	}
	return ListResult[domain.Customer]{Items: items, TotalCount: total}, nil
}

// AllProducts возвращает отфильтрованную и упорядоченную страницу товаров.
func (s *Service) AllProducts(ctx context.Context, filter domain.ProductFilter, orderBy []string, page domain.Page) (ListResult[domain.Product], error) {
	ordering, err := domain.ParseOrdering(orderBy, domain.ProductOrderFields)
	if err != nil {
		return ListResult[domain.Product]{}, err
	}
	items, total, err := s.store.Products().List(ctx, filter, ordering, page)
	if err != nil {
		return ListResult[domain.Product]{}, fmt.Errorf("list products: %w", err)
	}
	return ListResult[domain.Product]{Items: items, TotalCount: total}, nil
}

// AllOrders возвращает отфильтрованную и упорядоченную страницу заказов.
func (s *Service) AllOrders(ctx context.Context, filter domain.OrderFilter, orderBy []string, page domain.Page) (ListResult[domain.Order], error) {
	ordering, err := domain.ParseOrdering(orderBy, domain.OrderOrderFields)
	if err != nil {
		return ListResult[domain.Order]{}, err
	}
	items, total, err := s.store.Orders().List(ctx, filter, ordering, page)
	if err != nil {
		return ListResult[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return ListResult[domain.Order]{Items: items, TotalCount: total}, nil
}

// Customer возвращает клиента по id (для связей заказа).
func (s *Service) Customer(ctx context.Context, id string) (domain.Customer, error) {
	return s.store.Customers().Get(ctx, id)
}

// ProductsByIDs возвращает товары заказа в исходном порядке.
func (s *Service) ProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	return s.store.Products().ListByIDs(ctx, ids)
}

// Ping проверяет доступность хранилища; используется health-checker'ом.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

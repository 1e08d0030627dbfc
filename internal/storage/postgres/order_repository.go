package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const orderColumns = `o.id, o.customer_id, o.total_amount, o.order_date, o.created_at`

var orderOrderColumns = map[string]string{
	domain.FieldID:          "o.id",
	domain.FieldTotalAmount: "o.total_amount",
	domain.FieldOrderDate:   "o.order_date",
	domain.FieldCreatedAt:   "o.created_at",
}

type orderRepository struct {
	q dbtx
}

// Create сохраняет заказ и его связи с товарами; порядок товаров сохраняется в position.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, total_amount, order_date, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, order.ID, order.CustomerID, order.TotalAmount, order.OrderDate, order.CreatedAt)
	if err != nil {
		if code, _ := pgErrorCode(err); code == pgForeignKeyViolation {
			return domain.ErrCustomerNotFound
		}
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, productID := range order.ProductIDs {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO order_products (order_id, product_id, position)
			VALUES ($1,$2,$3)
		`, order.ID, productID, i); err != nil {
			if code, _ := pgErrorCode(err); code == pgForeignKeyViolation {
				return domain.NewProductNotFoundError(productID)
			}
			return fmt.Errorf("insert order product: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	orders := []domain.Order{order}
	if err := r.loadProductIDs(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter, ordering domain.Ordering, page domain.Page) ([]domain.Order, int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var b selectBuilder
	if filter.TotalAmountGte != nil {
		b.where("o.total_amount >= ?", *filter.TotalAmountGte)
	}
	if filter.TotalAmountLte != nil {
		b.where("o.total_amount <= ?", *filter.TotalAmountLte)
	}
	if filter.OrderDateGte != nil {
		b.where("o.order_date >= ?", *filter.OrderDateGte)
	}
	if filter.OrderDateLte != nil {
		b.where("o.order_date <= ?", *filter.OrderDateLte)
	}
	if filter.CustomerName != "" {
		b.where("o.customer_id IN (SELECT c.id FROM customers c WHERE c.name ILIKE ?)", likePattern(filter.CustomerName))
	}
	if filter.ProductName != "" {
		b.where(`EXISTS (
			SELECT 1 FROM order_products op
			JOIN products p ON p.id = op.product_id
			WHERE op.order_id = o.id AND p.name ILIKE ?
		)`, likePattern(filter.ProductName))
	}
	where := b.whereClause()

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders o`+where, b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders o` + where + orderByClause(ordering, orderOrderColumns) + b.pageClause(page)
	rows, err := r.q.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	rows.Close()

	if err := r.loadProductIDs(ctx, result); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// loadProductIDs одним запросом подгружает связи заказов с товарами.
func (r *orderRepository) loadProductIDs(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		index[o.ID] = i
		orders[i].ProductIDs = []string{}
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT order_id, product_id
		FROM order_products
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("select order products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID, productID string
		if err := rows.Scan(&orderID, &productID); err != nil {
			return fmt.Errorf("scan order product: %w", err)
		}
		i := index[orderID]
		orders[i].ProductIDs = append(orders[i].ProductIDs, productID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order products: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	if err := row.Scan(&o.ID, &o.CustomerID, &o.TotalAmount, &o.OrderDate, &o.CreatedAt); err != nil {
		return domain.Order{}, err
	}
	o.OrderDate = o.OrderDate.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const productColumns = `id, name, price, stock, created_at`

var productOrderColumns = map[string]string{
	domain.FieldID:        "id",
	domain.FieldName:      "name",
	domain.FieldPrice:     "price",
	domain.FieldStock:     "stock",
	domain.FieldCreatedAt: "created_at",
}

type productRepository struct {
	q dbtx
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, product.ID, product.Name, product.Price, product.Stock, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (r *productRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	found, err := r.query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list products by ids: %w", err)
	}

	byID := make(map[string]domain.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r *productRepository) ListLowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := r.query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE stock < $1
		ORDER BY created_at, id
		FOR UPDATE
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}
	return result, nil
}

func (r *productRepository) UpdateStock(ctx context.Context, id string, stock int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `UPDATE products SET stock = $2 WHERE id = $1`, id, stock)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for product stock: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter, ordering domain.Ordering, page domain.Page) ([]domain.Product, int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var b selectBuilder
	if filter.NameContains != "" {
		b.where("name ILIKE ?", likePattern(filter.NameContains))
	}
	if filter.PriceGte != nil {
		b.where("price >= ?", *filter.PriceGte)
	}
	if filter.PriceLte != nil {
		b.where("price <= ?", *filter.PriceLte)
	}
	if filter.StockGte != nil {
		b.where("stock >= ?", *filter.StockGte)
	}
	if filter.StockLte != nil {
		b.where("stock <= ?", *filter.StockLte)
	}
	if filter.Stock != nil {
		b.where("stock = ?", *filter.Stock)
	}
	where := b.whereClause()

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + orderByClause(ordering, productOrderColumns) + b.pageClause(page)
	result, err := r.query(ctx, query, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return result, total, nil
}

func (r *productRepository) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return result, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const customerColumns = `id, name, email, phone, created_at`

var customerOrderColumns = map[string]string{
	domain.FieldID:        "id",
	domain.FieldName:      "name",
	domain.FieldEmail:     "email",
	domain.FieldPhone:     "phone",
	domain.FieldCreatedAt: "created_at",
}

type customerRepository struct {
	q dbtx
}

func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, customer.ID, customer.Name, customer.Email, customer.Phone, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	customer, err := scanCustomer(r.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE email = $1)`, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check customer email: %w", err)
	}
	return exists, nil
}

func (r *customerRepository) List(ctx context.Context, filter domain.CustomerFilter, ordering domain.Ordering, page domain.Page) ([]domain.Customer, int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var b selectBuilder
	if filter.NameContains != "" {
		b.where("name ILIKE ?", likePattern(filter.NameContains))
	}
	if filter.EmailContains != "" {
		b.where("email ILIKE ?", likePattern(filter.EmailContains))
	}
	if filter.CreatedAtGte != nil {
		b.where("created_at >= ?", *filter.CreatedAtGte)
	}
	if filter.CreatedAtLte != nil {
		b.where("created_at <= ?", *filter.CreatedAtLte)
	}
	where := b.whereClause()

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`+where, b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + where + orderByClause(ordering, customerOrderColumns) + b.pageClause(page)
	rows, err := r.q.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Customer, 0)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan customer: %w", err)
		}
		result = append(result, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate customers: %w", err)
	}

	return result, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
		return domain.Customer{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)

package domain

import (
	"errors"
	"fmt"
)

// Категории ошибок. Конкретные ошибки ниже разворачиваются (errors.Is) в одну из них.
var (
	// ErrValidation — некорректные входные данные.
	ErrValidation = errors.New("validation error")
	// ErrConflict — нарушение уникальности.
	ErrConflict = errors.New("conflict")
	// ErrNotFound — ссылка на несуществующую запись.
	ErrNotFound = errors.New("not found")
)

var (
	// Ошибка пустого имени клиента или товара.
	ErrNameRequired = newKindError(ErrValidation, "Name is required")
	// Ошибка пустого email клиента.
	ErrEmailRequired = newKindError(ErrValidation, "Email is required")
	// Ошибка слишком длинного имени клиента или товара.
	ErrNameTooLong = newKindError(ErrValidation, fmt.Sprintf("Name cannot exceed %d characters", MaxNameLength))
	// Ошибка слишком длинного телефона.
	ErrPhoneTooLong = newKindError(ErrValidation, fmt.Sprintf("Phone cannot exceed %d characters", MaxPhoneLength))
	// Ошибка формата телефона.
	ErrInvalidPhone = newKindError(ErrValidation, "Invalid phone format. Use +1234567890 or 123-456-7890")
	// ErrEmailTaken возвращается, если клиент с таким email уже существует.
	ErrEmailTaken = newKindError(ErrConflict, "Email already exists")
	// Ошибка неположительной цены товара.
	ErrPriceNotPositive = newKindError(ErrValidation, "Price must be positive")
	// Ошибка отрицательного остатка.
	ErrStockNegative = newKindError(ErrValidation, "Stock cannot be negative")
	// Ошибка пустого списка товаров в заказе.
	ErrProductsRequired = newKindError(ErrValidation, "At least one product must be selected")

	// ErrCustomerNotFound возвращается, если клиент не найден в хранилище.
	ErrCustomerNotFound = newKindError(ErrNotFound, "Invalid customer ID")
	// ErrProductNotFound возвращается, если товар не найден в хранилище.
	ErrProductNotFound = newKindError(ErrNotFound, "product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = newKindError(ErrNotFound, "order not found")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// kindError связывает человекочитаемое сообщение с категорией ошибки.
type kindError struct {
	kind error
	msg  string
}

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// productNotFoundError уточняет ErrProductNotFound идентификатором товара.
type productNotFoundError struct {
	id string
}

// NewProductNotFoundError возвращает ошибку с идентификатором неразрешённого товара.
func NewProductNotFoundError(id string) error {
	return &productNotFoundError{id: id}
}

func (e *productNotFoundError) Error() string {
	return fmt.Sprintf("Invalid product ID: %s", e.id)
}

func (e *productNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound || target == ErrNotFound
}

// UnknownOrderFieldError сообщает о неизвестном поле сортировки.
type UnknownOrderFieldError struct {
	Field string
}

func (e *UnknownOrderFieldError) Error() string {
	return fmt.Sprintf("Unknown order field: %s", e.Field)
}

func (e *UnknownOrderFieldError) Unwrap() error { return ErrValidation }

// IsValidation проверяет, относится ли ошибка к некорректному вводу.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict проверяет, является ли ошибка нарушением уникальности.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound проверяет, ссылается ли ошибка на отсутствующую запись.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBusiness возвращает true для ожидаемых бизнес-ошибок (в отличие от сбоев инфраструктуры).
func IsBusiness(err error) bool {
	return IsValidation(err) || IsConflict(err) || IsNotFound(err)
}

package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Ограничения длины совпадают с размерами колонок в схеме PostgreSQL.
const (
	MaxNameLength  = 100
	MaxPhoneLength = 20
)

// phonePattern повторяет допустимые форматы: +1234567890 (9-15 цифр) или 123-456-7890.
var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$|^\d{3}-\d{3}-\d{4}$`)

// Customer описывает клиента CRM. Phone хранится пустой строкой, если телефон не указан.
type Customer struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// ValidPhone проверяет формат телефона. Пустой телефон допустим.
func ValidPhone(phone string) bool {
	if phone == "" {
		return true
	}
	return phonePattern.MatchString(phone)
}

// Validate проверяет поля клиента перед сохранением.
func (c *Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(c.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if strings.TrimSpace(c.Email) == "" {
		return ErrEmailRequired
	}
	if utf8.RuneCountInString(c.Phone) > MaxPhoneLength {
		return ErrPhoneTooLong
	}
	if !ValidPhone(c.Phone) {
		return ErrInvalidPhone
	}
	return nil
}

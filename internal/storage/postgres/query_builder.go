package postgres

import (
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// selectBuilder собирает WHERE/ORDER BY/LIMIT для списочных запросов.
// Имена колонок берутся только из whitelist, значения передаются плейсхолдерами.
type selectBuilder struct {
	conds []string
	args  []any
}

// where добавляет условие; каждый "?" в cond заменяется на следующий $N.
func (b *selectBuilder) where(cond string, args ...any) {
	for _, arg := range args {
		b.args = append(b.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(b.args)), 1)
	}
	b.conds = append(b.conds, cond)
}

func (b *selectBuilder) whereClause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func (b *selectBuilder) pageClause(page domain.Page) string {
	var sb strings.Builder
	if page.Limit > 0 {
		b.args = append(b.args, page.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(b.args))
	}
	if page.Offset > 0 {
		b.args = append(b.args, page.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(b.args))
	}
	return sb.String()
}

func orderByClause(ordering domain.Ordering, columns map[string]string) string {
	parts := make([]string, 0, len(ordering)+2)
	for _, f := range ordering.WithTieBreak() {
		column, ok := columns[f.Field]
		if !ok {
			continue
		}
		if f.Desc {
			parts = append(parts, column+" DESC")
		} else {
			parts = append(parts, column+" ASC")
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// likePattern превращает подстроку в шаблон ILIKE, экранируя спецсимволы.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

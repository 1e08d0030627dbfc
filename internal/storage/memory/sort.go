package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

type comparator[T any] func(a, b T) int

// sortRecords сортирует записи по ordering; поля без компаратора игнорируются.
func sortRecords[T any](items []T, ordering domain.Ordering, fields map[string]comparator[T]) {
	ordering = ordering.WithTieBreak()
	sort.SliceStable(items, func(i, j int) bool {
		for _, f := range ordering {
			cmp, ok := fields[f.Field]
			if !ok {
				continue
			}
			c := cmp(items[i], items[j])
			if c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// paginate вырезает страницу из уже отсортированной выборки.
func paginate[T any](items []T, page domain.Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(items) {
			return items[:0]
		}
		items = items[page.Offset:]
	}
	if page.Limit > 0 && len(items) > page.Limit {
		items = items[:page.Limit]
	}
	return items
}

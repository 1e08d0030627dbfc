package jobs

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/client/graphql"
)

const updateLowStockMutation = `
mutation {
  updateLowStockProducts {
    updatedProducts { id name stock }
    message
    success
    count
  }
}`

type lowStockPayload struct {
	UpdateLowStockProducts struct {
		UpdatedProducts []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Stock int    `json:"stock"`
		} `json:"updatedProducts"`
		Message string `json:"message"`
		Success bool   `json:"success"`
		Count   int    `json:"count"`
	} `json:"updateLowStockProducts"`
}

// UpdateLowStock вызывает мутацию updateLowStockProducts и журналирует результат.
func (r *Runner) UpdateLowStock(ctx context.Context, events *log.Logger) {
	b := r.batch(events)

	var out lowStockPayload
	if err := r.client.Do(ctx, graphql.Request{Query: updateLowStockMutation}, &out); err != nil {
		var statusErr *graphql.HTTPStatusError
		if errors.As(err, &statusErr) {
			b.line("HTTP error %d: %s", statusErr.StatusCode, statusErr.Body)
			return
		}
		b.line("Exception during low stock update: %v", err)
		return
	}

	result := out.UpdateLowStockProducts
	if !result.Success {
		message := result.Message
		if message == "" {
			message = "Unknown error"
		}
		b.line("Low stock update failed: %s", message)
		return
	}

	b.line("Low stock update successful: %s", result.Message)
	if len(result.UpdatedProducts) == 0 {
		b.line("No products needed restocking")
		return
	}
	b.line("Updated products:")
	for _, p := range result.UpdatedProducts {
		b.line("  - %s: New stock level %d", p.Name, p.Stock)
	}
}

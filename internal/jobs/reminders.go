package jobs

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/client/graphql"
)

// ReminderWindow — насколько давние заказы попадают в напоминания.
const ReminderWindow = 7 * 24 * time.Hour

const recentOrdersQuery = `
query GetRecentOrders($orderDateGte: DateTime) {
  allOrders(filter: { orderDateGte: $orderDateGte }) {
    edges {
      node {
        id
        orderDate
        customer { email name }
      }
    }
  }
}`

type recentOrdersPayload struct {
	AllOrders struct {
		Edges []struct {
			Node struct {
				ID       string `json:"id"`
				Customer struct {
					Email string `json:"email"`
					Name  string `json:"name"`
				} `json:"customer"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"allOrders"`
}

// OrderReminders журналирует заказы за последние ReminderWindow.
func (r *Runner) OrderReminders(ctx context.Context, events *log.Logger) {
	since := r.now().Add(-ReminderWindow).UTC()

	var out recentOrdersPayload
	err := r.client.Do(ctx, graphql.Request{
		Query:     recentOrdersQuery,
		Variables: map[string]any{"orderDateGte": since.Format(time.RFC3339)},
	}, &out)

	b := r.batch(events)
	if err != nil {
		b.line("Error processing order reminders: %v", err)
		_, _ = fmt.Fprintf(r.stdout, "Error: %v\n", err)
		return
	}

	edges := out.AllOrders.Edges
	b.line("Processing %d recent orders:", len(edges))
	for _, edge := range edges {
		b.line("Order ID: %s, Customer: %s, Email: %s", edge.Node.ID, edge.Node.Customer.Name, edge.Node.Customer.Email)
	}
	_, _ = fmt.Fprintln(r.stdout, "Order reminders processed!")
}

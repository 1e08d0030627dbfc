package jobs

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/client/graphql"
)

const helloQuery = `{ hello }`

// Heartbeat отмечает, что CRM жива, и при selfTest проверяет отклик API запросом hello.
func (r *Runner) Heartbeat(ctx context.Context, events *log.Logger, selfTest bool) {
	b := r.batch(events)
	b.line("CRM is alive")
	if !selfTest {
		return
	}

	var out struct {
		Hello string `json:"hello"`
	}
	if err := r.client.Do(ctx, graphql.Request{Query: helloQuery}, &out); err != nil {
		b.line("GraphQL endpoint test failed: %v", err)
		return
	}
	if out.Hello != "" {
		b.line("GraphQL endpoint responsive: %s", out.Hello)
	}
}

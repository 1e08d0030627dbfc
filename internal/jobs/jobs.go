// Package jobs реализует плановые задачи CRM: heartbeat, пополнение остатков
// и напоминания о заказах. Задачи ходят в GraphQL API по сети и дописывают
// строки в свои журналы. Ошибки не повторяются: они попадают в журнал.
package jobs

import (
	"context"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/client/graphql"
)

// Doer — часть GraphQL-клиента, нужная задачам.
type Doer interface {
	Do(ctx context.Context, req graphql.Request, out any) error
}

// Runner выполняет задачи через один GraphQL-клиент.
type Runner struct {
	client Doer
	now    func() time.Time
	stdout io.Writer
}

// Option настраивает Runner.
type Option func(*Runner)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithStdout задаёт вывод для сообщений в консоль.
func WithStdout(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.stdout = w
		}
	}
}

// NewRunner создаёт Runner.
func NewRunner(client Doer, opts ...Option) *Runner {
	r := &Runner{
		client: client,
		now:    time.Now,
		stdout: io.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// batch фиксирует время запуска: все строки одного запуска получают одну метку.
type batch struct {
	log *log.Logger
	ts  time.Time
}

func (r *Runner) batch(events *log.Logger) batch {
	return batch{log: events, ts: r.now()}
}

func (b batch) line(format string, args ...any) {
	b.log.WithTime(b.ts).Infof(format, args...)
}

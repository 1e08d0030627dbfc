// Package health отдаёт /healthz, /livez и /readyz для оркестратора.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const defaultCheckTimeout = 2 * time.Second

// Status — состояние компонента или сервиса целиком.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// worse возвращает более тяжёлый из двух статусов.
func worse(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusUnhealthy:
			return 2
		case StatusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// Check — результат проверки одного компонента.
type Check struct {
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Report — тело ответа /healthz.
type Report struct {
	Status        Status           `json:"status"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	CheckedAt     time.Time        `json:"checked_at"`
	Checks        map[string]Check `json:"checks,omitempty"`
}

// Checker проверяет компонент в пределах ctx.
type Checker interface {
	Check(ctx context.Context) Check
}

// CheckerFunc позволяет использовать функцию как Checker.
type CheckerFunc func(ctx context.Context) Check

func (f CheckerFunc) Check(ctx context.Context) Check { return f(ctx) }

// Handler собирает проверки CRM (хранилище, outbox) и отдаёт их по HTTP.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	version  string
	started  time.Time
	timeout  time.Duration
}

// NewHandler создаёт Handler без проверок.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers: make(map[string]Checker),
		version:  version,
		started:  time.Now(),
		timeout:  defaultCheckTimeout,
	}
}

// RegisterChecker добавляет или заменяет проверку с именем name.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// Report запускает все проверки параллельно с общим таймаутом.
func (h *Handler) Report(ctx context.Context) Report {
	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, c := range h.checkers {
		checkers[name] = c
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	report := Report{
		Status:        StatusHealthy,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		CheckedAt:     time.Now().UTC(),
		Checks:        make(map[string]Check, len(checkers)),
	}
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check := checker.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = check
			report.Status = worse(report.Status, check.Status)
		}()
	}
	wg.Wait()
	return report
}

// ServeHTTP отдаёт отчёт в JSON; 503, если хоть одна проверка unhealthy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Report(r.Context())

	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// ReadinessHandler отвечает 503, пока хранилище недоступно. Degraded
// (например, застрявший outbox) не снимает под с балансировки.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	report := h.Report(r.Context())
	if report.Status == StatusUnhealthy {
		failing := make([]string, 0, len(report.Checks))
		for name, check := range report.Checks {
			if check.Status == StatusUnhealthy {
				failing = append(failing, name)
			}
		}
		slices.Sort(failing)
		http.Error(w, fmt.Sprintf("not ready: %v", failing), http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler отвечает 200, пока процесс обслуживает HTTP.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// Pinger — компонент с проверкой доступности.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingChecker помечает компонент unhealthy, если Ping вернул ошибку.
func NewPingChecker(pinger Pinger) Checker {
	return CheckerFunc(func(ctx context.Context) Check {
		start := time.Now()
		err := pinger.Ping(ctx)
		check := Check{Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		}
		return check
	})
}

// OutboxStatsReader — источник статистики outbox.
type OutboxStatsReader interface {
	Stats() (domain.OutboxStats, error)
}

// NewOutboxBacklogChecker помечает сервис degraded, если самое старое
// pending-событие ждёт публикации дольше maxAge. Ошибка чтения статистики
// тоже degraded: мутации CRM при этом продолжают работать.
func NewOutboxBacklogChecker(outbox OutboxStatsReader, maxAge time.Duration, now func() time.Time) Checker {
	if now == nil {
		now = time.Now
	}
	return CheckerFunc(func(context.Context) Check {
		start := time.Now()
		stats, err := outbox.Stats()
		check := Check{Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
		switch {
		case err != nil:
			check.Status = StatusDegraded
			check.Message = err.Error()
		case stats.PendingCount == 0:
		default:
			age := now().Sub(stats.OldestPendingAt)
			check.Message = fmt.Sprintf("%d pending events, oldest %s", stats.PendingCount, age.Truncate(time.Second))
			if maxAge > 0 && age > maxAge {
				check.Status = StatusDegraded
			}
		}
		return check
	})
}

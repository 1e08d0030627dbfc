package graphqlsvc

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// RouterConfig — зависимости HTTP-роутера GraphQL.
type RouterConfig struct {
	Handler        http.Handler
	Idempotency    *IdempotencyMiddleware
	Logger         *log.Entry
	RequestTimeout time.Duration
}

// NewRouter собирает chi-роутер с эндпоинтом /graphql.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "graphql-http")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	handler := cfg.Handler
	if cfg.Idempotency != nil {
		handler = cfg.Idempotency.Wrap(handler)
	}
	r.Method(http.MethodGet, "/graphql", handler)
	r.Method(http.MethodPost, "/graphql", handler)

	return r
}

// requestLogger пишет одну строку logrus на запрос.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.WithFields(log.Fields{
					"request_id":  middleware.GetReqID(r.Context()),
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"remote_addr": r.RemoteAddr,
				}).Info("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

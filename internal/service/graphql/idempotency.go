package graphqlsvc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

const (
	// IdempotencyKeyHeader — заголовок с ключом идемпотентности клиента.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayedHeader выставляется на воспроизведённых ответах.
	IdempotencyReplayedHeader = "Idempotency-Replayed"

	defaultIdempotencyTTL = 24 * time.Hour
)

var (
	errRequestInProgress   = errors.New("request with this idempotency key is still processing")
	errIdempotencyInternal = errors.New("idempotency storage is unavailable")
	errHandlerPanicked     = errors.New("internal server error")
)

// IdempotencyMiddleware сохраняет ответы POST-запросов с Idempotency-Key
// и воспроизводит их при повторе того же запроса.
type IdempotencyMiddleware struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// NewIdempotencyMiddleware создаёт middleware; ttl <= 0 заменяется на 24 часа.
func NewIdempotencyMiddleware(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-middleware")
	}
	return &IdempotencyMiddleware{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Wrap оборачивает next.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
		if r.Method != http.MethodPost || key == "" || m.repo == nil {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
		if err != nil {
			writeErrors(w, http.StatusBadRequest, fmt.Errorf("read request body: %w", err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		logger := m.logger.WithField("idempotency_key", key)
		_, err = m.repo.CreateProcessing(key, requestHash(body), m.now().Add(m.ttl))
		switch {
		case err == nil:
			m.execute(w, r, next, key, logger)
		case errors.Is(err, domain.ErrIdempotencyHashMismatch):
			writeErrors(w, http.StatusConflict, domain.ErrIdempotencyHashMismatch)
		case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
			m.replay(w, key, logger)
		default:
			logger.WithError(err).Error("failed to reserve idempotency key")
			writeErrors(w, http.StatusInternalServerError, errIdempotencyInternal)
		}
	})
}

func (m *IdempotencyMiddleware) execute(w http.ResponseWriter, r *http.Request, next http.Handler, key string, logger *log.Entry) {
	rec := &responseRecorder{header: make(http.Header), status: http.StatusOK}

	// Паника обработчика не должна оставлять ключ в processing до истечения TTL.
	defer func() {
		if p := recover(); p != nil {
			failed := &responseRecorder{header: make(http.Header)}
			writeErrors(failed, http.StatusInternalServerError, errHandlerPanicked)
			if err := m.repo.MarkFailed(key, failed.body.Bytes(), failed.status); err != nil {
				logger.WithError(err).Warn("failed to release idempotency key after panic")
			}
			panic(p)
		}
	}()
	next.ServeHTTP(rec, r)

	var err error
	if rec.status >= http.StatusInternalServerError {
		err = m.repo.MarkFailed(key, rec.body.Bytes(), rec.status)
	} else {
		err = m.repo.MarkDone(key, rec.body.Bytes(), rec.status)
	}
	if err != nil {
		logger.WithError(err).Warn("failed to store idempotent response")
	}

	for k, values := range rec.header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(rec.status)
	_, _ = w.Write(rec.body.Bytes())
}

func (m *IdempotencyMiddleware) replay(w http.ResponseWriter, key string, logger *log.Entry) {
	record, err := m.repo.Get(key)
	if err != nil {
		logger.WithError(err).Error("failed to load idempotency record")
		writeErrors(w, http.StatusInternalServerError, errIdempotencyInternal)
		return
	}
	if record.Status == domain.IdempotencyStatusProcessing {
		writeErrors(w, http.StatusConflict, errRequestInProgress)
		return
	}

	logger.WithField("status", record.Status).Debug("replaying stored response")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IdempotencyReplayedHeader, "true")
	w.WriteHeader(record.HTTPStatus)
	_, _ = w.Write(record.ResponseBody)
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// responseRecorder буферизует ответ, чтобы сохранить его до отправки клиенту.
type responseRecorder struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	r.wroteHeader = true
	return r.body.Write(p)
}

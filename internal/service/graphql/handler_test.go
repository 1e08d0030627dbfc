package graphqlsvc_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/domain"
	"github.com/vladislavdragonenkov/crm/internal/metrics"
	"github.com/vladislavdragonenkov/crm/internal/service/crm"
	graphqlsvc "github.com/vladislavdragonenkov/crm/internal/service/graphql"
	"github.com/vladislavdragonenkov/crm/internal/storage/memory"
)

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	svc := crm.NewService(
		memory.NewStore(),
		metrics.NewCRMMetricsWithRegisterer(prometheus.NewRegistry()),
		quietLogger(),
	)
	schema, err := graphqlsvc.NewSchema(svc)
	require.NoError(t, err)

	return graphqlsvc.NewRouter(graphqlsvc.RouterConfig{
		Handler:     graphqlsvc.NewHandler(schema, quietLogger()),
		Idempotency: graphqlsvc.NewIdempotencyMiddleware(memory.NewIdempotencyRepository(), 0, quietLogger()),
		Logger:      quietLogger(),
	})
}

func postGraphQL(t *testing.T, h http.Handler, query string, variables map[string]interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{"query": query, "variables": variables})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) gqlResponse {
	t.Helper()
	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func field(t *testing.T, resp gqlResponse, name string, out interface{}) {
	t.Helper()
	raw, ok := resp.Data[name]
	require.True(t, ok, "field %s missing", name)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestHandler_HelloOverGET(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape("{ hello }"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var hello string
	field(t, decode(t, rec), "hello", &hello)
	assert.Equal(t, "Hello, GraphQL!", hello)
}

func TestHandler_RejectsMutationOverGET(t *testing.T) {
	h := newTestRouter(t)

	q := `mutation { updateLowStockProducts { count } }`
	req := httptest.NewRequest(http.MethodGet, "/graphql?query="+url.QueryEscape(q), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	resp := decode(t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "mutations are only allowed over POST", resp.Errors[0].Message)
}

func TestHandler_MalformedBody(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode(t, rec).Errors)
}

func TestHandler_EmptyQuery(t *testing.T) {
	h := newTestRouter(t)

	rec := postGraphQL(t, h, "  ", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "must provide query string", resp.Errors[0].Message)
}

func TestHandler_RawGraphQLBody(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString("{ hello }"))
	req.Header.Set("Content-Type", "application/graphql")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var hello string
	field(t, decode(t, rec), "hello", &hello)
	assert.Equal(t, "Hello, GraphQL!", hello)
}

func TestHandler_TrailingSlash(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/graphql/?query="+url.QueryEscape("{ hello }"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	h := newTestRouter(t)
	q := `mutation($input: CustomerInput!) { createCustomer(input: $input) { customer { id } message success } }`
	vars := map[string]interface{}{"input": map[string]interface{}{"name": "Alice", "email": "alice@example.com"}}

	first := postGraphQL(t, h, q, vars, graphqlsvc.IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get(graphqlsvc.IdempotencyReplayedHeader))

	second := postGraphQL(t, h, q, vars, graphqlsvc.IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(graphqlsvc.IdempotencyReplayedHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	var payload struct {
		Message string `json:"message"`
		Success bool   `json:"success"`
	}
	field(t, decode(t, second), "createCustomer", &payload)
	assert.True(t, payload.Success)
	assert.Equal(t, "Customer created successfully", payload.Message)

	// Без ключа запрос исполняется заново и упирается в уникальность email.
	third := postGraphQL(t, h, q, vars)
	field(t, decode(t, third), "createCustomer", &payload)
	assert.False(t, payload.Success)
	assert.Equal(t, "Email already exists", payload.Message)
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	h := newTestRouter(t)

	first := postGraphQL(t, h, "{ hello }", nil, graphqlsvc.IdempotencyKeyHeader, "key-2")
	require.Equal(t, http.StatusOK, first.Code)

	second := postGraphQL(t, h, "{ customers { id } }", nil, graphqlsvc.IdempotencyKeyHeader, "key-2")
	require.Equal(t, http.StatusConflict, second.Code)
	resp := decode(t, second)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "idempotency key reused with different request", resp.Errors[0].Message)
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	mw := graphqlsvc.NewIdempotencyMiddleware(repo, 0, quietLogger())
	calls := 0
	h := mw.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls++
		panic("resolver exploded")
	}))

	require.Panics(t, func() {
		postGraphQL(t, h, "{ hello }", nil, graphqlsvc.IdempotencyKeyHeader, "key-panic")
	})

	record, err := repo.Get("key-panic")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusFailed, record.Status)
	assert.Equal(t, http.StatusInternalServerError, record.HTTPStatus)

	retry := postGraphQL(t, h, "{ hello }", nil, graphqlsvc.IdempotencyKeyHeader, "key-panic")
	require.Equal(t, http.StatusInternalServerError, retry.Code)
	assert.Equal(t, "true", retry.Header().Get(graphqlsvc.IdempotencyReplayedHeader))
	assert.Equal(t, 1, calls)
}

func TestRouter_PanicBehindIdempotencyIsRecovered(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	h := graphqlsvc.NewRouter(graphqlsvc.RouterConfig{
		Handler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("resolver exploded")
		}),
		Idempotency: graphqlsvc.NewIdempotencyMiddleware(repo, 0, quietLogger()),
		Logger:      quietLogger(),
	})

	rec := postGraphQL(t, h, "{ hello }", nil, graphqlsvc.IdempotencyKeyHeader, "key-router")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	record, err := repo.Get("key-router")
	require.NoError(t, err)
	assert.NotEqual(t, domain.IdempotencyStatusProcessing, record.Status)
}

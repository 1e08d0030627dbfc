// Package graphql содержит минимальный HTTP-клиент GraphQL API CRM,
// которым пользуются cron-задачи и сидер.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultEndpoint — адрес API при локальном запуске crm-server.
	DefaultEndpoint = "http://localhost:8000/graphql"
	// EndpointEnv — переменная окружения с адресом API.
	EndpointEnv = "CRM_GRAPHQL_URL"

	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 4 << 20
	idempotencyKey   = "Idempotency-Key"
)

// ErrEmptyData возвращается, если сервер не прислал ни data, ни errors.
var ErrEmptyData = errors.New("graphql response has no data")

// HTTPStatusError — ответ сервера с кодом, отличным от 200.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// ResponseError — непустой список errors в ответе GraphQL.
type ResponseError struct {
	Messages []string
}

func (e *ResponseError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Request — один GraphQL-запрос.
type Request struct {
	Query     string
	Variables map[string]any
	// IdempotencyKey, если задан, уходит в заголовке Idempotency-Key.
	IdempotencyKey string
}

// Client отправляет запросы POST-ом на один endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент (например, в тестах).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout задаёт таймаут одного запроса.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// New создаёт клиент. Пустой endpoint заменяется на DefaultEndpoint.
func New(endpoint string, opts ...Option) *Client {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint возвращает адрес API.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type requestBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type responseBody struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Do выполняет запрос и декодирует поле data в out (если out != nil).
// Ошибки транспорта, статуса и GraphQL возвращаются как есть, без повторов.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	payload, err := json.Marshal(requestBody{Query: req.Query, Variables: req.Variables})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(idempotencyKey, req.IdempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read graphql response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded responseBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
		}
		return &ResponseError{Messages: messages}
	}
	if len(decoded.Data) == 0 || string(decoded.Data) == "null" {
		return ErrEmptyData
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}

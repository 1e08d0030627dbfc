package graphqlsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	log "github.com/sirupsen/logrus"
)

const maxRequestBytes = 1 << 20

var (
	errEmptyQuery       = errors.New("must provide query string")
	errMutationOverGET  = errors.New("mutations are only allowed over POST")
	errMethodNotAllowed = errors.New("only GET and POST are supported")
)

// Request — тело GraphQL-запроса.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Handler исполняет GraphQL-запросы по HTTP.
type Handler struct {
	schema graphql.Schema
	logger *log.Entry
}

// NewHandler создаёт HTTP-обработчик для схемы.
func NewHandler(schema graphql.Schema, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "graphql-http")
	}
	return &Handler{schema: schema, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, status, err := decodeRequest(r)
	if err != nil {
		writeErrors(w, status, err)
		return
	}
	if r.Method == http.MethodGet && isMutation(req.Query, req.OperationName) {
		writeErrors(w, http.StatusMethodNotAllowed, errMutationOverGET)
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})
	if result.HasErrors() {
		h.logger.WithFields(log.Fields{
			"operation": req.OperationName,
			"errors":    len(result.Errors),
		}).Debug("graphql request finished with errors")
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeRequest(r *http.Request) (Request, int, error) {
	var req Request
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if raw := q.Get("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				return Request{}, http.StatusBadRequest, fmt.Errorf("variables are invalid JSON: %w", err)
			}
		}
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
		if err != nil {
			return Request{}, http.StatusBadRequest, fmt.Errorf("read request body: %w", err)
		}
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/graphql" {
			req.Query = string(body)
			break
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return Request{}, http.StatusBadRequest, fmt.Errorf("body is not a valid GraphQL request: %w", err)
		}
		if req.Query == "" {
			if query := r.URL.Query().Get("query"); query != "" {
				req.Query = query
			}
		}
	default:
		return Request{}, http.StatusMethodNotAllowed, errMethodNotAllowed
	}

	if strings.TrimSpace(req.Query) == "" {
		return Request{}, http.StatusBadRequest, errEmptyQuery
	}
	return req, http.StatusOK, nil
}

// isMutation сообщает, выполнит ли документ мутацию. Ошибки разбора
// оставляем исполнителю, он вернёт их в поле errors.
func isMutation(query, operationName string) bool {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return false
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName != "" && (op.Name == nil || op.Name.Value != operationName) {
			continue
		}
		if op.Operation == ast.OperationTypeMutation {
			return true
		}
	}
	return false
}

type errorBody struct {
	Errors []errorItem `json:"errors"`
}

type errorItem struct {
	Message string `json:"message"`
}

func writeErrors(w http.ResponseWriter, status int, errs ...error) {
	body := errorBody{Errors: make([]errorItem, 0, len(errs))}
	for _, err := range errs {
		body.Errors = append(body.Errors, errorItem{Message: err.Error()})
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package graphql_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/crm/internal/client/graphql"
)

func TestClientDo_DecodesData(t *testing.T) {
	var received struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		_, _ = w.Write([]byte(`{"data":{"hello":"Hello, GraphQL!"}}`))
	}))
	defer srv.Close()

	client := graphql.New(srv.URL)
	var out struct {
		Hello string `json:"hello"`
	}
	err := client.Do(context.Background(), graphql.Request{
		Query:          "query($n: Int) { hello }",
		Variables:      map[string]any{"n": 1},
		IdempotencyKey: "seed-1",
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "Hello, GraphQL!", out.Hello)
	assert.Equal(t, "query($n: Int) { hello }", received.Query)
	assert.Equal(t, float64(1), received.Variables["n"])
	assert.Equal(t, "seed-1", gotKey)
}

func TestClientDo_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	err := graphql.New(srv.URL).Do(context.Background(), graphql.Request{Query: "{ hello }"}, nil)

	var statusErr *graphql.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "upstream down", statusErr.Body)
	assert.Equal(t, "HTTP error 502: upstream down", err.Error())
}

func TestClientDo_GraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Unknown order field: foo"},{"message":"second"}]}`))
	}))
	defer srv.Close()

	err := graphql.New(srv.URL).Do(context.Background(), graphql.Request{Query: "{ x }"}, nil)

	var respErr *graphql.ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, []string{"Unknown order field: foo", "second"}, respErr.Messages)
	assert.Equal(t, "Unknown order field: foo; second", err.Error())
}

func TestClientDo_EmptyDataAndBadJSON(t *testing.T) {
	body := `{"data":null}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client := graphql.New(srv.URL)
	err := client.Do(context.Background(), graphql.Request{Query: "{ hello }"}, nil)
	assert.ErrorIs(t, err, graphql.ErrEmptyData)

	body = `not json`
	err = client.Do(context.Background(), graphql.Request{Query: "{ hello }"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode graphql response")
}

func TestClientDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := graphql.New(srv.URL, graphql.WithTimeout(50*time.Millisecond))
	err := client.Do(context.Background(), graphql.Request{Query: "{ hello }"}, nil)
	require.Error(t, err)
}

func TestNew_DefaultEndpoint(t *testing.T) {
	assert.Equal(t, graphql.DefaultEndpoint, graphql.New("  ").Endpoint())
	assert.Equal(t, "http://crm:8000/graphql", graphql.New("http://crm:8000/graphql", graphql.WithHTTPClient(nil)).Endpoint())
}

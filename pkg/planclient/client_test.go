package planclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperengineering/holocene/internal/types"
)

func TestClient_ListDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/plan", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"01A","name":"Crate","length":1.5,"quantity":2,"stackable":true}]}`))
	}))
	defer srv.Close()

	plans, err := NewClient(srv.URL + "/").List(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, Plan{ID: "01A", Name: "Crate", Length: 1.5, Quantity: 2, Stackable: true}, plans[0])
}

func TestClient_ListNullDataIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	plans, err := NewClient(srv.URL).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, plans)
	assert.Empty(t, plans)
}

func TestClient_BatchSendsOperationsAndBearer(t *testing.T) {
	var got types.BatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/plan/batch", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"applied":1,"noop":0,"rejected":0,"results":[{"index":0,"action":"DELETE","id":"01A","status":"applied"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithAPIKey("secret"))
	report, err := c.Batch(context.Background(), []Operation{{Action: ActionDelete, ID: "01A"}})
	require.NoError(t, err)

	require.Len(t, got.Operations, 1)
	assert.Equal(t, Operation{Action: ActionDelete, ID: "01A"}, got.Operations[0])
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, types.StatusApplied, report.Results[0].Status)
}

func TestClient_BatchNilOperationsSendsEmptyArray(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Batch(context.Background(), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw["operations"]))
}

func TestClient_BatchEmptyBodyYieldsEmptyReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	report, err := NewClient(srv.URL).Batch(context.Background(), []Operation{{Action: ActionDelete, ID: "x"}})
	require.NoError(t, err)
	assert.Zero(t, report.Applied)
	assert.NotNil(t, report.Results)
	assert.Empty(t, report.Results)
}

func TestClient_ProblemResponseBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"type":"https://holocene.dev/errors/validation-error","title":"Validation Error","status":422,"detail":"Batch contains invalid operations","errors":[{"field":"operations[0].id","message":"is required"}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Batch(context.Background(), []Operation{{Action: ActionDelete}})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "Validation Error", apiErr.Title)
	require.Len(t, apiErr.Errors, 1)
	assert.Equal(t, "operations[0].id", apiErr.Errors[0].Field)
	assert.Contains(t, apiErr.Error(), "operations[0].id: is required")
}

func TestClient_NonJSONErrorStillCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).List(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Bad Gateway")
}

func TestClient_TransportErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).List(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	_, err := c.List(context.Background())
	assert.Error(t, err)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		w.Write([]byte(`{"status":"healthy","version":"1.2.3","plan_count":4}`))
	}))
	defer srv.Close()

	h, err := NewClient(srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &HealthResponse{Status: "healthy", Version: "1.2.3", PlanCount: 4}, h)
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient("http://localhost:8080")
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Empty(t, c.apiKey)
}

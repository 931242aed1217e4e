package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/query"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderpipe/internal/transport/httpapi"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo := memory.NewOrderRepository()
	ctx := context.Background()
	for i, id := range []string{"A1", "A2", "A3"} {
		order, err := repo.Create(ctx, domain.Order{
			OrderID:       id,
			CustomerID:    "C1",
			CustomerPhone: "+1",
			Status:        domain.OrderStatusProcessing,
			Items:         []string{"x", "y"},
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		order.Status = domain.OrderStatusCompleted
		_, err = repo.UpdateStatus(ctx, order)
		require.NoError(t, err)
	}

	srv := httptest.NewServer(httpapi.NewRouter(query.NewService(repo, nil, nil, nil), nil, nil))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestGetOrderStatus(t *testing.T) {
	srv := newServer(t)

	var body map[string]any
	code := getJSON(t, srv.URL+"/api/orders/A2/status", &body)

	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "A2", body["orderId"])
	require.Equal(t, "C1", body["customerId"])
	require.Equal(t, "COMPLETED", body["status"])
	require.Equal(t, []any{"x", "y"}, body["items"])
	require.EqualValues(t, 2, body["itemCount"])
	require.Equal(t, base.Add(time.Hour).Format(time.RFC3339), body["timestamp"])
}

func TestGetOrderStatus_NotFound(t *testing.T) {
	srv := newServer(t)

	var body httpapi.ErrorResponse
	code := getJSON(t, srv.URL+"/api/orders/nope/status", &body)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Order not found", body.Error)
}

func TestCountOrders(t *testing.T) {
	srv := newServer(t)

	q := url.Values{}
	q.Set("startDate", base.Format(time.RFC3339))
	q.Set("endDate", base.Add(time.Hour).Format(time.RFC3339))

	var body query.CountView
	code := getJSON(t, srv.URL+"/api/orders/count?"+q.Encode(), &body)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 2, body.TotalOrders)
	require.True(t, body.StartDate.Equal(base))
	require.False(t, body.QueryTimestamp.IsZero())

	// Дата без зоны трактуется как UTC.
	q.Set("startDate", "2024-01-01T00:00:00")
	q.Set("endDate", "2024-01-01T05:00:00")
	code = getJSON(t, srv.URL+"/api/orders/count?"+q.Encode(), &body)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 3, body.TotalOrders)
}

func TestCountOrders_BadRequests(t *testing.T) {
	srv := newServer(t)

	var body httpapi.ErrorResponse
	code := getJSON(t, srv.URL+"/api/orders/count?startDate=2024-02-01T00:00:00Z&endDate=2024-01-01T00:00:00Z", &body)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Invalid date range", body.Error)
	require.Equal(t, "Start date must be before or equal to end date", body.Message)

	body = httpapi.ErrorResponse{}
	code = getJSON(t, srv.URL+"/api/orders/count?startDate=yesterday&endDate=2024-01-01T00:00:00Z", &body)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Invalid date", body.Error)

	body = httpapi.ErrorResponse{}
	code = getJSON(t, srv.URL+"/api/orders/count?startDate=2024-01-01T00:00:00Z", &body)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	var body query.HealthView
	code := getJSON(t, srv.URL+"/api/orders/health", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "UP", body.Status)
	require.Equal(t, "OrderService", body.Service)
	require.Equal(t, "1.0.0", body.Version)
}

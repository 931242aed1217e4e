package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/query"
)

// localDateTime — ISO-8601 без зоны; такие значения считаются UTC.
const localDateTime = "2006-01-02T15:04:05"

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Handler обслуживает запросы к заказам.
type Handler struct {
	svc     *query.Service
	metrics *metrics.OrderMetrics
	logger  *log.Entry
}

// GetOrderStatus возвращает проекцию заказа по бизнес-ID.
func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordAPIRequest("status")
	orderID := chi.URLParam(r, "orderId")

	view, err := h.svc.GetStatus(r.Context(), orderID)
	if err != nil {
		if domain.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Order not found", fmt.Sprintf("Order %s not found", orderID))
			return
		}
		h.logger.WithError(err).WithField("order_id", orderID).Error("failed to load order status")
		writeError(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CountOrders считает заказы в интервале [startDate, endDate].
func (h *Handler) CountOrders(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordAPIRequest("count")

	start, err := parseDateTime(r.URL.Query().Get("startDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", fmt.Sprintf("startDate: %v", err))
		return
	}
	end, err := parseDateTime(r.URL.Query().Get("endDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", fmt.Sprintf("endDate: %v", err))
		return
	}

	view, err := h.svc.CountInRange(r.Context(), start, end)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDateRange) {
			writeError(w, http.StatusBadRequest, "Invalid date range", "Start date must be before or equal to end date")
			return
		}
		h.logger.WithError(err).Error("failed to count orders")
		writeError(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Health возвращает состояние сервиса.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.metrics.RecordAPIRequest("health")
	writeJSON(w, http.StatusOK, h.svc.Health())
}

func parseDateTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("value is required")
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localDateTime, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected ISO-8601 date-time, got %q", raw)
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

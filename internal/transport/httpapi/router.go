// Package httpapi публикует сервис запросов по HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/query"
)

// NewRouter собирает маршруты /api/orders.
func NewRouter(svc *query.Service, m *metrics.OrderMetrics, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http-api")
	}
	h := &Handler{svc: svc, metrics: m, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/count", h.CountOrders)
		r.Get("/{orderId}/status", h.GetOrderStatus)
	})
	return r
}

func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			}).Debug("http request served")
		})
	}
}

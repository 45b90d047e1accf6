package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quotesCreatedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotes_created",
		Help: "The total number of quotes created",
	})
	personsCreatedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "persons_created",
		Help: "The total number of persons created",
	})
	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "Rejected requests by auth failure kind.",
	}, []string{"kind"})
	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_errors_total",
		Help: "Store errors by operation and class.",
	}, []string{"op", "class"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_response_duration_seconds",
		Help: "Latency of requests in second.",
	}, []string{"path"})
)

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
			// Label by route pattern so ids don't explode the label set.
			var path string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				path = rctx.RoutePattern()
			}
			if path == "" {
				path = "unmatched"
			}
			httpDuration.WithLabelValues(path).Observe(v)
		}))

		next.ServeHTTP(ww, r)

		timer.ObserveDuration()
	})
}

package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-platform/internal/observability"
)

// NewRouter wires the REST surface. /health and /metrics sit outside the
// /api/v1 prefix and skip the request timeout so probes keep answering while
// a slow upstream stalls API traffic.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(limiter))

	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(TimeoutMiddleware(requestTimeout))

	api.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/forecast", h.GetForecast).Methods(http.MethodGet)
	api.HandleFunc("/history/weather", h.GetWeatherHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/aqi", h.GetAQIHistory).Methods(http.MethodGet)

	api.HandleFunc("/subscriptions", h.CreateSubscription).Methods(http.MethodPost)
	api.HandleFunc("/subscriptions/user/{userId}", h.ListUserSubscriptions).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions/{id:[0-9]+}", h.GetSubscription).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions/{id:[0-9]+}", h.UpdateSubscription).Methods(http.MethodPut)
	api.HandleFunc("/subscriptions/{id:[0-9]+}", h.DeleteSubscription).Methods(http.MethodDelete)

	return r
}

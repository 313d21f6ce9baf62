package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-platform/internal/lifecycle"
	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/service"
	"github.com/kjstillabower/weather-platform/internal/validation"
)

// HealthDeps holds the reachability probes the health handler consults.
// Nil probes are skipped.
type HealthDeps struct {
	DBPing           func() error
	CachePing        func() error
	WeatherAvailable func() bool
	AirAvailable     func() bool
}

// Handler holds dependencies for the REST handlers.
type Handler struct {
	weather       *service.WeatherService
	subscriptions *service.SubscriptionService
	health        HealthDeps
	validate      *validator.Validate
	logger        *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

func NewHandler(weather *service.WeatherService, subscriptions *service.SubscriptionService, health HealthDeps, logger *zap.Logger) *Handler {
	return &Handler{
		weather:       weather,
		subscriptions: subscriptions,
		health:        health,
		validate:      validator.New(),
		logger:        logger,
	}
}

// locationParams validates the city/country query parameters shared by the
// weather, forecast and history handlers.
func locationParams(w http.ResponseWriter, r *http.Request) (city, country string, ok bool) {
	city, err := validation.ValidateCity(r.URL.Query().Get("city"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return "", "", false
	}
	country, err = validation.ValidateCountry(r.URL.Query().Get("country"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COUNTRY", err.Error())
		return "", "", false
	}
	return city, country, true
}

// GetWeather handles GET /api/v1/weather?city=&country=.
// Total upstream exhaustion still answers 200 with absent fields.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city, country, ok := locationParams(w, r)
	if !ok {
		return
	}

	resp, err := h.weather.GetCurrentWeather(r.Context(), city, country)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetForecast handles GET /api/v1/forecast?city=&country=&days=.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	city, country, ok := locationParams(w, r)
	if !ok {
		return
	}
	days, err := validation.ValidateDays(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DAYS", err.Error())
		return
	}

	forecasts, err := h.weather.GetForecast(r.Context(), city, country, days)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDays) {
			writeError(w, r, http.StatusBadRequest, "INVALID_DAYS", err.Error())
			return
		}
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forecasts)
}

// GetWeatherHistory handles GET /api/v1/history/weather?city=&country=&from=&to=.
func (h *Handler) GetWeatherHistory(w http.ResponseWriter, r *http.Request) {
	city, country, ok := locationParams(w, r)
	if !ok {
		return
	}
	from, to, err := validation.ValidateTimeRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_TIME_RANGE", err.Error())
		return
	}

	readings, err := h.weather.WeatherHistory(r.Context(), city, country, from, to)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if readings == nil {
		readings = []models.WeatherReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// GetAQIHistory handles GET /api/v1/history/aqi?city=&country=&from=&to=.
func (h *Handler) GetAQIHistory(w http.ResponseWriter, r *http.Request) {
	city, country, ok := locationParams(w, r)
	if !ok {
		return
	}
	from, to, err := validation.ValidateTimeRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_TIME_RANGE", err.Error())
		return
	}

	readings, err := h.weather.AQIHistory(r.Context(), city, country, from, to)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if readings == nil {
		readings = []models.AQIReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// subscriptionRequest is the create/update payload.
type subscriptionRequest struct {
	UserID     string                  `json:"userId" validate:"required"`
	Email      string                  `json:"email" validate:"required,email"`
	City       string                  `json:"city" validate:"required"`
	Country    string                  `json:"country"`
	AlertTypes []models.AlertType      `json:"alertTypes" validate:"required,min=1"`
	Thresholds *models.AlertThresholds `json:"thresholds"`
	Active     *bool                   `json:"active"`
}

func (h *Handler) decodeSubscription(w http.ResponseWriter, r *http.Request) (*models.Subscription, bool) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PAYLOAD", "malformed JSON body")
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return nil, false
	}
	city, err := validation.ValidateCity(req.City)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return nil, false
	}
	country, err := validation.ValidateCountry(req.Country)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COUNTRY", err.Error())
		return nil, false
	}
	for _, at := range req.AlertTypes {
		if !models.ValidAlertType(at) {
			writeError(w, r, http.StatusBadRequest, "INVALID_ALERT_TYPE", "unknown alert type: "+string(at))
			return nil, false
		}
	}

	sub := &models.Subscription{
		UserID:     req.UserID,
		Email:      req.Email,
		Location:   models.Location{City: city, Country: country},
		AlertTypes: req.AlertTypes,
		Thresholds: req.Thresholds,
		Active:     true,
	}
	if req.Active != nil {
		sub.Active = *req.Active
	}
	return sub, true
}

// CreateSubscription handles POST /api/v1/subscriptions.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.decodeSubscription(w, r)
	if !ok {
		return
	}
	created, err := h.subscriptions.Create(r.Context(), sub)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetSubscription handles GET /api/v1/subscriptions/{id}.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(w, r)
	if !ok {
		return
	}
	sub, err := h.subscriptions.GetByID(r.Context(), id)
	if err != nil {
		writeSubscriptionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// UpdateSubscription handles PUT /api/v1/subscriptions/{id}.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(w, r)
	if !ok {
		return
	}
	sub, ok := h.decodeSubscription(w, r)
	if !ok {
		return
	}
	updated, err := h.subscriptions.Update(r.Context(), id, sub)
	if err != nil {
		writeSubscriptionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteSubscription handles DELETE /api/v1/subscriptions/{id}.
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(w, r)
	if !ok {
		return
	}
	if err := h.subscriptions.Delete(r.Context(), id); err != nil {
		writeSubscriptionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUserSubscriptions handles GET /api/v1/subscriptions/user/{userId}.
func (h *Handler) ListUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	subs, err := h.subscriptions.ListByUser(r.Context(), userID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func subscriptionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-platform",
		"version":   "dev",
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates the probes in priority order:
// shutting-down > database unreachable > healthy. A cache outage or an
// unconfigured provider is reported in checks but does not fail the
// endpoint, since both degrade to fallbacks rather than errors.
func (h *Handler) computeHealthStatus() healthResult {
	checks := make(map[string]string)

	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}

	status, code, reason := "healthy", http.StatusOK, ""
	if h.health.DBPing != nil {
		if err := h.health.DBPing(); err != nil {
			checks["database"] = "unhealthy"
			status, code, reason = "degraded", http.StatusServiceUnavailable, "database_unreachable"
		} else {
			checks["database"] = "healthy"
		}
	}
	if h.health.CachePing != nil {
		if err := h.health.CachePing(); err != nil {
			checks["cache"] = "unhealthy"
		} else {
			checks["cache"] = "healthy"
		}
	}
	if h.health.WeatherAvailable != nil {
		checks["weatherProvider"] = providerCheck(h.health.WeatherAvailable())
	}
	if h.health.AirAvailable != nil {
		checks["airQualityProvider"] = providerCheck(h.health.AirAvailable())
	}
	return healthResult{status, code, reason, checks}
}

func providerCheck(available bool) string {
	if available {
		return "configured"
	}
	return "unconfigured"
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Error("request failed", zap.Error(err))
	}
}

func writeSubscriptionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrSubscriptionNotFound) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "subscription not found")
		return
	}
	writeInternalError(w, r, err)
}

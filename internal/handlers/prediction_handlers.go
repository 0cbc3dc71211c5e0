package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"snowday-platform/internal/models"
	"snowday-platform/internal/services"
	"snowday-platform/pkg/logging"
	"snowday-platform/pkg/metrics"
)

// PredictionAPI is the prediction surface the handlers expose.
type PredictionAPI interface {
	Predict(ctx context.Context) (*services.PredictionResult, error)
	HistoricalPrediction(ctx context.Context, q models.MatchQuery) (*models.HistoricalAggregate, error)
	SchoolHistoricalPrediction(ctx context.Context, school string, q models.MatchQuery) (*models.HistoricalAggregate, error)
}

// TrackingAPI is the accuracy-tracking surface the handlers expose.
type TrackingAPI interface {
	LogDaily(ctx context.Context, opts services.LogOptions) (*services.LogResult, error)
	Accuracy(ctx context.Context) (*models.AccuracyReport, error)
}

// PredictionHandler handles the prediction API endpoints
type PredictionHandler struct {
	predictions PredictionAPI
	tracking    TrackingAPI
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(predictions PredictionAPI, tracking TrackingAPI, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PredictionHandler {
	return &PredictionHandler{
		predictions: predictions,
		tracking:    tracking,
		logger:      logger,
		metrics:     metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// GetPrediction handles GET /api/prediction
func (h *PredictionHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/prediction").Observe(time.Since(startTime).Seconds())
	}()

	result, err := h.predictions.Predict(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_PREDICTION_ERROR] Prediction failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/prediction")
		h.sendError(w, r, "failed to generate prediction", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/prediction", "GET", "200")
	h.sendJSON(w, result, http.StatusOK)
}

// GetHistory handles GET /api/history
func (h *PredictionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/history").Observe(time.Since(startTime).Seconds())
	}()

	q, err := parseMatchQuery(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	agg, err := h.predictions.HistoricalPrediction(ctx, q)
	if err != nil {
		h.logger.Error(ctx, "[API_HISTORY_ERROR] Historical search failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/history")
		h.sendError(w, r, "failed to search historical records", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/history", "GET", "200")
	h.sendJSON(w, historyResponse(agg), http.StatusOK)
}

// GetSchoolHistory handles GET /api/history/{school}
func (h *PredictionHandler) GetSchoolHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/history/school").Observe(time.Since(startTime).Seconds())
	}()

	school := mux.Vars(r)["school"]
	if school == "" {
		h.sendError(w, r, "school is required", http.StatusBadRequest)
		return
	}

	q, err := parseMatchQuery(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	agg, err := h.predictions.SchoolHistoricalPrediction(ctx, school, q)
	if err != nil {
		h.logger.Error(ctx, "[API_SCHOOL_HISTORY_ERROR] School historical search failed", logging.Fields{
			"school": school,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/history/school")
		h.sendError(w, r, "failed to search historical records", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/history/school", "GET", "200")
	h.sendJSON(w, historyResponse(agg), http.StatusOK)
}

// logRequest is the POST /api/log body
type logRequest struct {
	ForceLog bool `json:"force_log"`
	DryRun   bool `json:"dry_run"`
}

// PostLog handles POST /api/log
func (h *PredictionHandler) PostLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/log").Observe(time.Since(startTime).Seconds())
	}()

	var req logRequest
	if r.Body != nil {
		// An empty body means a default run.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.sendError(w, r, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	result, err := h.tracking.LogDaily(ctx, services.LogOptions{
		ForceLog: req.ForceLog,
		DryRun:   req.DryRun,
	})
	if err != nil {
		h.logger.Error(ctx, "[API_LOG_ERROR] Daily logging failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/log")
		h.sendError(w, r, "failed to run daily logging", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/log", "POST", "200")
	h.sendJSON(w, result, http.StatusOK)
}

// GetAccuracy handles GET /api/accuracy
func (h *PredictionHandler) GetAccuracy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/accuracy").Observe(time.Since(startTime).Seconds())
	}()

	report, err := h.tracking.Accuracy(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_ACCURACY_ERROR] Accuracy report failed", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/accuracy")
		h.sendError(w, r, "failed to compute accuracy", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/accuracy", "GET", "200")
	h.sendJSON(w, report, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *PredictionHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	h.sendJSON(w, status, http.StatusOK)
}

// parseMatchQuery reads the historical search parameters from the query
// string.
func parseMatchQuery(r *http.Request) (models.MatchQuery, error) {
	var q models.MatchQuery
	var err error

	if q.TemperatureF, err = intParam(r, "temperature"); err != nil {
		return q, err
	}
	if q.FeelsLikeF, err = intParam(r, "feels_like"); err != nil {
		return q, err
	}

	if raw := r.URL.Query().Get("snowfall"); raw != "" {
		q.SnowfallIn, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, &paramError{"snowfall"}
		}
	}
	q.WeatherType = r.URL.Query().Get("weather_type")

	return q, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &paramError{name}
	}
	return v, nil
}

type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + " parameter"
}

// historyResponse wraps an optional aggregate so a null match is an explicit
// "no historical signal" rather than an empty object.
func historyResponse(agg *models.HistoricalAggregate) map[string]interface{} {
	if agg == nil {
		return map[string]interface{}{"match": nil}
	}
	return map[string]interface{}{"match": agg}
}

// sendJSON sends a JSON response
func (h *PredictionHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *PredictionHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all prediction API routes
func (h *PredictionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/prediction", h.GetPrediction).Methods("GET")
	router.HandleFunc("/api/history", h.GetHistory).Methods("GET")
	router.HandleFunc("/api/history/{school}", h.GetSchoolHistory).Methods("GET")
	router.HandleFunc("/api/log", h.PostLog).Methods("POST")
	router.HandleFunc("/api/accuracy", h.GetAccuracy).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

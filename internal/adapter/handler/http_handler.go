package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/core/domain"
)

type HTTPHandler struct {
	dispatcher *Dispatcher
	metrics    *Metrics
	log        *logrus.Entry
}

func NewHTTPHandler(dispatcher *Dispatcher, metrics *Metrics, log *logrus.Entry) *HTTPHandler {
	return &HTTPHandler{dispatcher: dispatcher, metrics: metrics, log: log}
}

// Routes mounts the command endpoint, health check and metrics.
func (h *HTTPHandler) Routes(registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/command", h.Command)
	mux.HandleFunc("/health", h.HealthCheck)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

func (h *HTTPHandler) Command(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, Result{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	start := time.Now()
	result, err := h.dispatcher.Dispatch(r.Context(), cmd)
	h.metrics.ObserveCommand(cmd.Action, err == nil, time.Since(start))

	writeJSON(w, statusFor(err), result)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var nf *domain.NotFoundError
	var ve *domain.ValidationError
	var be *domain.BusinessError
	var ce *domain.ConflictError
	switch {
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &be):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ce):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

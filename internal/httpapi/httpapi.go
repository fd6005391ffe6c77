// Package httpapi exposes the import job over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/norbert12x/parasol/pkg/parasol/internalerr"
	"github.com/norbert12x/parasol/pkg/parasol/job"
	"github.com/norbert12x/parasol/pkg/parasol/store"
)

// Controller is the job surface the handler drives.
type Controller interface {
	Start(ctx context.Context, region string) error
	Stop() error
	Status() job.Status
}

// StatsProvider reports stored row counts.
type StatsProvider interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// Handler wires job endpoints to the controller.
type Handler struct {
	jobs   Controller
	stats  StatsProvider
	logger *zap.Logger
}

// New constructs a handler. stats may be nil.
func New(jobs Controller, stats StatsProvider, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jobs: jobs, stats: stats, logger: logger}
}

// Register mounts job endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/import/start", h.HandleStart)
	r.Post("/import/stop", h.HandleStop)
	r.Get("/import/status", h.HandleStatus)
	r.Get("/stats", h.HandleStats)
}

// NewRouter builds the full router: job endpoints, /metrics from gatherer
// and /healthz.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	h.Register(r)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleStart handles POST /import/start?region=.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	region := strings.TrimSpace(r.URL.Query().Get("region"))
	err := h.jobs.Start(r.Context(), region)
	switch {
	case errors.Is(err, internalerr.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "import already running"})
		return
	case err != nil:
		h.logger.Error("start import failed", zap.String("region", region), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not start import"})
		return
	}
	writeJSON(w, http.StatusAccepted, h.jobs.Status())
}

// HandleStop handles POST /import/stop.
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Stop(); err != nil {
		if errors.Is(err, internalerr.ErrNotRunning) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "import not running"})
			return
		}
		h.logger.Error("stop import failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not stop import"})
		return
	}
	writeJSON(w, http.StatusAccepted, h.jobs.Status())
}

// HandleStatus handles GET /import/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.Status())
}

// HandleStats handles GET /stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "stats unavailable"})
		return
	}
	st, err := h.stats.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not read stats"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

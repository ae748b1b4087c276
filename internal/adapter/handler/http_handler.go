package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rl1809/store-sim/internal/core/domain"
	"github.com/rl1809/store-sim/internal/core/service"
	"github.com/rl1809/store-sim/internal/port"
)

type HTTPHandler struct {
	view   storeView
	logger *zap.Logger
}

type ReplenishHTTPRequest struct {
	Amount int `json:"amount"`
}

type HealthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
	Ticks  int64  `json:"ticks"`
}

// NewHTTPHandler serves the simulation's read and ops surface. querier may
// be nil when the gateway cannot aggregate on the storage side.
func NewHTTPHandler(engine *service.Engine, querier port.ReportQuerier, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		view:   storeView{engine: engine, querier: querier, now: time.Now},
		logger: logger,
	}
}

func (h *HTTPHandler) Routes(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/report", h.Report)
		r.Get("/report.txt", h.ReportText)
		r.Get("/items", h.Items)
		r.Get("/stock/{itemID}", h.Stock)
		r.Post("/restock/{itemID}", h.Replenish)
	})
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	sim := h.view.engine.Simulator
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		State:  sim.State().String(),
		Ticks:  sim.Ticks(),
	})
}

func (h *HTTPHandler) Report(w http.ResponseWriter, r *http.Request) {
	resp, err := h.view.report(r.Context(), r.URL.Query().Get("source"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReportText renders the in-core report in its printable form.
func (h *HTTPHandler) ReportText(w http.ResponseWriter, r *http.Request) {
	report, err := h.view.engine.Reporter.Report(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.Render(w); err != nil {
		h.logger.Warn("render report", zap.Error(err))
	}
}

func (h *HTTPHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.view.items(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HTTPHandler) Stock(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDParam(w, r)
	if !ok {
		return
	}
	resp, err := h.view.stock(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) Replenish(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	var req ReplenishHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	resp, err := h.view.replenish(r.Context(), id, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("manual restock",
		zap.Int64("item_id", resp.ItemID),
		zap.Int("amount", req.Amount),
		zap.Int("stock", resp.Stock))
	writeJSON(w, http.StatusOK, resp)
}

func itemIDParam(w http.ResponseWriter, r *http.Request) (domain.ItemID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid item id"})
		return 0, false
	}
	return domain.ItemID(id), true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrUnknownItem):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidAmount):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, errReportSourceUnavailable):
		status, message = http.StatusNotImplemented, err.Error()
	case errors.Is(err, domain.ErrPersistenceFailure):
		status, message = http.StatusServiceUnavailable, "persistence failure"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

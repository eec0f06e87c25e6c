package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ordersvc/commander/internal/core/domain"
	"github.com/ordersvc/commander/internal/infra/storage"
)

// OrderPlacer drives an order saga to a terminal outcome.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order *domain.Order) (*domain.OrderResult, error)
}

// Handler wires HTTP requests to the commander and the saga log.
type Handler struct {
	placer  OrderPlacer
	sagaLog storage.SagaLogRepository
	log     *slog.Logger
}

// NewHandler creates the handler.
func NewHandler(placer OrderPlacer, sagaLog storage.SagaLogRepository, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{placer: placer, sagaLog: sagaLog, log: log.With("component", "api")}
}

type placeOrderRequest struct {
	CustomerID string            `json:"customer_id"`
	Items      []domain.LineItem `json:"items"`
	Amount     int64             `json:"amount"`
}

type orderStatusResponse struct {
	OrderID            string       `json:"order_id"`
	Phase              domain.Phase `json:"phase"`
	Reason             string       `json:"reason,omitempty"`
	CompensationFailed bool         `json:"compensation_failed,omitempty"`
	History            []phaseEntry `json:"history"`
}

type phaseEntry struct {
	Phase     domain.Phase `json:"phase"`
	RequestID string       `json:"request_id,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PlaceOrder accepts a new order and drives its saga to a terminal phase in
// the request's goroutine. The caller gets the terminal outcome; a failed
// saga is a valid outcome, not a transport error.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.CustomerID == "" || len(req.Items) == 0 || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "customer_id, items and a positive amount are required")
		return
	}
	for _, item := range req.Items {
		if item.SKU == "" || item.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_item", "sku and a positive quantity are required")
			return
		}
	}

	order := domain.NewOrder(req.CustomerID, req.Items, req.Amount)
	res, err := h.placer.PlaceOrder(r.Context(), order)
	if err != nil {
		h.log.Error("place order failed", "order_id", order.ID, "error", err)
		writeError(w, fatalStatus(err), "order_incomplete", err.Error())
		return
	}

	status := http.StatusCreated
	if res.FinalPhase == domain.PhaseFailed {
		// The saga ran to completion but the order could not be fulfilled.
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// GetOrder returns the current phase and full phase history of an order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	history, err := h.sagaLog.History(r.Context(), orderID)
	if err != nil && !errors.Is(err, storage.ErrOrderNotFound) {
		h.log.Error("failed to read saga log", "order_id", orderID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "saga_log_unavailable", "")
		return
	}
	if len(history) == 0 {
		writeError(w, http.StatusNotFound, "order_not_found", "")
		return
	}

	latest := history[len(history)-1]
	resp := orderStatusResponse{
		OrderID:            orderID,
		Phase:              latest.Phase,
		Reason:             latest.Reason,
		CompensationFailed: latest.CompensationFailed,
		History:            make([]phaseEntry, len(history)),
	}
	for i, e := range history {
		resp.History[i] = phaseEntry{
			Phase:     e.Phase,
			RequestID: e.RequestID,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fatalStatus maps an orchestrator error to an HTTP status. These are the
// errors that left the order in-flight; the saga itself never surfaces
// business failures here.
func fatalStatus(err error) int {
	var logErr *domain.SagaLogWriteError
	switch {
	case errors.As(err, &logErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

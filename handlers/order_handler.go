package handlers

import (
	"net/http"

	"github.com/upb/order-processing/middleware"
	"github.com/upb/order-processing/services"
	"go.uber.org/zap"
)

// OrderHandler exposes the order routes. Order persistence belongs to the
// business layer, so every operation answers 501 once the caller has passed
// the auth gates.
type OrderHandler struct {
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(logger *zap.Logger) *OrderHandler {
	return &OrderHandler{logger: logger}
}

// HandleList handles GET /api/orders
func (h *OrderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, r, "list")
}

// HandleGet handles GET /api/orders/{id}
func (h *OrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, r, "get")
}

// HandleCreate handles POST /api/orders
func (h *OrderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, r, "create")
}

// HandleFulfill handles POST /api/orders/{id}/fulfill
func (h *OrderHandler) HandleFulfill(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, r, "fulfill")
}

func (h *OrderHandler) notImplemented(w http.ResponseWriter, r *http.Request, op string) {
	fields := []zap.Field{zap.String("operation", op)}
	if claims := middleware.IdentityFromContext(r.Context()); claims != nil {
		fields = append(fields, zap.String("subject", claims.SubjectID))
	}
	h.logger.Debug("order operation not available", fields...)
	HandleServiceError(w, services.ErrNotImplemented, h.logger)
}

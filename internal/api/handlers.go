package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/example/ec-shop/internal/api/middleware"
	"github.com/example/ec-shop/internal/command"
	"github.com/example/ec-shop/internal/domain/inventory"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/product"
	"github.com/example/ec-shop/internal/domain/user"
	"github.com/example/ec-shop/internal/query"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
	}
}

// Order Handlers

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateOrder
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	// The resolved identity wins over whatever the body claims.
	cmd.UserID = middleware.GetUserID(r.Context())
	// Direct API creation always enters as pending; the processed entry
	// state is reserved for the payment-completion path.
	cmd.InitialStatus = order.StatusPending

	o, err := h.cmdHandler.CreateOrder(r.Context(), cmd)
	if err != nil {
		respondError(w, err.Error(), statusForError(err))
		return
	}

	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	orders, err := h.queryHandler.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		respondError(w, err.Error(), statusForError(err))
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	id = strings.TrimSuffix(id, "/cancel")

	o, err := h.queryHandler.GetOrder(r.Context(), id)
	if err != nil {
		respondError(w, err.Error(), statusForError(err))
		return
	}

	// Users can only access their own orders; admins can access all.
	if o.UserID != middleware.GetUserID(r.Context()) && !isAdmin(r) {
		respondError(w, "forbidden", http.StatusForbidden)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/orders/")
	id := strings.TrimSuffix(path, "/cancel")

	o, err := h.queryHandler.GetOrder(r.Context(), id)
	if err != nil {
		respondError(w, err.Error(), statusForError(err))
		return
	}
	if o.UserID != middleware.GetUserID(r.Context()) && !isAdmin(r) {
		respondError(w, "forbidden", http.StatusForbidden)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	cmd := command.CancelOrder{OrderID: id, Reason: req.Reason}
	if err := h.cmdHandler.CancelOrder(r.Context(), cmd); err != nil {
		respondError(w, err.Error(), statusForError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Admin Handlers

func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListOrders(r.Context())
	if err != nil {
		respondError(w, err.Error(), statusForError(err))
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrdersCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.queryHandler.CountOrders(r.Context())
	if err != nil {
		respondError(w, err.Error(), statusForError(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handlers) ChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/admin/orders/")
	id = strings.TrimSuffix(id, "/status")

	var req struct {
		Status order.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	cmd := command.ChangeOrderStatus{OrderID: id, NewStatus: req.Status}
	o, err := h.cmdHandler.ChangeOrderStatus(r.Context(), cmd)
	if err != nil {
		respondError(w, err.Error(), statusForError(err))
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/admin/orders/")

	cmd := command.DeleteOrder{OrderID: id}
	if err := h.cmdHandler.DeleteOrder(r.Context(), cmd); err != nil {
		respondError(w, err.Error(), statusForError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

// statusForError maps the workflow's typed errors to HTTP status codes. The
// workflow itself never touches the transport.
func statusForError(err error) int {
	var oos *order.OutOfStockError
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, command.ErrOrderConflict),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.As(err, &oos):
		return http.StatusConflict
	case errors.Is(err, command.ErrInvalidUser),
		errors.Is(err, command.ErrInvalidProduct),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}

// isAdmin checks if the current user has the admin role.
func isAdmin(r *http.Request) bool {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return false
	}
	return claims.Role == "admin"
}

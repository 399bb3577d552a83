package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/ecommerce-checkout/internal/domain"
	"github.com/jcmexdev/ecommerce-checkout/internal/pricing"
	"github.com/jcmexdev/ecommerce-checkout/internal/settlement"
)

// headerUserID carries the caller identity, set by the authenticating
// gateway in front of this service.
const headerUserID = "X-User-Id"

// OrderCreator is the price-authority port: it re-prices the submitted items
// and persists the order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, userID string, items []pricing.SubmittedItem) (*domain.Order, error)
}

// Settler performs payment settlement and delivery marking.
type Settler interface {
	SettlePayment(ctx context.Context, orderID, ref string, payer settlement.PayerInfo) (*domain.Order, error)
	MarkDelivered(ctx context.Context, orderID string) (*domain.Order, error)
}

// OrderReader serves the plain lookups.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
}

// Handler handles incoming HTTP requests for the checkout surface.
type Handler struct {
	creator OrderCreator
	settler Settler
	reader  OrderReader
}

func NewHandler(creator OrderCreator, settler Settler, reader OrderReader) *Handler {
	return &Handler{
		creator: creator,
		settler: settler,
		reader:  reader,
	}
}

// CreateOrder parses the untrusted payload, converts it into typed submitted
// items and hands them to the price authority. Prices in the payload never
// reach persistence.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id_required", "missing "+headerUserID+" header")
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	items := make([]pricing.SubmittedItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_item", "product_id and a positive quantity are required")
			return
		}
		items = append(items, pricing.SubmittedItem{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			ClaimedPrice: it.Price,
		})
	}

	order, err := h.creator.CreateOrder(r.Context(), userID, items)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapOrderToResponse(order))
}

// PayOrder settles an external payment against the order.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req PayOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.PaymentRef == "" {
		writeError(w, http.StatusBadRequest, "payment_ref_required", "")
		return
	}

	order, err := h.settler.SettlePayment(r.Context(), orderID, req.PaymentRef, settlement.PayerInfo{
		Email: req.PayerEmail,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// DeliverOrder marks an order delivered.
func (h *Handler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.settler.MarkDelivered(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// GetOrderByID retrieves a single order by its ID.
func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	order, err := h.reader.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// ListMyOrders returns the calling user's orders.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id_required", "missing "+headerUserID+" header")
		return
	}

	orders, err := h.reader.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapOrders(orders))
}

// ListOrders returns every order.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.reader.ListOrders(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, mapOrders(orders))
}

func mapOrders(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = mapOrderToResponse(o)
	}
	return out
}

// writeDomainError maps the error taxonomy onto HTTP statuses: validation
// and payment-integrity failures are the client's fault (400), a missing
// order is 404, a lost settlement race is 409, and anything unclassified is
// treated as a transient infrastructure fault the caller may retry.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNoOrderItems):
		writeError(w, http.StatusBadRequest, "no_order_items", err.Error())
	case errors.Is(err, domain.ErrProductMismatch):
		writeError(w, http.StatusBadRequest, "product_mismatch", err.Error())
	case errors.Is(err, domain.ErrPaymentNotVerified):
		writeError(w, http.StatusBadRequest, "payment_not_verified", err.Error())
	case errors.Is(err, domain.ErrDuplicateTransaction):
		writeError(w, http.StatusBadRequest, "duplicate_transaction", err.Error())
	case errors.Is(err, domain.ErrAmountMismatch):
		writeError(w, http.StatusBadRequest, "amount_mismatch", err.Error())
	case errors.Is(err, domain.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, "already_paid", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	default:
		// Internal detail stays in the log, not the response body.
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", domain.ErrStoreUnavailable.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

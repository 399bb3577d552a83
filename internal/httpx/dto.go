package httpx

import (
	"time"

	"github.com/jcmexdev/ecommerce-checkout/internal/domain"
)

type CreateOrderRequest struct {
	Items []OrderItemDTO `json:"items"`
}

// OrderItemDTO is one untrusted order line as submitted by the client. The
// price field is accepted for audit purposes only; billing always uses the
// catalog price.
type OrderItemDTO struct {
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Price     domain.Money `json:"price"`
}

type PayOrderRequest struct {
	PaymentRef string `json:"payment_ref"`
	PayerEmail string `json:"payer_email,omitempty"`
}

type PaymentResultResponse struct {
	Ref        string `json:"ref"`
	Status     string `json:"status"`
	PayerEmail string `json:"payer_email,omitempty"`
	SettledAt  string `json:"settled_at"`
}

type OrderResponse struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"user_id"`
	Items         []OrderItemResponse    `json:"items"`
	ItemsPrice    domain.Money           `json:"items_price"`
	TaxPrice      domain.Money           `json:"tax_price"`
	ShippingPrice domain.Money           `json:"shipping_price"`
	TotalPrice    domain.Money           `json:"total_price"`
	IsPaid        bool                   `json:"is_paid"`
	PaidAt        string                 `json:"paid_at,omitempty"`
	Payment       *PaymentResultResponse `json:"payment_result,omitempty"`
	IsDelivered   bool                   `json:"is_delivered"`
	DeliveredAt   string                 `json:"delivered_at,omitempty"`
	CreatedAt     string                 `json:"created_at"`
}

type OrderItemResponse struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name,omitempty"`
	Quantity  int          `json:"quantity"`
	Price     domain.Money `json:"price"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// mapOrderToResponse converts the internal order entity to the HTTP response format.
func mapOrderToResponse(order *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:            order.ID,
		UserID:        order.UserID,
		Items:         mapItems(order.Items),
		ItemsPrice:    order.ItemsPrice,
		TaxPrice:      order.TaxPrice,
		ShippingPrice: order.ShippingPrice,
		TotalPrice:    order.TotalPrice,
		IsPaid:        order.IsPaid,
		IsDelivered:   order.IsDelivered,
		CreatedAt:     order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.PaidAt != nil {
		resp.PaidAt = order.PaidAt.UTC().Format(time.RFC3339)
	}
	if order.DeliveredAt != nil {
		resp.DeliveredAt = order.DeliveredAt.UTC().Format(time.RFC3339)
	}
	if order.Payment != nil {
		resp.Payment = &PaymentResultResponse{
			Ref:        order.Payment.Ref,
			Status:     order.Payment.Status,
			PayerEmail: order.Payment.PayerEmail,
			SettledAt:  order.Payment.SettledAt.UTC().Format(time.RFC3339),
		}
	}
	return resp
}

func mapItems(items []domain.OrderLineItem) []OrderItemResponse {
	out := make([]OrderItemResponse, len(items))
	for i, it := range items {
		out[i] = OrderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
	}
	return out
}

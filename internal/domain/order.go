package domain

import "time"

// CatalogProduct is the authoritative price record for a product. The catalog
// is owned by an external system; this core only ever reads it.
type CatalogProduct struct {
	ID    string
	Name  string
	Price Money
}

// OrderLineItem is a priced line on a persisted order. Price is always the
// catalog price observed at order-creation time — a historical snapshot that
// later catalog changes must not alter — and never a client-submitted value.
type OrderLineItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     Money
}

func (i OrderLineItem) Subtotal() Money {
	return i.Price.MulInt(i.Quantity)
}

// PaymentResult records the external payment confirmation an order was
// settled with. Ref is globally unique across all orders: one payment
// confirmation settles at most one order, ever.
type PaymentResult struct {
	Ref        string
	Status     string
	PayerEmail string
	SettledAt  time.Time
}

// Order is the aggregate shared by pricing and settlement.
//
// Invariants: TotalPrice == ItemsPrice + TaxPrice + ShippingPrice, fixed at
// creation; IsPaid transitions false→true exactly once and never back.
type Order struct {
	ID     string
	UserID string
	Items  []OrderLineItem

	ItemsPrice    Money
	TaxPrice      Money
	ShippingPrice Money
	TotalPrice    Money

	IsPaid  bool
	PaidAt  *time.Time
	Payment *PaymentResult

	IsDelivered bool
	DeliveredAt *time.Time

	CreatedAt time.Time
}

// Package pricing is the price authority for order creation: every price on
// a persisted order is re-derived from the catalog here, and the totals are
// computed once, deterministically, in fixed-point decimal. Client-submitted
// prices are carried only so the boundary can hand us the raw claim — they
// are never read.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/ecommerce-checkout/internal/domain"
)

// Catalog is the read-only view of the external product store. FindByIDs must
// resolve all ids in a single batch query; callers rely on that to bound
// latency on multi-line orders.
type Catalog interface {
	FindByIDs(ctx context.Context, ids []string) ([]domain.CatalogProduct, error)
}

// OrderInserter persists a fully priced order. Insert is all-or-nothing: a
// failed insert leaves no partial order behind.
type OrderInserter interface {
	InsertOrder(ctx context.Context, order *domain.Order) error
}

// SubmittedItem is one untrusted line from the client.
type SubmittedItem struct {
	ProductID string
	Quantity  int

	// ClaimedPrice is what the client says the product costs. It exists so
	// audit logs can show the gap when a tampered client lies; pricing
	// itself never reads it.
	ClaimedPrice domain.Money
}

// Policy holds the injected tax and shipping parameters. Shipping is free at
// or above FreeShippingAt, otherwise the flat Fee applies.
type Policy struct {
	TaxRate        decimal.Decimal
	ShippingFee    domain.Money
	FreeShippingAt domain.Money
}

// Totals is the monetary breakdown of an order.
type Totals struct {
	ItemsPrice    domain.Money
	TaxPrice      domain.Money
	ShippingPrice domain.Money
	TotalPrice    domain.Money
}

// Pricer re-prices submitted items against the catalog and creates orders.
type Pricer struct {
	catalog Catalog
	orders  OrderInserter
	policy  Policy
	now     func() time.Time
}

func NewPricer(catalog Catalog, orders OrderInserter, policy Policy) *Pricer {
	return &Pricer{
		catalog: catalog,
		orders:  orders,
		policy:  policy,
		now:     time.Now,
	}
}

// PriceOrder resolves the authoritative price for every submitted item.
//
// The match is validated by count: if fewer distinct catalog products come
// back than distinct product ids were requested, the whole order is rejected
// instead of silently dropping the unmatched lines. Dropping them would let a
// client sneak a nonexistent product id in to shrink the total.
func (p *Pricer) PriceOrder(ctx context.Context, items []SubmittedItem) ([]domain.OrderLineItem, error) {
	if len(items) == 0 {
		return nil, domain.ErrNoOrderItems
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return nil, fmt.Errorf("%w: item without product id", domain.ErrProductMismatch)
		}
		if _, dup := seen[it.ProductID]; !dup {
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}
	}

	products, err := p.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("pricing: fetch catalog products: %w", err)
	}

	byID := make(map[string]domain.CatalogProduct, len(products))
	for _, prod := range products {
		byID[prod.ID] = prod
	}
	if len(byID) < len(ids) {
		return nil, domain.ErrProductMismatch
	}

	lines := make([]domain.OrderLineItem, len(items))
	for i, it := range items {
		prod := byID[it.ProductID]
		if !it.ClaimedPrice.Equal(prod.Price) && !it.ClaimedPrice.Equal(domain.Zero) {
			slog.WarnContext(ctx, "client-submitted price ignored",
				"product_id", it.ProductID,
				"claimed", it.ClaimedPrice.String(),
				"catalog", prod.Price.String(),
			)
		}
		lines[i] = domain.OrderLineItem{
			ProductID: prod.ID,
			Name:      prod.Name,
			Quantity:  it.Quantity,
			Price:     prod.Price,
		}
	}
	return lines, nil
}

// ComputeTotals derives the order totals from priced lines. Pure and
// deterministic: identical input yields byte-identical output, and
// TotalPrice always equals the sum of the three components.
func (p *Pricer) ComputeTotals(lines []domain.OrderLineItem) Totals {
	items := domain.Zero
	for _, l := range lines {
		items = items.Add(l.Subtotal())
	}

	tax := items.MulRate(p.policy.TaxRate)

	shipping := p.policy.ShippingFee
	if !items.LessThan(p.policy.FreeShippingAt) {
		shipping = domain.Zero
	}

	return Totals{
		ItemsPrice:    items,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    items.Add(tax).Add(shipping),
	}
}

// CreateOrder prices the submitted items, computes totals and persists the
// order in one pass. Nothing is written unless pricing succeeded for every
// line.
func (p *Pricer) CreateOrder(ctx context.Context, userID string, items []SubmittedItem) (*domain.Order, error) {
	lines, err := p.PriceOrder(ctx, items)
	if err != nil {
		return nil, err
	}

	totals := p.ComputeTotals(lines)

	order := &domain.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Items:         lines,
		ItemsPrice:    totals.ItemsPrice,
		TaxPrice:      totals.TaxPrice,
		ShippingPrice: totals.ShippingPrice,
		TotalPrice:    totals.TotalPrice,
		CreatedAt:     p.now().UTC(),
	}

	if err := p.orders.InsertOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("pricing: persist order: %w", err)
	}

	slog.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"user_id", userID,
		"total", order.TotalPrice.String(),
	)
	return order, nil
}

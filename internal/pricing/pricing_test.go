package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/ecommerce-checkout/internal/domain"
)

type fakeCatalog struct {
	products map[string]domain.CatalogProduct
	calls    int
	err      error
}

func (f *fakeCatalog) FindByIDs(_ context.Context, ids []string) ([]domain.CatalogProduct, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.CatalogProduct
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeInserter struct {
	inserted []*domain.Order
	err      error
}

func (f *fakeInserter) InsertOrder(_ context.Context, o *domain.Order) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, o)
	return nil
}

// testPolicy matches the documented end-to-end example: 10% tax, flat 10.00
// shipping below a 100.00 free-shipping threshold.
func testPolicy() Policy {
	return Policy{
		TaxRate:        decimal.RequireFromString("0.10"),
		ShippingFee:    domain.MustMoney("10.00"),
		FreeShippingAt: domain.MustMoney("100.00"),
	}
}

func catalogWith(products ...domain.CatalogProduct) *fakeCatalog {
	m := make(map[string]domain.CatalogProduct, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &fakeCatalog{products: m}
}

func TestPriceOrderUsesCatalogPrices(t *testing.T) {
	catalog := catalogWith(domain.CatalogProduct{ID: "p1", Name: "Widget", Price: domain.MustMoney("25.00")})
	pricer := NewPricer(catalog, &fakeInserter{}, testPolicy())

	lines, err := pricer.PriceOrder(context.Background(), []SubmittedItem{
		{ProductID: "p1", Quantity: 2, ClaimedPrice: domain.MustMoney("1.00")},
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	assert.Equal(t, "25.00", lines[0].Price.String(), "client-claimed price must be discarded")
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Widget", lines[0].Name)
}

func TestPriceOrderBatchesCatalogReads(t *testing.T) {
	catalog := catalogWith(
		domain.CatalogProduct{ID: "p1", Price: domain.MustMoney("5.00")},
		domain.CatalogProduct{ID: "p2", Price: domain.MustMoney("7.50")},
	)
	pricer := NewPricer(catalog, &fakeInserter{}, testPolicy())

	_, err := pricer.PriceOrder(context.Background(), []SubmittedItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 3},
		{ProductID: "p1", Quantity: 2}, // repeated product, still one fetch
	})
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.calls, "all catalog entries must be fetched in one query")
}

func TestPriceOrderRejectsMissingProducts(t *testing.T) {
	catalog := catalogWith(domain.CatalogProduct{ID: "p1", Price: domain.MustMoney("25.00")})
	inserter := &fakeInserter{}
	pricer := NewPricer(catalog, inserter, testPolicy())

	_, err := pricer.CreateOrder(context.Background(), "user-1", []SubmittedItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "ghost", Quantity: 1}, // nonexistent product must fail the whole order
	})
	require.ErrorIs(t, err, domain.ErrProductMismatch)
	assert.Empty(t, inserter.inserted, "no partial order may be persisted when pricing fails")
}

func TestPriceOrderRejectsEmptyInput(t *testing.T) {
	pricer := NewPricer(catalogWith(), &fakeInserter{}, testPolicy())

	_, err := pricer.PriceOrder(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrNoOrderItems)
}

func TestPriceOrderCatalogFailure(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("catalog down")}
	pricer := NewPricer(catalog, &fakeInserter{}, testPolicy())

	_, err := pricer.PriceOrder(context.Background(), []SubmittedItem{{ProductID: "p1", Quantity: 1}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrProductMismatch)
}

func TestComputeTotalsExample(t *testing.T) {
	pricer := NewPricer(catalogWith(), &fakeInserter{}, testPolicy())

	lines := []domain.OrderLineItem{
		{ProductID: "p1", Quantity: 2, Price: domain.MustMoney("25.00")},
	}

	totals := pricer.ComputeTotals(lines)
	assert.Equal(t, "50.00", totals.ItemsPrice.String())
	assert.Equal(t, "5.00", totals.TaxPrice.String())
	assert.Equal(t, "10.00", totals.ShippingPrice.String())
	assert.Equal(t, "65.00", totals.TotalPrice.String())
}

func TestComputeTotalsIsDeterministic(t *testing.T) {
	pricer := NewPricer(catalogWith(), &fakeInserter{}, testPolicy())

	lines := []domain.OrderLineItem{
		{ProductID: "p1", Quantity: 3, Price: domain.MustMoney("19.99")},
		{ProductID: "p2", Quantity: 1, Price: domain.MustMoney("0.99")},
	}

	first := pricer.ComputeTotals(lines)
	second := pricer.ComputeTotals(lines)
	assert.Equal(t, first, second)

	sum := first.ItemsPrice.Add(first.TaxPrice).Add(first.ShippingPrice)
	assert.True(t, first.TotalPrice.Equal(sum), "total must equal the sum of its components")
}

func TestComputeTotalsFreeShippingThreshold(t *testing.T) {
	pricer := NewPricer(catalogWith(), &fakeInserter{}, testPolicy())

	atThreshold := pricer.ComputeTotals([]domain.OrderLineItem{
		{ProductID: "p1", Quantity: 4, Price: domain.MustMoney("25.00")},
	})
	assert.Equal(t, "0.00", atThreshold.ShippingPrice.String())
	assert.Equal(t, "110.00", atThreshold.TotalPrice.String())

	below := pricer.ComputeTotals([]domain.OrderLineItem{
		{ProductID: "p1", Quantity: 3, Price: domain.MustMoney("25.00")},
	})
	assert.Equal(t, "10.00", below.ShippingPrice.String())
}

func TestCreateOrderPersistsTrustedTotals(t *testing.T) {
	catalog := catalogWith(domain.CatalogProduct{ID: "p1", Name: "Widget", Price: domain.MustMoney("25.00")})
	inserter := &fakeInserter{}
	pricer := NewPricer(catalog, inserter, testPolicy())

	order, err := pricer.CreateOrder(context.Background(), "user-1", []SubmittedItem{
		{ProductID: "p1", Quantity: 2, ClaimedPrice: domain.MustMoney("1.00")},
	})
	require.NoError(t, err)
	require.Len(t, inserter.inserted, 1)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, "65.00", order.TotalPrice.String())
	assert.Equal(t, "25.00", order.Items[0].Price.String())
	assert.False(t, order.IsPaid)
	assert.False(t, order.CreatedAt.IsZero())
}

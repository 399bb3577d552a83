package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/ecommerce-checkout/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "checkout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedOrder(t *testing.T, st *Store, userID, total string) *domain.Order {
	t.Helper()
	order := &domain.Order{
		ID:     uuid.NewString(),
		UserID: userID,
		Items: []domain.OrderLineItem{
			{ProductID: "p1", Name: "Widget", Quantity: 2, Price: domain.MustMoney("25.00")},
		},
		ItemsPrice:    domain.MustMoney("50.00"),
		TaxPrice:      domain.MustMoney("5.00"),
		ShippingPrice: domain.MustMoney("10.00"),
		TotalPrice:    domain.MustMoney(total),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, st.InsertOrder(context.Background(), order))
	return order
}

func TestFindByIDsBatch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertProduct(ctx, domain.CatalogProduct{ID: "p1", Name: "Widget", Price: domain.MustMoney("25.00")}))
	require.NoError(t, st.UpsertProduct(ctx, domain.CatalogProduct{ID: "p2", Name: "Gadget", Price: domain.MustMoney("9.99")}))

	products, err := st.FindByIDs(ctx, []string{"p1", "p2", "ghost"})
	require.NoError(t, err)
	assert.Len(t, products, 2, "missing ids yield fewer rows, never an error")

	byID := map[string]domain.CatalogProduct{}
	for _, p := range products {
		byID[p.ID] = p
	}
	assert.Equal(t, "25.00", byID["p1"].Price.String())
	assert.Equal(t, "9.99", byID["p2"].Price.String())

	empty, err := st.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInsertAndGetOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created := seedOrder(t, st, "user-1", "65.00")

	got, err := st.GetOrder(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "65.00", got.TotalPrice.String())
	assert.False(t, got.IsPaid)
	assert.Nil(t, got.Payment)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "25.00", got.Items[0].Price.String())
	assert.Equal(t, 2, got.Items[0].Quantity)

	_, err = st.GetOrder(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMarkPaidTransitionsOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	order := seedOrder(t, st, "user-1", "65.00")
	res := domain.PaymentResult{Ref: "PAY-1", Status: "COMPLETED", PayerEmail: "buyer@example.com", SettledAt: time.Now().UTC()}

	paid, err := st.MarkPaid(ctx, order.ID, res, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.Payment)
	assert.Equal(t, "PAY-1", paid.Payment.Ref)
	assert.Equal(t, "buyer@example.com", paid.Payment.PayerEmail)

	// Second attempt on the same order loses the CAS.
	_, err = st.MarkPaid(ctx, order.ID, domain.PaymentResult{Ref: "PAY-2"}, time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrAlreadyPaid)

	// The order stays paid with the original reference.
	got, err := st.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Equal(t, "PAY-1", got.Payment.Ref)
}

func TestMarkPaidRejectsReusedReference(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := seedOrder(t, st, "user-1", "65.00")
	second := seedOrder(t, st, "user-2", "65.00")

	_, err := st.MarkPaid(ctx, first.ID, domain.PaymentResult{Ref: "PAY-1"}, time.Now().UTC())
	require.NoError(t, err)

	// Same reference against a different order trips the unique index.
	_, err = st.MarkPaid(ctx, second.ID, domain.PaymentResult{Ref: "PAY-1"}, time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrDuplicateTransaction)

	got, err := st.GetOrder(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPaid, "losing order must remain unpaid")
}

func TestMarkPaidMissingOrder(t *testing.T) {
	st := newTestStore(t)

	_, err := st.MarkPaid(context.Background(), "missing", domain.PaymentResult{Ref: "PAY-1"}, time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestPaymentRefUsed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	order := seedOrder(t, st, "user-1", "65.00")

	used, err := st.PaymentRefUsed(ctx, "PAY-1")
	require.NoError(t, err)
	assert.False(t, used)

	_, err = st.MarkPaid(ctx, order.ID, domain.PaymentResult{Ref: "PAY-1"}, time.Now().UTC())
	require.NoError(t, err)

	used, err = st.PaymentRefUsed(ctx, "PAY-1")
	require.NoError(t, err)
	assert.True(t, used)
}

func TestMarkDelivered(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	order := seedOrder(t, st, "user-1", "65.00")

	delivered, err := st.MarkDelivered(ctx, order.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, delivered.IsDelivered)
	require.NotNil(t, delivered.DeliveredAt)

	_, err = st.MarkDelivered(ctx, "missing", time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestListOrders(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedOrder(t, st, "user-1", "65.00")
	seedOrder(t, st, "user-1", "65.00")
	seedOrder(t, st, "user-2", "65.00")

	mine, err := st.ListOrdersByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, o := range mine {
		assert.Equal(t, "user-1", o.UserID)
		assert.NotEmpty(t, o.Items)
	}

	all, err := st.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

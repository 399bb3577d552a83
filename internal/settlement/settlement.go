// Package settlement verifies external payment confirmations against orders
// and performs the one-way unpaid→paid transition. Every step is a hard
// precondition: the first failure aborts with no partial mutation, and the
// store's conditional update plus unique payment-ref index make the final
// write atomic with respect to concurrent attempts.
package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcmexdev/ecommerce-checkout/internal/domain"
	"github.com/jcmexdev/ecommerce-checkout/internal/paypal"
)

// Oracle is the external payment-verification service.
type Oracle interface {
	Verify(ctx context.Context, ref string) (paypal.VerifyResult, error)
}

// OrderStore is the slice of persistence the settlement flow needs.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	PaymentRefUsed(ctx context.Context, ref string) (bool, error)

	// MarkPaid must be a conditional write: it succeeds only if the order is
	// currently unpaid and the payment ref is unused anywhere, failing with
	// domain.ErrAlreadyPaid or domain.ErrDuplicateTransaction otherwise.
	MarkPaid(ctx context.Context, orderID string, res domain.PaymentResult, paidAt time.Time) (*domain.Order, error)

	MarkDelivered(ctx context.Context, orderID string, at time.Time) (*domain.Order, error)
}

// PayerInfo is the caller-supplied payer detail recorded alongside the
// oracle's own output.
type PayerInfo struct {
	Email string
}

// Service settles payments and marks deliveries.
type Service struct {
	store  OrderStore
	oracle Oracle
	now    func() time.Time

	// oracleTimeout bounds the verification call. Expiry is treated as a
	// verification failure: fail closed, never assume an unverified payment
	// is valid.
	oracleTimeout time.Duration
}

func NewService(store OrderStore, oracle Oracle, oracleTimeout time.Duration) *Service {
	return &Service{
		store:         store,
		oracle:        oracle,
		now:           time.Now,
		oracleTimeout: oracleTimeout,
	}
}

// SettlePayment verifies the payment reference with the oracle and, if every
// check passes, atomically transitions the order to paid.
//
// Preconditions, in order; the first failure aborts:
//  1. the oracle confirms the reference          (domain.ErrPaymentNotVerified)
//  2. the reference settled no earlier order     (domain.ErrDuplicateTransaction)
//  3. the order exists                           (domain.ErrOrderNotFound)
//  4. the settled amount equals the order total  (domain.ErrAmountMismatch)
//
// The replay check repeats inside the store's conditional write, so under
// concurrent calls with the same reference at most one succeeds.
func (s *Service) SettlePayment(ctx context.Context, orderID, ref string, payer PayerInfo) (*domain.Order, error) {
	vctx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()

	vr, err := s.oracle.Verify(vctx, ref)
	if err != nil {
		slog.WarnContext(ctx, "payment verification failed",
			"order_id", orderID, "payment_ref", ref, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentNotVerified, err)
	}
	if !vr.Verified {
		slog.WarnContext(ctx, "payment not verified by provider",
			"order_id", orderID, "payment_ref", ref, "status", vr.Status)
		return nil, fmt.Errorf("%w: provider status %s", domain.ErrPaymentNotVerified, vr.Status)
	}

	used, err := s.store.PaymentRefUsed(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("settlement: replay check: %w", err)
	}
	if used {
		slog.WarnContext(ctx, "payment reference replay rejected",
			"order_id", orderID, "payment_ref", ref)
		return nil, fmt.Errorf("%w: ref %s", domain.ErrDuplicateTransaction, ref)
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.TotalPrice.Matches(vr.Amount) {
		slog.WarnContext(ctx, "settled amount does not match order total",
			"order_id", orderID,
			"payment_ref", ref,
			"order_total", order.TotalPrice.String(),
			"settled_amount", vr.Amount,
		)
		return nil, fmt.Errorf("%w: order total %s, settled %q",
			domain.ErrAmountMismatch, order.TotalPrice, vr.Amount)
	}

	now := s.now().UTC()
	result := domain.PaymentResult{
		Ref:        ref,
		Status:     vr.Status,
		PayerEmail: payerEmail(vr.PayerEmail, payer.Email),
		SettledAt:  now,
	}

	updated, err := s.store.MarkPaid(ctx, orderID, result, now)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order settled",
		"order_id", orderID, "payment_ref", ref, "amount", updated.TotalPrice.String())
	return updated, nil
}

// MarkDelivered flips the delivery flag on an existing order.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.store.MarkDelivered(ctx, orderID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "order delivered", "order_id", orderID)
	return order, nil
}

// payerEmail prefers the provider-reported address over the caller's claim.
func payerEmail(fromOracle, fromCaller string) string {
	if fromOracle != "" {
		return fromOracle
	}
	return fromCaller
}

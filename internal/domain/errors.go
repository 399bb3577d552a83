package domain

import "errors"

// Sentinel errors for every business-rule failure the core can produce.
// Callers classify with errors.Is; layers in between wrap with %w and never
// swallow. The three payment-integrity errors are terminal: they are
// surfaced to the caller verbatim and must never be retried automatically.
var (
	// ErrNoOrderItems: order creation with an empty item list.
	ErrNoOrderItems = errors.New("no order items")

	// ErrProductMismatch: at least one submitted product id has no catalog
	// entry. Checked by count so unmatched items are rejected, not dropped.
	ErrProductMismatch = errors.New("some products not found in catalog")

	// ErrOrderNotFound: no order exists for the given id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPaymentNotVerified: the payment oracle did not confirm the payment.
	// Oracle timeouts and transport failures map here too — fail closed.
	ErrPaymentNotVerified = errors.New("payment not verified")

	// ErrDuplicateTransaction: the payment reference has already settled an
	// order (replay / double-spend attempt).
	ErrDuplicateTransaction = errors.New("transaction has been used before")

	// ErrAmountMismatch: the oracle-confirmed amount does not equal the
	// order's total exactly.
	ErrAmountMismatch = errors.New("incorrect amount paid")

	// ErrAlreadyPaid: the order was paid by a concurrent or earlier call.
	ErrAlreadyPaid = errors.New("order is already paid")

	// ErrStoreUnavailable: transient persistence fault; safe for the caller
	// to retry.
	ErrStoreUnavailable = errors.New("order store unavailable")
)

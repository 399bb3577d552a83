package sqlite

import (
	"fmt"
	"time"

	"github.com/jcmexdev/ecommerce-checkout/internal/domain"
)

// row is satisfied by both *sql.Row and *sql.Rows.
type row interface {
	Scan(dest ...any) error
}

// scanOrder reads one orders row into a domain.Order (items loaded
// separately).
func scanOrder(r row) (*domain.Order, error) {
	var o domain.Order
	var itemsPrice, taxPrice, shippingPrice, total, createdAt string
	var paidAt, refV, statusV, emailV, settledAt, deliveredAt *string

	err := r.Scan(
		&o.ID, &o.UserID,
		&itemsPrice, &taxPrice, &shippingPrice, &total,
		&o.IsPaid, &paidAt, &refV, &statusV, &emailV, &settledAt,
		&o.IsDelivered, &deliveredAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if o.ItemsPrice, err = domain.ParseMoney(itemsPrice); err != nil {
		return nil, err
	}
	if o.TaxPrice, err = domain.ParseMoney(taxPrice); err != nil {
		return nil, err
	}
	if o.ShippingPrice, err = domain.ParseMoney(shippingPrice); err != nil {
		return nil, err
	}
	if o.TotalPrice, err = domain.ParseMoney(total); err != nil {
		return nil, err
	}

	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.PaidAt, err = parseTimePtr(paidAt); err != nil {
		return nil, err
	}
	if o.DeliveredAt, err = parseTimePtr(deliveredAt); err != nil {
		return nil, err
	}

	if refV != nil {
		res := domain.PaymentResult{Ref: *refV}
		if statusV != nil {
			res.Status = *statusV
		}
		if emailV != nil {
			res.PayerEmail = *emailV
		}
		if settledAt != nil {
			if res.SettledAt, err = parseTime(*settledAt); err != nil {
				return nil, err
			}
		}
		o.Payment = &res
	}

	return &o, nil
}

// SQLite has no native datetime type; we store RFC3339 TEXT.

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999999Z")
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

package middlewares

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jcmexdev/ecommerce-checkout/internal/pkg/cache"
)

const headerIdempotencyKey = "X-Idempotency-Key"

// Idempotency reserves the request's idempotency key in redis before the
// handler runs. A second request carrying the same key within the TTL is
// rejected with 409 instead of creating a second order. Requests without the
// header pass through untouched.
func Idempotency(c cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerIdempotencyKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			reserved, err := c.SetNX(r.Context(), c.GenerateKey("create-order", key), 1, ttl)
			if err != nil {
				// Redis being down must not take order creation with it;
				// the reservation is best-effort on top of the store's own
				// invariants.
				slog.WarnContext(r.Context(), "idempotency reservation unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !reserved {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "duplicate_request",
					"message": "idempotency key already used",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the checkout operations. idem guards order creation with
// an idempotency-key reservation; pass nil to disable (tests).
func NewRouter(handler *Handler, idem func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/orders", func(r chi.Router) {
		if idem != nil {
			r.With(idem).Post("/", handler.CreateOrder)
		} else {
			r.Post("/", handler.CreateOrder)
		}
		r.Get("/", handler.ListOrders)
		r.Get("/mine", handler.ListMyOrders)
		r.Get("/{id}", handler.GetOrderByID)
		r.Put("/{id}/pay", handler.PayOrder)
		r.Put("/{id}/deliver", handler.DeliverOrder)
	})
	return r
}

package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/roi007leaf/pdq-checkout/internal/http/response"
)

func NewRouter(h *CheckoutHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CorrelationMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok", "service": "api-gateway"})
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Post("/payment", h.ProcessPayment)
		r.Post("/shipping", h.ValidateShipping)
	})

	return r
}

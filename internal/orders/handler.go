package orders

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roi007leaf/pdq-checkout/internal/http/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetOrder serves GET /api/v1/orders/{id} for client status polling.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "id"))
	if orderID == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "order id is required", nil)
		return
	}
	order, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, order)
}

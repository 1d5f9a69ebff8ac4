package customer

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/creditbridge/creditbridge-api/internal/pkg/response"
)

// Handler handles customer HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates customer handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get handles GET /customers/{stripeCustomerID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	stripeCustomerID := chi.URLParam(r, "stripeCustomerID")

	c, err := h.service.GetByStripeID(r.Context(), stripeCustomerID)
	if err != nil {
		log.Error().Err(err).Str("stripe_customer_id", stripeCustomerID).Msg("customer lookup failed")
		response.InternalError(w)
		return
	}
	if c == nil {
		response.NotFound(w, "customer not found")
		return
	}

	response.OK(w, c)
}

package subscription

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/creditbridge/creditbridge-api/internal/domain/customer"
	"github.com/creditbridge/creditbridge-api/internal/pkg/response"
)

// Directory resolves Stripe customer ids to internal customers.
type Directory interface {
	GetByStripeID(ctx context.Context, stripeCustomerID string) (*customer.Customer, error)
}

// Handler handles subscription HTTP requests
type Handler struct {
	service   *Service
	directory Directory
}

// NewHandler creates subscription handler
func NewHandler(service *Service, directory Directory) *Handler {
	return &Handler{service: service, directory: directory}
}

// ListByCustomer handles GET /customers/{stripeCustomerID}/subscriptions
func (h *Handler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	stripeCustomerID := chi.URLParam(r, "stripeCustomerID")

	c, err := h.directory.GetByStripeID(r.Context(), stripeCustomerID)
	if err != nil {
		log.Error().Err(err).Str("stripe_customer_id", stripeCustomerID).Msg("customer lookup failed")
		response.InternalError(w)
		return
	}
	if c == nil {
		response.NotFound(w, "customer not found")
		return
	}

	subscriptions, err := h.service.ListByCustomer(r.Context(), c.ID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, subscriptions)
}

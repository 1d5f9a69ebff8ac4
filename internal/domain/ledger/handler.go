package ledger

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/creditbridge/creditbridge-api/internal/domain/customer"
	"github.com/creditbridge/creditbridge-api/internal/pkg/response"
)

// Directory resolves Stripe customer ids to internal customers.
type Directory interface {
	GetByStripeID(ctx context.Context, stripeCustomerID string) (*customer.Customer, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	service   *Service
	directory Directory
}

// NewHandler creates ledger handler
func NewHandler(service *Service, directory Directory) *Handler {
	return &Handler{service: service, directory: directory}
}

// ListTransactions handles GET /customers/{stripeCustomerID}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
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

	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	transactions, err := h.service.ListTransactions(r.Context(), c.ID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, transactions)
}

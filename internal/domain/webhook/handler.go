package webhook

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/creditbridge/creditbridge-api/internal/pkg/response"
)

// Stripe caps event payloads well below this; anything larger is not ours.
const maxPayloadBytes = 1 << 20

// Handler is the webhook HTTP boundary. Signature verification happens here,
// before any state is touched: a request that fails it gets a 400 and leaves
// no trace in the event log.
type Handler struct {
	service       *Service
	webhookSecret string
}

// NewHandler creates the webhook HTTP handler
func NewHandler(service *Service, webhookSecret string) *Handler {
	return &Handler{
		service:       service,
		webhookSecret: webhookSecret,
	}
}

// Routes returns the webhook routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/stripe", h.HandleStripe)
	return r
}

// HandleStripe verifies and processes one Stripe event.
// Status codes drive Stripe's redelivery: 2xx acknowledges, 4xx rejects a
// request that is not a valid signed event, 5xx asks for redelivery.
func (h *Handler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "Failed to read request body")
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		r.Header.Get("Stripe-Signature"),
		h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Warn().Err(err).Msg("webhook signature verification failed")
		response.BadRequest(w, "Invalid signature")
		return
	}

	log.Info().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Msg("webhook event received")

	outcome := h.service.Process(r.Context(), event)
	if !outcome.Processed {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]bool{"received": true})
}

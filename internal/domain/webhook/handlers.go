package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"

	"github.com/creditbridge/creditbridge-api/internal/domain/ledger"
	"github.com/creditbridge/creditbridge-api/internal/domain/subscription"
)

// handlePaymentIntentSucceeded settles a one-time purchase: resolve the
// customer, resolve the purchased prices through the originating checkout
// session's line items, record the transaction, grant mapped credits.
// Recurring line items are skipped here; checkout.session.completed owns
// them (see Catalog.lineCredits).
func (s *Service) handlePaymentIntentSucceeded(ctx context.Context, event stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return fmt.Errorf("decode payment intent: %w", err)
	}
	if pi.Customer == nil {
		return fmt.Errorf("payment intent %s has no customer", pi.ID)
	}

	cust, err := s.provider.GetCustomer(ctx, pi.Customer.ID)
	if err != nil {
		return err
	}
	c, err := s.dir.GetOrCreate(ctx, cust.ID, cust.Email, cust.Name)
	if err != nil {
		return err
	}

	credits, err := s.oneTimeCreditsForPaymentIntent(ctx, pi.ID)
	if err != nil {
		return err
	}

	chargeID := ""
	if pi.LatestCharge != nil {
		chargeID = pi.LatestCharge.ID
	}

	txn, err := s.ledger.RecordTransaction(ctx, ledger.RecordTransactionInput{
		CustomerID:      c.ID,
		PaymentIntentID: pi.ID,
		ChargeID:        chargeID,
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
		Status:          ledger.StatusSucceeded,
		ProductType:     ledger.ProductTypeCredits,
		Credits:         credits,
		Metadata:        pi.Metadata,
	})
	if err != nil {
		return err
	}

	if credits > 0 {
		applied, err := s.ledger.GrantCredits(ctx, c.ID, credits, txn.ID, "one-time purchase "+pi.ID)
		if err != nil {
			return err
		}
		if !applied {
			log.Debug().
				Str("transaction_id", txn.ID.String()).
				Msg("credits already granted for transaction")
		}
	}
	return nil
}

// oneTimeCreditsForPaymentIntent sums catalog credits over the one-time line
// items of the checkout session that originated the payment intent. Payment
// intents without a session (API-driven charges) grant nothing.
func (s *Service) oneTimeCreditsForPaymentIntent(ctx context.Context, paymentIntentID string) (int, error) {
	sessions, err := s.provider.SessionsForPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return 0, err
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	items, err := s.provider.SessionLineItems(ctx, sessions[0].ID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, item := range items {
		credits, recurring := s.catalog.lineCredits(item)
		if recurring {
			continue
		}
		total += credits
	}
	return total, nil
}

// handleCheckoutSessionCompleted settles the subscription part of a completed
// checkout: upsert the subscription row, record one transaction for the
// recurring line items, grant first-period credits. One-time line items are
// left to payment_intent.succeeded for the same purchase.
//
// If recording the transaction fails after the subscription row was upserted,
// the row is kept and the event reports failure. Redelivery converges on the
// existing row and completes the transaction.
func (s *Service) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}
	if sess.Customer == nil {
		log.Info().Str("session_id", sess.ID).Msg("checkout session has no customer, skipping")
		return nil
	}

	items, err := s.provider.SessionLineItems(ctx, sess.ID)
	if err != nil {
		return err
	}

	totalCredits := 0
	recurringPriceID := ""
	var recurringAmount int64
	hasRecurring := false
	for _, item := range items {
		credits, recurring := s.catalog.lineCredits(item)
		if !recurring {
			continue
		}
		hasRecurring = true
		totalCredits += credits
		recurringAmount += item.AmountTotal
		if recurringPriceID == "" {
			recurringPriceID = item.Price.ID
		}
	}
	if !hasRecurring {
		// Purely one-time session: settled by payment_intent.succeeded.
		return nil
	}
	if sess.Subscription == nil {
		return fmt.Errorf("checkout session %s has recurring items but no subscription", sess.ID)
	}

	email, name := "", ""
	if sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
		name = sess.CustomerDetails.Name
	}
	if email == "" {
		cust, err := s.provider.GetCustomer(ctx, sess.Customer.ID)
		if err != nil {
			return err
		}
		email, name = cust.Email, cust.Name
	}
	c, err := s.dir.GetOrCreate(ctx, sess.Customer.ID, email, name)
	if err != nil {
		return err
	}

	// The session payload carries no period bounds; read them from the
	// subscription object itself.
	ps, err := s.provider.GetSubscription(ctx, sess.Subscription.ID)
	if err != nil {
		return err
	}

	if err := s.subs.Upsert(ctx, subscription.UpsertInput{
		StripeSubscriptionID: ps.ID,
		CustomerID:           c.ID,
		StripePriceID:        recurringPriceID,
		Status:               subscription.Status(ps.Status),
		CurrentPeriodStart:   unixTime(ps.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(ps.CurrentPeriodEnd),
		CancelAtPeriodEnd:    ps.CancelAtPeriodEnd,
	}); err != nil {
		return err
	}

	paymentIntentID := ""
	if sess.PaymentIntent != nil {
		paymentIntentID = sess.PaymentIntent.ID
	}
	invoiceID := ""
	if sess.Invoice != nil {
		invoiceID = sess.Invoice.ID
	}

	txn, err := s.ledger.RecordTransaction(ctx, ledger.RecordTransactionInput{
		CustomerID:      c.ID,
		PaymentIntentID: paymentIntentID,
		InvoiceID:       invoiceID,
		Amount:          recurringAmount,
		Currency:        string(sess.Currency),
		Status:          ledger.StatusSucceeded,
		ProductType:     ledger.ProductTypeSubscription,
		Credits:         totalCredits,
	})
	if err != nil {
		return err
	}

	if totalCredits > 0 {
		applied, err := s.ledger.GrantCredits(ctx, c.ID, totalCredits, txn.ID, "subscription first period "+ps.ID)
		if err != nil {
			return err
		}
		if !applied {
			log.Debug().
				Str("transaction_id", txn.ID.String()).
				Msg("credits already granted for transaction")
		}
	}
	return nil
}

// handleSubscriptionUpdated syncs lifecycle fields from the provider.
// No credit side effects.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var ps stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &ps); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}

	return s.subs.UpdateStatus(ctx, ps.ID, subscription.StatusUpdate{
		Status:             subscription.Status(ps.Status),
		StripePriceID:      subscriptionPriceID(&ps),
		CurrentPeriodStart: unixTime(ps.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(ps.CurrentPeriodEnd),
		CancelAtPeriodEnd:  ps.CancelAtPeriodEnd,
	})
}

// handleSubscriptionDeleted marks the subscription canceled. The row is
// retained; balance and transaction history are untouched.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var ps stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &ps); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}
	return s.subs.Cancel(ctx, ps.ID)
}

// handleInvoicePaymentSucceeded settles recurring renewal billing. Invoices
// not tied to a subscription are ignored. The product is resolved from the
// subscription's current price, not from the invoice lines.
func (s *Service) handleInvoicePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}
	if inv.Subscription == nil {
		log.Info().Str("invoice_id", inv.ID).Msg("invoice not tied to a subscription, skipping")
		return nil
	}
	if inv.Customer == nil {
		return fmt.Errorf("invoice %s has no customer", inv.ID)
	}

	cust, err := s.provider.GetCustomer(ctx, inv.Customer.ID)
	if err != nil {
		return err
	}
	c, err := s.dir.GetOrCreate(ctx, cust.ID, cust.Email, cust.Name)
	if err != nil {
		return err
	}

	ps, err := s.provider.GetSubscription(ctx, inv.Subscription.ID)
	if err != nil {
		return err
	}
	credits := s.catalog.CreditsFor(subscriptionPriceID(ps))

	paymentIntentID := ""
	if inv.PaymentIntent != nil {
		paymentIntentID = inv.PaymentIntent.ID
	}
	chargeID := ""
	if inv.Charge != nil {
		chargeID = inv.Charge.ID
	}

	txn, err := s.ledger.RecordTransaction(ctx, ledger.RecordTransactionInput{
		CustomerID:      c.ID,
		PaymentIntentID: paymentIntentID,
		InvoiceID:       inv.ID,
		ChargeID:        chargeID,
		Amount:          inv.AmountPaid,
		Currency:        string(inv.Currency),
		Status:          ledger.StatusSucceeded,
		ProductType:     ledger.ProductTypeSubscription,
		Credits:         credits,
	})
	if err != nil {
		return err
	}

	if credits > 0 {
		applied, err := s.ledger.GrantCredits(ctx, c.ID, credits, txn.ID, "subscription renewal "+inv.Subscription.ID)
		if err != nil {
			return err
		}
		if !applied {
			log.Debug().
				Str("transaction_id", txn.ID.String()).
				Msg("credits already granted for transaction")
		}
	}
	return nil
}

func subscriptionPriceID(ps *stripe.Subscription) string {
	if ps == nil || ps.Items == nil || len(ps.Items.Data) == 0 || ps.Items.Data[0].Price == nil {
		return ""
	}
	return ps.Items.Data[0].Price.ID
}

func unixTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}

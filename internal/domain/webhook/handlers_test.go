package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v76"

	"github.com/creditbridge/creditbridge-api/internal/domain/ledger"
	"github.com/creditbridge/creditbridge-api/internal/domain/subscription"
)

func oneTimeItem(priceID string, amount int64) *stripe.LineItem {
	return &stripe.LineItem{
		Price:       &stripe.Price{ID: priceID},
		AmountTotal: amount,
	}
}

func recurringItem(priceID string, amount int64) *stripe.LineItem {
	return &stripe.LineItem{
		Price: &stripe.Price{
			ID:        priceID,
			Recurring: &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalMonth},
		},
		AmountTotal: amount,
	}
}

func TestPaymentIntentSucceededGrantsOnceAcrossRedelivery(t *testing.T) {
	env := newTestEnv(map[string]int{"price_small": 100})
	env.provider.customers["cus_1"] = &stripe.Customer{ID: "cus_1", Email: "a@example.com", Name: "Ada"}
	env.provider.sessionsByPI["pi_1"] = []*stripe.CheckoutSession{{ID: "cs_1"}}
	env.provider.lineItems["cs_1"] = []*stripe.LineItem{oneTimeItem("price_small", 2000)}

	event := testEvent(t, EventPaymentIntentSucceeded, &stripe.PaymentIntent{
		ID:           "pi_1",
		Customer:     &stripe.Customer{ID: "cus_1"},
		Amount:       2000,
		Currency:     "usd",
		LatestCharge: &stripe.Charge{ID: "ch_1"},
	})

	for i := 0; i < 2; i++ {
		if outcome := env.svc.Process(context.Background(), event); !outcome.Processed {
			t.Fatalf("delivery %d failed: %+v", i+1, outcome)
		}
	}

	c := env.dir.customers["cus_1"]
	if c == nil {
		t.Fatal("customer was not created")
	}
	if got := env.ledger.balances[c.ID]; got != 100 {
		t.Fatalf("balance after redelivery = %d, want 100", got)
	}
	if len(env.ledger.transactions) != 1 {
		t.Fatalf("expected one transaction, got %d", len(env.ledger.transactions))
	}
	txn := env.ledger.transactions[0]
	if txn.ProductType != ledger.ProductTypeCredits || txn.CreditsPurchased != 100 {
		t.Fatalf("unexpected transaction: %+v", txn)
	}
	if len(env.audit.entries) != 2 {
		t.Fatalf("each delivery gets its own audit row, got %d", len(env.audit.entries))
	}
}

func TestPaymentIntentSucceededUnmappedPriceGrantsNothing(t *testing.T) {
	env := newTestEnv(map[string]int{"price_small": 100})
	env.provider.customers["cus_1"] = &stripe.Customer{ID: "cus_1", Email: "a@example.com"}
	env.provider.sessionsByPI["pi_1"] = []*stripe.CheckoutSession{{ID: "cs_1"}}
	env.provider.lineItems["cs_1"] = []*stripe.LineItem{oneTimeItem("price_legacy", 500)}

	outcome := env.svc.Process(context.Background(), testEvent(t, EventPaymentIntentSucceeded, &stripe.PaymentIntent{
		ID:       "pi_1",
		Customer: &stripe.Customer{ID: "cus_1"},
		Amount:   500,
		Currency: "usd",
	}))
	if !outcome.Processed {
		t.Fatalf("unmapped price is not an error: %+v", outcome)
	}

	c := env.dir.customers["cus_1"]
	if got := env.ledger.balances[c.ID]; got != 0 {
		t.Fatalf("unmapped price must grant nothing, balance = %d", got)
	}
	if len(env.ledger.transactions) != 1 || env.ledger.transactions[0].CreditsPurchased != 0 {
		t.Fatalf("transaction must still be recorded with zero credits: %+v", env.ledger.transactions)
	}
}

func TestPaymentIntentSucceededSkipsRecurringLines(t *testing.T) {
	env := newTestEnv(map[string]int{"price_small": 100, "price_pro": 500})
	env.provider.customers["cus_1"] = &stripe.Customer{ID: "cus_1", Email: "a@example.com"}
	env.provider.sessionsByPI["pi_1"] = []*stripe.CheckoutSession{{ID: "cs_1"}}
	env.provider.lineItems["cs_1"] = []*stripe.LineItem{
		oneTimeItem("price_small", 2000),
		recurringItem("price_pro", 1500),
	}

	outcome := env.svc.Process(context.Background(), testEvent(t, EventPaymentIntentSucceeded, &stripe.PaymentIntent{
		ID:       "pi_1",
		Customer: &stripe.Customer{ID: "cus_1"},
		Amount:   3500,
		Currency: "usd",
	}))
	if !outcome.Processed {
		t.Fatalf("unexpected failure: %+v", outcome)
	}

	c := env.dir.customers["cus_1"]
	if got := env.ledger.balances[c.ID]; got != 100 {
		t.Fatalf("recurring lines belong to the checkout handler, balance = %d, want 100", got)
	}
}

func TestCheckoutSessionCompletedCreditsRecurringOnly(t *testing.T) {
	env := newTestEnv(map[string]int{"price_small": 100, "price_pro": 500})
	env.provider.customers["cus_1"] = &stripe.Customer{ID: "cus_1", Email: "a@example.com", Name: "Ada"}
	env.provider.lineItems["cs_1"] = []*stripe.LineItem{
		oneTimeItem("price_small", 2000),
		recurringItem("price_pro", 1500),
	}
	env.provider.subscriptions["sub_1"] = activeStripeSubscription("sub_1", "price_pro")

	event := testEvent(t, EventCheckoutSessionComplete, &stripe.CheckoutSession{
		ID:              "cs_1",
		Customer:        &stripe.Customer{ID: "cus_1"},
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{Email: "a@example.com", Name: "Ada"},
		Subscription:    &stripe.Subscription{ID: "sub_1"},
		Invoice:         &stripe.Invoice{ID: "in_1"},
		Currency:        "usd",
	})

	for i := 0; i < 2; i++ {
		if outcome := env.svc.Process(context.Background(), event); !outcome.Processed {
			t.Fatalf("delivery %d failed: %+v", i+1, outcome)
		}
	}

	c := env.dir.customers["cus_1"]
	if got := env.ledger.balances[c.ID]; got != 500 {
		t.Fatalf("only the recurring line is credited here, balance = %d, want 500", got)
	}
	if len(env.ledger.transactions) != 1 {
		t.Fatalf("expected one transaction, got %d", len(env.ledger.transactions))
	}
	txn := env.ledger.transactions[0]
	if txn.ProductType != ledger.ProductTypeSubscription || txn.Amount != 1500 {
		t.Fatalf("unexpected transaction: %+v", txn)
	}

	sub := env.subs.rows["sub_1"]
	if sub == nil {
		t.Fatal("subscription row was not created")
	}
	if sub.Status != subscription.StatusActive || sub.StripePriceID != "price_pro" {
		t.Fatalf("unexpected subscription row: %+v", sub)
	}
	if len(env.subs.rows) != 1 {
		t.Fatalf("redelivery must not create a second row, got %d", len(env.subs.rows))
	}
}

func TestCheckoutSessionRecordFailureKeepsRowAndConvergesOnRedelivery(t *testing.T) {
	env := newTestEnv(map[string]int{"price_pro": 500})
	env.provider.customers["cus_1"] = &stripe.Customer{ID: "cus_1", Email: "a@example.com", Name: "Ada"}
	env.provider.lineItems["cs_1"] = []*stripe.LineItem{recurringItem("price_pro", 1500)}
	env.provider.subscriptions["sub_1"] = activeStripeSubscription("sub_1", "price_pro")

	event := testEvent(t, EventCheckoutSessionComplete, &stripe.CheckoutSession{
		ID:              "cs_1",
		Customer:        &stripe.Customer{ID: "cus_1"},
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{Email: "a@example.com", Name: "Ada"},
		Subscription:    &stripe.Subscription{ID: "sub_1"},
		Invoice:         &stripe.Invoice{ID: "in_1"},
		Currency:        "usd",
	})

	// First delivery: the subscription row is upserted, then the ledger
	// write fails.
	env.ledger.recordErr = errors.New("connection reset")
	outcome := env.svc.Process(context.Background(), event)
	if outcome.Processed {
		t.Fatal("ledger failure must report the event as failed")
	}
	if env.subs.rows["sub_1"] == nil {
		t.Fatal("subscription row must survive the ledger failure")
	}
	if len(env.ledger.transactions) != 0 {
		t.Fatalf("no transaction should exist yet, got %d", len(env.ledger.transactions))
	}
	if len(env.audit.entries) != 1 || env.audit.entries[0].Processed {
		t.Fatalf("failed delivery must be audited as failure: %+v", env.audit.entries)
	}

	// Redelivery with the ledger healthy: the duplicate upsert is absorbed
	// and the transaction completes.
	env.ledger.recordErr = nil
	outcome = env.svc.Process(context.Background(), event)
	if !outcome.Processed {
		t.Fatalf("redelivery should complete: %+v", outcome)
	}
	if len(env.subs.rows) != 1 {
		t.Fatalf("redelivery must not create a second subscription row, got %d", len(env.subs.rows))
	}
	if len(env.ledger.transactions) != 1 {
		t.Fatalf("expected one transaction after redelivery, got %d", len(env.ledger.transactions))
	}

	c := env.dir.customers["cus_1"]
	if got := env.ledger.balances[c.ID]; got != 500 {
		t.Fatalf("balance after redelivery = %d, want 500", got)
	}
}

func TestCheckoutSessionWithoutRecurringLinesIsNoop(t *testing.T) {
	env := newTestEnv(map[string]int{"price_small": 100})
	env.provider.lineItems["cs_1"] = []*stripe.LineItem{oneTimeItem("price_small", 2000)}

	outcome := env.svc.Process(context.Background(), testEvent(t, EventCheckoutSessionComplete, &stripe.CheckoutSession{
		ID:       "cs_1",
		Customer: &stripe.Customer{ID: "cus_1"},
		Currency: "usd",
	}))
	if !outcome.Processed {
		t.Fatalf("unexpected failure: %+v", outcome)
	}
	if len(env.ledger.transactions) != 0 || len(env.subs.rows) != 0 {
		t.Fatal("one-time sessions are settled by the payment intent handler")
	}
}

func TestInvoicePaymentSucceededRenewalAddsCredits(t *testing.T) {
	env := newTestEnv(map[string]int{"price_pro": 500})
	env.provider.customers["cus_1"] = &stripe.Customer{ID: "cus_1", Email: "a@example.com", Name: "Ada"}
	env.provider.subscriptions["sub_1"] = activeStripeSubscription("sub_1", "price_pro")

	// Existing balance from earlier activity.
	c, err := env.dir.GetOrCreate(context.Background(), "cus_1", "a@example.com", "Ada")
	if err != nil {
		t.Fatal(err)
	}
	env.ledger.balances[c.ID] = 200

	event := testEvent(t, EventInvoicePaymentSucceeded, &stripe.Invoice{
		ID:            "in_2",
		Customer:      &stripe.Customer{ID: "cus_1"},
		Subscription:  &stripe.Subscription{ID: "sub_1"},
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_renewal"},
		AmountPaid:    1500,
		Currency:      "usd",
	})

	for i := 0; i < 2; i++ {
		if outcome := env.svc.Process(context.Background(), event); !outcome.Processed {
			t.Fatalf("delivery %d failed: %+v", i+1, outcome)
		}
	}

	if got := env.ledger.balances[c.ID]; got != 700 {
		t.Fatalf("balance after renewal = %d, want 700", got)
	}
	if len(env.ledger.transactions) != 1 {
		t.Fatalf("expected one transaction, got %d", len(env.ledger.transactions))
	}
	txn := env.ledger.transactions[0]
	if txn.ProductType != ledger.ProductTypeSubscription || txn.Amount != 1500 || txn.CreditsPurchased != 500 {
		t.Fatalf("unexpected transaction: %+v", txn)
	}
}

func TestInvoiceWithoutSubscriptionIsIgnored(t *testing.T) {
	env := newTestEnv(map[string]int{"price_pro": 500})

	outcome := env.svc.Process(context.Background(), testEvent(t, EventInvoicePaymentSucceeded, &stripe.Invoice{
		ID:         "in_oneoff",
		Customer:   &stripe.Customer{ID: "cus_1"},
		AmountPaid: 900,
		Currency:   "usd",
	}))
	if !outcome.Processed {
		t.Fatalf("one-off invoices are ignored, not failed: %+v", outcome)
	}
	if len(env.ledger.transactions) != 0 {
		t.Fatal("one-off invoice must not touch the ledger")
	}
}

func TestSubscriptionUpdatedSyncsLifecycleFields(t *testing.T) {
	env := newTestEnv(nil)
	env.subs.rows["sub_1"] = &subscription.Subscription{
		StripeSubscriptionID: "sub_1",
		StripePriceID:        "price_pro",
		Status:               subscription.StatusActive,
	}

	ps := activeStripeSubscription("sub_1", "price_pro")
	ps.Status = stripe.SubscriptionStatusPastDue
	ps.CancelAtPeriodEnd = true

	outcome := env.svc.Process(context.Background(), testEvent(t, EventSubscriptionUpdated, ps))
	if !outcome.Processed {
		t.Fatalf("unexpected failure: %+v", outcome)
	}

	row := env.subs.rows["sub_1"]
	if row.Status != "past_due" || !row.CancelAtPeriodEnd {
		t.Fatalf("lifecycle fields not synced: %+v", row)
	}
	if len(env.ledger.transactions) != 0 {
		t.Fatal("status sync must not touch the ledger")
	}
}

func TestSubscriptionUpdatedForUnknownSubscriptionIsBenign(t *testing.T) {
	env := newTestEnv(nil)

	outcome := env.svc.Process(context.Background(), testEvent(t, EventSubscriptionUpdated, activeStripeSubscription("sub_ghost", "price_pro")))
	if !outcome.Processed {
		t.Fatalf("unknown subscription update must be a no-op: %+v", outcome)
	}
}

func TestSubscriptionDeletedCancelsRowAndKeepsBalance(t *testing.T) {
	env := newTestEnv(nil)
	c, err := env.dir.GetOrCreate(context.Background(), "cus_1", "a@example.com", "Ada")
	if err != nil {
		t.Fatal(err)
	}
	env.ledger.balances[c.ID] = 700
	env.subs.rows["sub_1"] = &subscription.Subscription{
		StripeSubscriptionID: "sub_1",
		CustomerID:           c.ID,
		Status:               subscription.StatusActive,
	}

	ps := activeStripeSubscription("sub_1", "price_pro")
	ps.Status = stripe.SubscriptionStatusCanceled

	outcome := env.svc.Process(context.Background(), testEvent(t, EventSubscriptionDeleted, ps))
	if !outcome.Processed {
		t.Fatalf("unexpected failure: %+v", outcome)
	}

	row := env.subs.rows["sub_1"]
	if row == nil {
		t.Fatal("cancellation must retain the row")
	}
	if row.Status != subscription.StatusCanceled {
		t.Fatalf("row status = %s, want canceled", row.Status)
	}
	if got := env.ledger.balances[c.ID]; got != 700 {
		t.Fatalf("cancellation must not claw back credits, balance = %d", got)
	}
}

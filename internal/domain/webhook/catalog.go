package webhook

import "github.com/stripe/stripe-go/v76"

// Catalog maps Stripe price ids to credit quantities. It is injected at
// construction; unmapped prices yield zero credits (legacy and non-credit
// SKUs).
type Catalog struct {
	credits map[string]int
}

// NewCatalog builds a catalog from a price id -> credits table.
func NewCatalog(credits map[string]int) Catalog {
	table := make(map[string]int, len(credits))
	for priceID, amount := range credits {
		if amount > 0 {
			table[priceID] = amount
		}
	}
	return Catalog{credits: table}
}

// CreditsFor returns the credit quantity a price grants, zero if unmapped.
func (c Catalog) CreditsFor(priceID string) int {
	return c.credits[priceID]
}

// Len returns the number of credit-bearing prices.
func (c Catalog) Len() int {
	return len(c.credits)
}

// lineCredits is the single product-resolution point shared by the checkout
// and payment-intent handlers. Ownership of purchase types is split by price
// recurrence and must stay that way to avoid double-crediting:
//
//   - one-time prices are settled by payment_intent.succeeded;
//   - recurring prices are settled by checkout.session.completed (first
//     period) and invoice.payment_succeeded (renewals).
//
// The item is skipped (0, false) when it carries no price.
func (c Catalog) lineCredits(item *stripe.LineItem) (credits int, recurring bool) {
	if item == nil || item.Price == nil {
		return 0, false
	}
	return c.CreditsFor(item.Price.ID), item.Price.Recurring != nil
}

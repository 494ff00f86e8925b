// backend/src/models/membership.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SharesTxStatus is the membership domain's native status vocabulary.
type SharesTxStatus string

const (
	SharesTxProposed   SharesTxStatus = "PROPOSED"
	SharesTxProcessing SharesTxStatus = "PROCESSING"
	SharesTxApproved   SharesTxStatus = "APPROVED"
	SharesTxComplete   SharesTxStatus = "COMPLETE"
	SharesTxFailed     SharesTxStatus = "FAILED"
)

// SharesOffer is a membership-tier offer: a quantity of shares made
// available for subscription at a unit value.
type SharesOffer struct {
	ID            string          `json:"id"`
	Quantity      int             `json:"quantity"`
	Subscribed    int             `json:"subscribed"`
	UnitValue     decimal.Decimal `json:"unit_value"`
	Currency      string          `json:"currency"`
	AvailableFrom time.Time       `json:"available_from"`
	AvailableTo   *time.Time      `json:"available_to,omitempty"`
}

// Remaining returns the number of shares still open for subscription.
func (o SharesOffer) Remaining() int {
	if o.Subscribed >= o.Quantity {
		return 0
	}
	return o.Quantity - o.Subscribed
}

// SharesTx is a raw membership share subscription transaction.
type SharesTx struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	OfferID   string         `json:"offer_id"`
	Quantity  int            `json:"quantity"`
	Status    SharesTxStatus `json:"status"`
	// Tracker links the subscription to its payment intent on the rail side.
	Tracker   string     `json:"shares_subscription_tracker,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

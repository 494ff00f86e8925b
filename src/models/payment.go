// backend/src/models/payment.go
package models

import "time"

// PaymentMethod identifies the payment rail a transaction settles over.
type PaymentMethod string

const (
	MethodMpesa     PaymentMethod = "mpesa"
	MethodLightning PaymentMethod = "lightning"
)

// PaymentIntent is the payment-rail-facing projection of a transaction,
// created when a payment is initiated and tracked by the reconciler until
// it reaches a terminal status or the poll budget runs out.
type PaymentIntent struct {
	PaymentID       string        `json:"payment_id"`
	Amount          Money         `json:"amount"`
	Method          PaymentMethod `json:"method"`
	Status          UnifiedStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	TransactionHash string        `json:"transaction_hash,omitempty"`

	LightningInvoice string `json:"lightning_invoice,omitempty"`

	// ChamaID is set for group-context payments; its presence selects the
	// chama-keyed reconciliation path.
	ChamaID string `json:"chama_id,omitempty"`

	// UserID is required for the personal-wallet refresh path.
	UserID string `json:"user_id,omitempty"`

	// SharesSubscriptionTracker is set for membership share payments.
	SharesSubscriptionTracker string `json:"shares_subscription_tracker,omitempty"`
}

// ChamaTracked reports whether the intent follows the chama-keyed polling path.
func (p PaymentIntent) ChamaTracked() bool {
	return p.ChamaID != ""
}

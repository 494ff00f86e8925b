// backend/src/reconciler/sources.go
package reconciler

import (
	"context"

	"github.com/username/chamasats/backend/src/adapters"
	"github.com/username/chamasats/backend/src/mapping"
	"github.com/username/chamasats/backend/src/models"
)

// Two reconciliation paths share the tick/terminal/timeout contract: one
// keyed by (chamaId, transactionId) for group payments, one keyed by a
// bare payment-intent id for personal and membership payments.

// ChamaSource polls a group-tracked transaction.
type ChamaSource struct {
	api     adapters.ChamaAPI
	chamaID string
	txID    string
}

func NewChamaSource(api adapters.ChamaAPI, chamaID, txID string) *ChamaSource {
	return &ChamaSource{api: api, chamaID: chamaID, txID: txID}
}

func (s *ChamaSource) Key() string {
	return "chama/" + s.chamaID + "/" + s.txID
}

func (s *ChamaSource) Fetch(ctx context.Context) (models.UnifiedStatus, any, error) {
	tx, err := s.api.GetTransaction(ctx, s.chamaID, s.txID)
	if err != nil {
		return "", nil, err
	}
	mapped, err := mapping.MapChamaStatus(tx.Status, tx.Type)
	if err != nil {
		return "", nil, err
	}
	return mapped.Status, tx, nil
}

// IntentSource polls a generic payment intent through a domain-specific
// fetch function.
type IntentSource struct {
	id    string
	fetch func(ctx context.Context) (models.UnifiedStatus, any, error)
}

func (s *IntentSource) Key() string { return "intent/" + s.id }

func (s *IntentSource) Fetch(ctx context.Context) (models.UnifiedStatus, any, error) {
	return s.fetch(ctx)
}

// NewPersonalIntentSource polls a personal-wallet transaction by id.
func NewPersonalIntentSource(api adapters.PersonalAPI, userID, txID string) *IntentSource {
	return &IntentSource{
		id: txID,
		fetch: func(ctx context.Context) (models.UnifiedStatus, any, error) {
			tx, err := api.GetTransaction(ctx, userID, txID)
			if err != nil {
				return "", nil, err
			}
			mapped, err := mapping.MapPersonalStatus(tx.Status)
			if err != nil {
				return "", nil, err
			}
			return mapped.Status, tx, nil
		},
	}
}

// NewMembershipIntentSource polls a share subscription by its payment
// tracker id.
func NewMembershipIntentSource(api adapters.MembershipAPI, trackerID string) *IntentSource {
	return &IntentSource{
		id: trackerID,
		fetch: func(ctx context.Context) (models.UnifiedStatus, any, error) {
			tx, err := api.GetTransaction(ctx, trackerID)
			if err != nil {
				return "", nil, err
			}
			status, err := mapping.MapMembershipStatus(tx.Status)
			if err != nil {
				return "", nil, err
			}
			return status, tx, nil
		},
	}
}

// SourceForIntent selects the reconciliation path for a payment intent:
// chama-keyed when the intent carries chama metadata, otherwise the
// bare-intent path for personal and membership payments.
func SourceForIntent(intent models.PaymentIntent, chama adapters.ChamaAPI, personal adapters.PersonalAPI, membership adapters.MembershipAPI) PollSource {
	switch {
	case intent.ChamaTracked():
		return NewChamaSource(chama, intent.ChamaID, intent.PaymentID)
	case intent.SharesSubscriptionTracker != "":
		return NewMembershipIntentSource(membership, intent.SharesSubscriptionTracker)
	default:
		return NewPersonalIntentSource(personal, intent.UserID, intent.PaymentID)
	}
}

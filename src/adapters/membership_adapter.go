// backend/src/adapters/membership_adapter.go
package adapters

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/chamasats/backend/src/backend"
	"github.com/username/chamasats/backend/src/mapping"
	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/svcerror"
)

// MembershipAdapter normalizes share-subscription transactions. The
// transaction amount is derived from the offer: quantity times unit value.
type MembershipAdapter struct {
	api MembershipAPI
}

func NewMembershipAdapter(api MembershipAPI) *MembershipAdapter {
	return &MembershipAdapter{api: api}
}

// ToUnified converts a raw share subscription and its owning offer into a
// unified transaction for the given viewer.
func (a *MembershipAdapter) ToUnified(ctx context.Context, tx models.SharesTx, offer models.SharesOffer, viewer models.Viewer) (models.UnifiedTransaction, error) {
	status, err := mapping.MapMembershipStatus(tx.Status)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}

	amount := offer.UnitValue.Mul(decimalFromInt(tx.Quantity))
	unified := models.UnifiedTransaction{
		ID:        tx.ID,
		Type:      models.TxTypeSubscription,
		Context:   models.ContextMembership,
		Status:    status,
		Amount:    models.Money{Value: amount, Currency: offer.Currency},
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
		UserID:    tx.UserID,
		Metadata: models.TxMetadata{
			ShareQuantity:    tx.Quantity,
			ShareValue:       offer.UnitValue.String(),
			PaymentReference: tx.Tracker,
		},
	}
	unified.Actions = a.AvailableActions(tx, viewer)
	return unified, nil
}

// ToUnifiedBatch converts raw transactions in order.
func (a *MembershipAdapter) ToUnifiedBatch(ctx context.Context, txs []models.SharesTx, offer models.SharesOffer, viewer models.Viewer) ([]models.UnifiedTransaction, error) {
	out := make([]models.UnifiedTransaction, 0, len(txs))
	for _, tx := range txs {
		u, err := a.ToUnified(ctx, tx, offer, viewer)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// AvailableActions is the membership action decision table: view always,
// cancel while the subscription is still pending, retry after failure.
// Both subject-only.
func (a *MembershipAdapter) AvailableActions(tx models.SharesTx, viewer models.Viewer) []models.TransactionAction {
	actions := []models.TransactionAction{
		{Type: models.ActionView, Enabled: true, Label: "View", Variant: "default"},
	}
	isSubject := tx.UserID == viewer.UserID
	if tx.Status == models.SharesTxProposed && isSubject {
		actions = append(actions, models.TransactionAction{
			Type: models.ActionCancel, Enabled: true, Label: "Cancel", Variant: "secondary",
			RequiresConfirmation: true,
			ConfirmationMessage:  "Cancel this share subscription?",
		})
	}
	if tx.Status == models.SharesTxFailed && isSubject {
		actions = append(actions, models.TransactionAction{
			Type: models.ActionRetry, Enabled: true, Label: "Retry", Variant: "primary",
		})
	}
	return actions
}

// CreateSubscription subscribes the viewer to shares in an offer. The
// remaining-share check happens before the backend write so the caller
// gets a field-level business error instead of a generic refusal.
func (a *MembershipAdapter) CreateSubscription(ctx context.Context, offer models.SharesOffer, req backend.SubscribeRequest, viewer models.Viewer) (models.UnifiedTransaction, *models.PaymentIntent, error) {
	if req.Quantity <= 0 {
		return models.UnifiedTransaction{}, nil, svcerror.FieldError("quantity",
			"share quantity must be greater than zero")
	}
	if remaining := offer.Remaining(); req.Quantity > remaining {
		return models.UnifiedTransaction{}, nil, svcerror.New(svcerror.KindBusinessRule,
			fmt.Sprintf("only %d shares remain in this offer", remaining))
	}

	res, err := a.api.Subscribe(ctx, req)
	if err != nil {
		return models.UnifiedTransaction{}, nil, err
	}
	unified, err := a.refresh(ctx, trackerOf(res.Transaction), res.Offer, viewer)
	if err != nil {
		return models.UnifiedTransaction{}, nil, err
	}

	intent := &models.PaymentIntent{
		PaymentID:                 trackerOf(res.Transaction),
		Amount:                    unified.Amount,
		Method:                    req.PaymentMethod,
		Status:                    unified.Status,
		CreatedAt:                 unified.CreatedAt,
		UserID:                    unified.UserID,
		SharesSubscriptionTracker: trackerOf(res.Transaction),
	}
	return unified, intent, nil
}

// TransferShares moves shares from an existing subscription to another
// member.
func (a *MembershipAdapter) TransferShares(ctx context.Context, req backend.UpdateSharesRequest, viewer models.Viewer) (models.UnifiedTransaction, error) {
	res, err := a.api.UpdateShares(ctx, req)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	return a.refresh(ctx, trackerOf(res.Transaction), res.Offer, viewer)
}

// Refresh re-fetches one subscription by its payment tracker and
// re-normalizes it. This is the path the reconciler uses during polling.
func (a *MembershipAdapter) Refresh(ctx context.Context, trackerID string, offer models.SharesOffer, viewer models.Viewer) (models.UnifiedTransaction, error) {
	tx, err := a.api.GetTransaction(ctx, trackerID)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	return a.ToUnified(ctx, *tx, offer, viewer)
}

func (a *MembershipAdapter) refresh(ctx context.Context, trackerID string, offer models.SharesOffer, viewer models.Viewer) (models.UnifiedTransaction, error) {
	unified, err := a.Refresh(ctx, trackerID, offer, viewer)
	if err != nil {
		return models.UnifiedTransaction{}, svcerror.Wrap(svcerror.KindRefresh,
			"write succeeded but refreshing the transaction failed", err)
	}
	return unified, nil
}

func decimalFromInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}

func trackerOf(tx models.SharesTx) string {
	if tx.Tracker != "" {
		return tx.Tracker
	}
	return tx.ID
}

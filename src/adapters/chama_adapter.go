// backend/src/adapters/chama_adapter.go
package adapters

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/chamasats/backend/src/backend"
	"github.com/username/chamasats/backend/src/logger"
	"github.com/username/chamasats/backend/src/mapping"
	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/svcerror"
)

// ChamaAdapter normalizes group-wallet transactions into the unified
// shape and owns all chama-side mutations. Normalization never mutates
// its inputs; the only network effect is one member-profile lookup when
// names are not already cached.
type ChamaAdapter struct {
	api   ChamaAPI
	names *cache.Cache
}

func NewChamaAdapter(api ChamaAPI, nameCacheExpiry time.Duration) *ChamaAdapter {
	if nameCacheExpiry <= 0 {
		nameCacheExpiry = 15 * time.Minute
	}
	return &ChamaAdapter{
		api:   api,
		names: cache.New(nameCacheExpiry, 2*nameCacheExpiry),
	}
}

// ToUnified converts a raw chama transaction and its owning chama into a
// unified transaction for the given viewer. Actions are recomputed on
// every call.
func (a *ChamaAdapter) ToUnified(ctx context.Context, tx models.ChamaWalletTx, chama models.Chama, viewer models.Viewer) (models.UnifiedTransaction, error) {
	mapped, err := mapping.MapChamaStatus(tx.Status, tx.Type)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	if mapped.Anomaly != "" {
		logger.FromContext(ctx).Warn("Chama status anomaly",
			"chamaID", tx.ChamaID, "txID", tx.ID, "type", tx.Type,
			"nativeStatus", tx.Status, "anomaly", mapped.Anomaly)
	}

	approvals, rejections := 0, 0
	for _, r := range tx.Reviews {
		switch r.Review {
		case models.ReviewApprove:
			approvals++
		case models.ReviewReject:
			rejections++
		}
	}

	unified := models.UnifiedTransaction{
		ID:        tx.ID,
		Type:      mapping.MapChamaType(tx.Type),
		Context:   models.ContextChama,
		Status:    mapped.Status,
		Amount:    models.Money{Value: tx.Amount, Currency: tx.Currency},
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
		UserID:    tx.MemberID,
		UserName:  a.memberName(ctx, tx.ChamaID, tx.MemberID),
		Metadata: models.TxMetadata{
			GroupID:          tx.ChamaID,
			GroupName:        chama.Name,
			MemberID:         tx.MemberID,
			PaymentReference: tx.Reference,
			LightningInvoice: ExtractLightningInvoice(tx.Lightning),
			Approvals:        approvals,
			Rejections:       rejections,
			Anomaly:          mapped.Anomaly,
		},
	}
	unified.Metadata.MemberName = unified.UserName
	unified.Actions = a.AvailableActions(tx, chama, viewer)
	return unified, nil
}

// ToUnifiedBatch converts raw transactions in order. Output ordering
// matches input ordering.
func (a *ChamaAdapter) ToUnifiedBatch(ctx context.Context, txs []models.ChamaWalletTx, chama models.Chama, viewer models.Viewer) ([]models.UnifiedTransaction, error) {
	out := make([]models.UnifiedTransaction, 0, len(txs))
	for _, tx := range txs {
		u, err := a.ToUnified(ctx, tx, chama, viewer)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// AvailableActions is the chama action decision table. It is evaluated
// fresh for every materialization and never cached.
//
// Approve/reject appear only on withdrawals still awaiting review, for
// admins who have not already submitted a review (idempotent-review
// guard). One approval suffices: an already-approved withdrawal offers
// execute to its subject, not approve to further admins.
func (a *ChamaAdapter) AvailableActions(tx models.ChamaWalletTx, chama models.Chama, viewer models.Viewer) []models.TransactionAction {
	actions := []models.TransactionAction{
		{Type: models.ActionView, Enabled: true, Label: "View", Variant: "default"},
	}

	isSubject := tx.MemberID == viewer.UserID
	isAdmin := false
	if m, ok := chama.Member(viewer.UserID); ok {
		isAdmin = m.IsAdmin()
	}

	if tx.Type == models.ChamaTxWithdrawal {
		if tx.Status == models.ChamaTxPending && isAdmin {
			if _, reviewed := tx.ReviewBy(viewer.UserID); !reviewed {
				actions = append(actions,
					models.TransactionAction{
						Type: models.ActionApprove, Enabled: true, Label: "Approve", Variant: "primary",
						RequiresConfirmation: true,
						ConfirmationMessage:  "Approve this withdrawal request?",
					},
					models.TransactionAction{
						Type: models.ActionReject, Enabled: true, Label: "Reject", Variant: "destructive",
						RequiresConfirmation: true,
						ConfirmationMessage:  "Reject this withdrawal request?",
					})
			}
		}
		if tx.Status == models.ChamaTxApproved && isSubject {
			actions = append(actions, models.TransactionAction{
				Type: models.ActionExecute, Enabled: true, Label: "Withdraw funds", Variant: "primary",
				RequiresConfirmation: true,
				ConfirmationMessage:  "Release the approved funds now?",
			})
		}
		if (tx.Status == models.ChamaTxPending || tx.Status == models.ChamaTxApproved) && isSubject {
			actions = append(actions, models.TransactionAction{
				Type: models.ActionCancel, Enabled: true, Label: "Cancel", Variant: "secondary",
				RequiresConfirmation: true,
				ConfirmationMessage:  "Cancel this withdrawal request?",
			})
		}
	}

	if tx.Status == models.ChamaTxFailed && isSubject {
		actions = append(actions, models.TransactionAction{
			Type: models.ActionRetry, Enabled: true, Label: "Retry", Variant: "primary",
		})
	}

	return actions
}

// CreateDeposit initiates a deposit and returns the unified transaction
// together with the payment intent to reconcile.
func (a *ChamaAdapter) CreateDeposit(ctx context.Context, chamaID string, req backend.ChamaDepositRequest, viewer models.Viewer) (models.UnifiedTransaction, *models.PaymentIntent, error) {
	res, err := a.api.Deposit(ctx, chamaID, req)
	if err != nil {
		return models.UnifiedTransaction{}, nil, err
	}
	unified, err := a.refresh(ctx, chamaID, res.Transaction.ID, res.Chama, viewer)
	if err != nil {
		return models.UnifiedTransaction{}, nil, err
	}
	intent := a.paymentIntent(unified, req.PaymentMethod)
	return unified, intent, nil
}

// CreateWithdrawal initiates a withdrawal, which enters the admin review
// gate before any funds move.
func (a *ChamaAdapter) CreateWithdrawal(ctx context.Context, chamaID string, req backend.ChamaWithdrawRequest, viewer models.Viewer) (models.UnifiedTransaction, *models.PaymentIntent, error) {
	res, err := a.api.Withdraw(ctx, chamaID, req)
	if err != nil {
		return models.UnifiedTransaction{}, nil, err
	}
	unified, err := a.refresh(ctx, chamaID, res.Transaction.ID, res.Chama, viewer)
	if err != nil {
		return models.UnifiedTransaction{}, nil, err
	}
	intent := a.paymentIntent(unified, req.PaymentMethod)
	return unified, intent, nil
}

// ApproveWithdrawal records the viewer's APPROVE review. One approval is
// sufficient to move the withdrawal to APPROVED.
func (a *ChamaAdapter) ApproveWithdrawal(ctx context.Context, chamaID, txID string, viewer models.Viewer) (models.UnifiedTransaction, error) {
	return a.review(ctx, chamaID, txID, models.ReviewApprove, viewer)
}

// RejectWithdrawal records the viewer's REJECT review.
func (a *ChamaAdapter) RejectWithdrawal(ctx context.Context, chamaID, txID string, viewer models.Viewer) (models.UnifiedTransaction, error) {
	return a.review(ctx, chamaID, txID, models.ReviewReject, viewer)
}

func (a *ChamaAdapter) review(ctx context.Context, chamaID, txID string, verdict models.ChamaTxReview, viewer models.Viewer) (models.UnifiedTransaction, error) {
	res, err := a.api.UpdateTransaction(ctx, chamaID, txID, backend.ChamaUpdateRequest{
		Reviews: []models.ChamaReview{{MemberID: viewer.UserID, Review: verdict}},
	})
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	return a.refresh(ctx, chamaID, txID, res.Chama, viewer)
}

// ExecuteWithdrawal releases the funds of an approved withdrawal by
// moving it to PROCESSING on the backend.
func (a *ChamaAdapter) ExecuteWithdrawal(ctx context.Context, chamaID, txID string, viewer models.Viewer) (models.UnifiedTransaction, error) {
	return a.transition(ctx, chamaID, txID, models.ChamaTxProcessing, viewer)
}

// CancelWithdrawal withdraws the subject's own request. The backend
// records cancellation as a REJECTED transition.
func (a *ChamaAdapter) CancelWithdrawal(ctx context.Context, chamaID, txID string, viewer models.Viewer) (models.UnifiedTransaction, error) {
	return a.transition(ctx, chamaID, txID, models.ChamaTxRejected, viewer)
}

// RetryTransaction re-queues a failed transaction for another payment
// attempt.
func (a *ChamaAdapter) RetryTransaction(ctx context.Context, chamaID, txID string, viewer models.Viewer) (models.UnifiedTransaction, error) {
	return a.transition(ctx, chamaID, txID, models.ChamaTxPending, viewer)
}

func (a *ChamaAdapter) transition(ctx context.Context, chamaID, txID string, to models.ChamaTxStatus, viewer models.Viewer) (models.UnifiedTransaction, error) {
	res, err := a.api.UpdateTransaction(ctx, chamaID, txID, backend.ChamaUpdateRequest{Status: &to})
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	return a.refresh(ctx, chamaID, txID, res.Chama, viewer)
}

// Refresh re-fetches one transaction and re-normalizes it. This is the
// path the reconciler uses during polling.
func (a *ChamaAdapter) Refresh(ctx context.Context, chamaID, txID string, chama models.Chama, viewer models.Viewer) (models.UnifiedTransaction, error) {
	tx, err := a.api.GetTransaction(ctx, chamaID, txID)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	return a.ToUnified(ctx, *tx, chama, viewer)
}

// refresh is the post-write leg of every mutation: re-fetch and
// re-normalize instead of hand-patching local state. A failure here is
// reported as a refresh error so callers can tell "write succeeded,
// refresh failed" apart from a failed write.
func (a *ChamaAdapter) refresh(ctx context.Context, chamaID, txID string, chama models.Chama, viewer models.Viewer) (models.UnifiedTransaction, error) {
	unified, err := a.Refresh(ctx, chamaID, txID, chama, viewer)
	if err != nil {
		return models.UnifiedTransaction{}, svcerror.Wrap(svcerror.KindRefresh,
			"write succeeded but refreshing the transaction failed", err)
	}
	return unified, nil
}

func (a *ChamaAdapter) paymentIntent(tx models.UnifiedTransaction, method models.PaymentMethod) *models.PaymentIntent {
	return &models.PaymentIntent{
		PaymentID:        tx.ID,
		Amount:           tx.Amount,
		Method:           method,
		Status:           tx.Status,
		CreatedAt:        tx.CreatedAt,
		LightningInvoice: tx.Metadata.LightningInvoice,
		ChamaID:          tx.Metadata.GroupID,
		UserID:           tx.UserID,
	}
}

// memberName resolves a member's display name, consulting the profile
// cache before going to the network. Resolution failures degrade to an
// empty name rather than failing normalization.
func (a *ChamaAdapter) memberName(ctx context.Context, chamaID, memberID string) string {
	key := chamaID + "/" + memberID
	if v, found := a.names.Get(key); found {
		return v.(string)
	}

	profiles, err := a.api.GetMembers(ctx, chamaID)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to resolve member profiles",
			"chamaID", chamaID, "error", err)
		return ""
	}
	for _, p := range profiles {
		a.names.Set(chamaID+"/"+p.UserID, p.Name, cache.DefaultExpiration)
	}
	if v, found := a.names.Get(key); found {
		return v.(string)
	}
	return ""
}

// backend/src/adapters/personal_adapter.go
package adapters

import (
	"context"
	"time"

	"github.com/username/chamasats/backend/src/backend"
	"github.com/username/chamasats/backend/src/logger"
	"github.com/username/chamasats/backend/src/mapping"
	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/svcerror"
)

// PersonalAdapter normalizes personal-wallet transactions. Personal
// transactions have no approval workflow: the action surface is view,
// plus retry for the subject of a failed transaction.
type PersonalAdapter struct {
	api PersonalAPI
}

func NewPersonalAdapter(api PersonalAPI) *PersonalAdapter {
	return &PersonalAdapter{api: api}
}

// ToUnified converts a raw personal-wallet transaction and its owning
// wallet into a unified transaction for the given viewer.
func (a *PersonalAdapter) ToUnified(ctx context.Context, tx models.PersonalWalletTx, wallet models.PersonalWallet, viewer models.Viewer) (models.UnifiedTransaction, error) {
	mapped, err := mapping.MapPersonalStatus(tx.Status)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	if mapped.UnderReview {
		logger.FromContext(ctx).Info("Personal transaction held for manual review",
			"txID", tx.ID, "walletID", tx.WalletID)
	}

	unified := models.UnifiedTransaction{
		ID:        tx.ID,
		Type:      mapping.MapPersonalType(tx.Type),
		Context:   models.ContextPersonal,
		Status:    mapped.Status,
		Amount:    models.Money{Value: tx.AmountFiat, Currency: tx.Currency},
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
		UserID:    tx.UserID,
		Metadata: models.TxMetadata{
			WalletID:         tx.WalletID,
			WalletType:       string(wallet.Type),
			PaymentReference: tx.Reference,
			LightningInvoice: ExtractLightningInvoice(tx.Lightning),
			UnderReview:      mapped.UnderReview,
		},
	}
	unified.Actions = a.AvailableActions(tx, viewer)
	return unified, nil
}

// ToUnifiedBatch converts raw transactions in order.
func (a *PersonalAdapter) ToUnifiedBatch(ctx context.Context, txs []models.PersonalWalletTx, wallet models.PersonalWallet, viewer models.Viewer) ([]models.UnifiedTransaction, error) {
	out := make([]models.UnifiedTransaction, 0, len(txs))
	for _, tx := range txs {
		u, err := a.ToUnified(ctx, tx, wallet, viewer)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// AvailableActions is the personal-wallet action decision table.
func (a *PersonalAdapter) AvailableActions(tx models.PersonalWalletTx, viewer models.Viewer) []models.TransactionAction {
	actions := []models.TransactionAction{
		{Type: models.ActionView, Enabled: true, Label: "View", Variant: "default"},
	}
	if tx.Status == models.PersonalTxFailed && tx.UserID == viewer.UserID {
		actions = append(actions, models.TransactionAction{
			Type: models.ActionRetry, Enabled: true, Label: "Retry", Variant: "primary",
		})
	}
	return actions
}

// CreateDeposit initiates a personal-wallet deposit.
func (a *PersonalAdapter) CreateDeposit(ctx context.Context, userID, walletID string, req backend.PersonalDepositRequest, viewer models.Viewer) (models.UnifiedTransaction, *models.PaymentIntent, error) {
	res, err := a.api.Deposit(ctx, userID, walletID, req)
	if err != nil {
		return models.UnifiedTransaction{}, nil, err
	}
	unified, err := a.refresh(ctx, userID, res.Transaction.ID, res.Wallet, viewer)
	if err != nil {
		return models.UnifiedTransaction{}, nil, err
	}
	return unified, a.paymentIntent(unified, req.PaymentMethod), nil
}

// CreateWithdrawal initiates a personal-wallet withdrawal. Withdrawing
// from a still-locked wallet is refused before any backend write.
func (a *PersonalAdapter) CreateWithdrawal(ctx context.Context, userID string, wallet models.PersonalWallet, req backend.PersonalWithdrawRequest, viewer models.Viewer) (models.UnifiedTransaction, *models.PaymentIntent, error) {
	if wallet.Locked(time.Now()) {
		return models.UnifiedTransaction{}, nil, svcerror.New(svcerror.KindBusinessRule,
			"this wallet is locked until its lock end date; withdrawals are not available yet")
	}

	res, err := a.api.Withdraw(ctx, userID, wallet.ID, req)
	if err != nil {
		return models.UnifiedTransaction{}, nil, err
	}
	unified, err := a.refresh(ctx, userID, res.Transaction.ID, res.Wallet, viewer)
	if err != nil {
		return models.UnifiedTransaction{}, nil, err
	}
	return unified, a.paymentIntent(unified, req.PaymentMethod), nil
}

// Refresh re-fetches one transaction and re-normalizes it. This is the
// path the reconciler uses during polling.
func (a *PersonalAdapter) Refresh(ctx context.Context, userID, txID string, wallet models.PersonalWallet, viewer models.Viewer) (models.UnifiedTransaction, error) {
	tx, err := a.api.GetTransaction(ctx, userID, txID)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	return a.ToUnified(ctx, *tx, wallet, viewer)
}

func (a *PersonalAdapter) refresh(ctx context.Context, userID, txID string, wallet models.PersonalWallet, viewer models.Viewer) (models.UnifiedTransaction, error) {
	unified, err := a.Refresh(ctx, userID, txID, wallet, viewer)
	if err != nil {
		return models.UnifiedTransaction{}, svcerror.Wrap(svcerror.KindRefresh,
			"write succeeded but refreshing the transaction failed", err)
	}
	return unified, nil
}

func (a *PersonalAdapter) paymentIntent(tx models.UnifiedTransaction, method models.PaymentMethod) *models.PaymentIntent {
	return &models.PaymentIntent{
		PaymentID:        tx.ID,
		Amount:           tx.Amount,
		Method:           method,
		Status:           tx.Status,
		CreatedAt:        tx.CreatedAt,
		LightningInvoice: tx.Metadata.LightningInvoice,
		UserID:           tx.UserID,
	}
}

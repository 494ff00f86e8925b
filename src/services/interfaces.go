// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/username/chamasats/backend/src/models"
)

// Common service errors.
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnknownOffer        = errors.New("share offer not found")
)

// ListFilter narrows a transaction listing. Zero values mean "any".
type ListFilter struct {
	Context models.TxContext
	Type    models.TxType
	Status  models.UnifiedStatus
	UserID  string
	Limit   int
	Offset  int
}

// ListResult is one page of persisted transaction snapshots. Snapshots
// carry no actions; actions exist only on fresh per-viewer reads.
type ListResult struct {
	Items []models.UnifiedTransaction `json:"items"`
	Total int                         `json:"total"`
}

// CreateResult pairs a freshly created transaction with the payment
// intent now being reconciled for it.
type CreateResult struct {
	Transaction models.UnifiedTransaction `json:"transaction"`
	Intent      *models.PaymentIntent     `json:"intent,omitempty"`
}

// ChamaDepositParams initiates a deposit into a group wallet.
type ChamaDepositParams struct {
	ChamaID       string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod models.PaymentMethod
	PhoneNumber   string
	Reference     string
}

// ChamaWithdrawParams initiates a group-wallet withdrawal, which enters
// the admin review gate.
type ChamaWithdrawParams struct {
	ChamaID       string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod models.PaymentMethod
	PhoneNumber   string
	LightningAddr string
	Reference     string
}

// PersonalDepositParams initiates a deposit into a personal wallet.
type PersonalDepositParams struct {
	WalletID      string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod models.PaymentMethod
	PhoneNumber   string
	Reference     string
}

// PersonalWithdrawParams initiates a personal-wallet withdrawal. The
// wallet snapshot comes with the request so the lock check can run
// before any backend write.
type PersonalWithdrawParams struct {
	Wallet        models.PersonalWallet
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod models.PaymentMethod
	PhoneNumber   string
	LightningAddr string
}

// SubscribeSharesParams subscribes the viewer to shares in an offer.
type SubscribeSharesParams struct {
	OfferID       string
	Quantity      int
	PaymentMethod models.PaymentMethod
	PhoneNumber   string
}

// TransferSharesParams moves shares from an existing subscription to
// another member.
type TransferSharesParams struct {
	TransactionID string
	ToUserID      string
	Quantity      int
}

// ActionRequest asks the service to perform one of the actions it
// advertised on a transaction.
type ActionRequest struct {
	Context models.TxContext
	ChamaID string
	TxID    string
	Action  models.ActionType
}

// TransactionService is the aggregation context over the three domain
// adapters: one unified transaction set, one reconciliation loop, one
// action dispatch surface.
type TransactionService interface {
	ListTransactions(ctx context.Context, f ListFilter) (ListResult, error)
	GetTransaction(ctx context.Context, txContext models.TxContext, id string, viewer models.Viewer) (models.UnifiedTransaction, error)

	CreateChamaDeposit(ctx context.Context, p ChamaDepositParams, viewer models.Viewer) (CreateResult, error)
	CreateChamaWithdrawal(ctx context.Context, p ChamaWithdrawParams, viewer models.Viewer) (CreateResult, error)
	CreatePersonalDeposit(ctx context.Context, p PersonalDepositParams, viewer models.Viewer) (CreateResult, error)
	CreatePersonalWithdrawal(ctx context.Context, p PersonalWithdrawParams, viewer models.Viewer) (CreateResult, error)
	SubscribeShares(ctx context.Context, p SubscribeSharesParams, viewer models.Viewer) (CreateResult, error)
	TransferShares(ctx context.Context, p TransferSharesParams, viewer models.Viewer) (models.UnifiedTransaction, error)

	PerformAction(ctx context.Context, req ActionRequest, viewer models.Viewer) (models.UnifiedTransaction, error)

	// RegisterListener subscribes to every accepted transaction update.
	// Listeners run synchronously after the update is recorded.
	RegisterListener(fn func(models.UnifiedTransaction))

	// Close stops all reconciliation polling and waits for it to drain.
	Close()
}

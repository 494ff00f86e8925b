// backend/src/adapters/interfaces.go
package adapters

import (
	"context"

	"github.com/username/chamasats/backend/src/backend"
	"github.com/username/chamasats/backend/src/models"
)

// ChamaAPI is the slice of the upstream chama client the adapter needs.
// Satisfied by *backend.ChamaClient; tests substitute stubs.
type ChamaAPI interface {
	Deposit(ctx context.Context, chamaID string, req backend.ChamaDepositRequest) (*backend.ChamaTxResult, error)
	Withdraw(ctx context.Context, chamaID string, req backend.ChamaWithdrawRequest) (*backend.ChamaTxResult, error)
	GetTransaction(ctx context.Context, chamaID, txID string) (*models.ChamaWalletTx, error)
	UpdateTransaction(ctx context.Context, chamaID, txID string, req backend.ChamaUpdateRequest) (*backend.ChamaTxResult, error)
	GetChama(ctx context.Context, chamaID string) (*models.Chama, error)
	GetMembers(ctx context.Context, chamaID string) ([]models.MemberProfile, error)
}

// PersonalAPI is the slice of the upstream personal-wallet client the
// adapter needs.
type PersonalAPI interface {
	Deposit(ctx context.Context, userID, walletID string, req backend.PersonalDepositRequest) (*backend.PersonalTxResult, error)
	Withdraw(ctx context.Context, userID, walletID string, req backend.PersonalWithdrawRequest) (*backend.PersonalTxResult, error)
	GetTransaction(ctx context.Context, userID, txID string) (*models.PersonalWalletTx, error)
}

// MembershipAPI is the slice of the upstream membership client the
// adapter needs.
type MembershipAPI interface {
	Subscribe(ctx context.Context, req backend.SubscribeRequest) (*backend.SharesTxResult, error)
	UpdateShares(ctx context.Context, req backend.UpdateSharesRequest) (*backend.SharesTxResult, error)
	GetOffers(ctx context.Context) ([]models.SharesOffer, error)
	GetTransaction(ctx context.Context, trackerID string) (*models.SharesTx, error)
}

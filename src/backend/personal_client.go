// backend/src/backend/personal_client.go
package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/username/chamasats/backend/src/models"
)

// PersonalClient wraps the personal-wallet endpoints.
type PersonalClient struct {
	c *Client
}

func NewPersonalClient(c *Client) *PersonalClient { return &PersonalClient{c: c} }

// PersonalDepositRequest initiates a deposit into a personal wallet.
type PersonalDepositRequest struct {
	Amount         decimal.Decimal      `json:"amount"`
	Currency       string               `json:"currency"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	PhoneNumber    string               `json:"phone_number,omitempty"`
	Reference      string               `json:"reference,omitempty"`
	IdempotencyKey string               `json:"idempotency_key"`
}

// PersonalWithdrawRequest initiates a withdrawal from a personal wallet.
type PersonalWithdrawRequest struct {
	Amount         decimal.Decimal      `json:"amount"`
	Currency       string               `json:"currency"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	PhoneNumber    string               `json:"phone_number,omitempty"`
	LightningAddr  string               `json:"lightning_address,omitempty"`
	IdempotencyKey string               `json:"idempotency_key"`
}

// PersonalTxResult is returned by personal-wallet writes: the transaction
// plus the wallet snapshot it belongs to.
type PersonalTxResult struct {
	Transaction models.PersonalWalletTx `json:"transaction"`
	Wallet      models.PersonalWallet   `json:"wallet"`
}

func (pc *PersonalClient) Deposit(ctx context.Context, userID, walletID string, req PersonalDepositRequest) (*PersonalTxResult, error) {
	var out PersonalTxResult
	path := fmt.Sprintf("/personal/wallets/%s/%s/deposit", userID, walletID)
	if err := pc.c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (pc *PersonalClient) Withdraw(ctx context.Context, userID, walletID string, req PersonalWithdrawRequest) (*PersonalTxResult, error) {
	var out PersonalTxResult
	path := fmt.Sprintf("/personal/wallets/%s/%s/withdraw", userID, walletID)
	if err := pc.c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (pc *PersonalClient) GetTransaction(ctx context.Context, userID, txID string) (*models.PersonalWalletTx, error) {
	var out models.PersonalWalletTx
	path := fmt.Sprintf("/personal/transactions/%s/%s", userID, txID)
	if err := pc.c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

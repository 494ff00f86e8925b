// backend/src/backend/chama_client.go
package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/username/chamasats/backend/src/models"
)

// ChamaClient wraps the group-wallet endpoints. Each endpoint carries an
// explicitly typed request/response pair.
type ChamaClient struct {
	c *Client
}

func NewChamaClient(c *Client) *ChamaClient { return &ChamaClient{c: c} }

// ChamaDepositRequest initiates a deposit into a chama wallet.
type ChamaDepositRequest struct {
	MemberID       string               `json:"member_id"`
	Amount         decimal.Decimal      `json:"amount"`
	Currency       string               `json:"currency"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	PhoneNumber    string               `json:"phone_number,omitempty"`
	Reference      string               `json:"reference,omitempty"`
	IdempotencyKey string               `json:"idempotency_key"`
}

// ChamaWithdrawRequest initiates a withdrawal from a chama wallet. The
// created transaction enters the admin review gate.
type ChamaWithdrawRequest struct {
	MemberID       string               `json:"member_id"`
	Amount         decimal.Decimal      `json:"amount"`
	Currency       string               `json:"currency"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	PhoneNumber    string               `json:"phone_number,omitempty"`
	LightningAddr  string               `json:"lightning_address,omitempty"`
	Reference      string               `json:"reference,omitempty"`
	IdempotencyKey string               `json:"idempotency_key"`
}

// ChamaTxResult is returned by every chama write: the affected transaction
// together with the chama snapshot it belongs to.
type ChamaTxResult struct {
	Transaction models.ChamaWalletTx `json:"transaction"`
	Chama       models.Chama         `json:"chama"`
}

// ChamaUpdateRequest patches a transaction: reviews append to the recorded
// review list; status requests an explicit transition (e.g. execution of
// an approved withdrawal).
type ChamaUpdateRequest struct {
	Reviews []models.ChamaReview  `json:"reviews,omitempty"`
	Status  *models.ChamaTxStatus `json:"status,omitempty"`
}

func (cc *ChamaClient) Deposit(ctx context.Context, chamaID string, req ChamaDepositRequest) (*ChamaTxResult, error) {
	var out ChamaTxResult
	path := fmt.Sprintf("/chamas/%s/wallet/deposit", chamaID)
	if err := cc.c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cc *ChamaClient) Withdraw(ctx context.Context, chamaID string, req ChamaWithdrawRequest) (*ChamaTxResult, error) {
	var out ChamaTxResult
	path := fmt.Sprintf("/chamas/%s/wallet/withdraw", chamaID)
	if err := cc.c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cc *ChamaClient) GetTransaction(ctx context.Context, chamaID, txID string) (*models.ChamaWalletTx, error) {
	var out models.ChamaWalletTx
	path := fmt.Sprintf("/chamas/%s/transactions/%s", chamaID, txID)
	if err := cc.c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cc *ChamaClient) UpdateTransaction(ctx context.Context, chamaID, txID string, req ChamaUpdateRequest) (*ChamaTxResult, error) {
	var out ChamaTxResult
	path := fmt.Sprintf("/chamas/%s/transactions/%s", chamaID, txID)
	if err := cc.c.do(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cc *ChamaClient) GetChama(ctx context.Context, chamaID string) (*models.Chama, error) {
	var out models.Chama
	path := fmt.Sprintf("/chamas/%s", chamaID)
	if err := cc.c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cc *ChamaClient) GetMembers(ctx context.Context, chamaID string) ([]models.MemberProfile, error) {
	var out []models.MemberProfile
	path := fmt.Sprintf("/chamas/%s/members", chamaID)
	if err := cc.c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

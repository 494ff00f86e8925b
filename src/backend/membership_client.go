// backend/src/backend/membership_client.go
package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/username/chamasats/backend/src/models"
)

// MembershipClient wraps the share-subscription endpoints.
type MembershipClient struct {
	c *Client
}

func NewMembershipClient(c *Client) *MembershipClient { return &MembershipClient{c: c} }

// SubscribeRequest subscribes a user to a quantity of shares in an offer.
type SubscribeRequest struct {
	UserID         string               `json:"user_id"`
	OfferID        string               `json:"offer_id"`
	Quantity       int                  `json:"quantity"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	PhoneNumber    string               `json:"phone_number,omitempty"`
	IdempotencyKey string               `json:"idempotency_key"`
}

// UpdateSharesRequest amends an existing subscription, e.g. transferring
// shares to another member.
type UpdateSharesRequest struct {
	TransactionID string `json:"transaction_id"`
	ToUserID      string `json:"to_user_id,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
}

// SharesTxResult is returned by membership writes: the transaction plus
// the offer snapshot it draws from.
type SharesTxResult struct {
	Transaction models.SharesTx    `json:"transaction"`
	Offer       models.SharesOffer `json:"offer"`
}

func (mc *MembershipClient) Subscribe(ctx context.Context, req SubscribeRequest) (*SharesTxResult, error) {
	var out SharesTxResult
	if err := mc.c.do(ctx, http.MethodPost, "/membership/shares/subscribe", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (mc *MembershipClient) UpdateShares(ctx context.Context, req UpdateSharesRequest) (*SharesTxResult, error) {
	var out SharesTxResult
	if err := mc.c.do(ctx, http.MethodPut, "/membership/shares/update", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (mc *MembershipClient) GetOffers(ctx context.Context) ([]models.SharesOffer, error) {
	var out []models.SharesOffer
	if err := mc.c.do(ctx, http.MethodGet, "/membership/shares/offers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTransaction fetches one share subscription by its payment tracker id.
func (mc *MembershipClient) GetTransaction(ctx context.Context, trackerID string) (*models.SharesTx, error) {
	var out models.SharesTx
	path := fmt.Sprintf("/membership/shares/transactions/%s", trackerID)
	if err := mc.c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

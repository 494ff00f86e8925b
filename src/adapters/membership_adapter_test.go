// backend/src/adapters/membership_adapter_test.go
package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/chamasats/backend/src/backend"
	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/svcerror"
)

type stubMembershipAPI struct {
	tx    models.SharesTx
	offer models.SharesOffer

	subscribed []backend.SubscribeRequest
}

func (s *stubMembershipAPI) Subscribe(ctx context.Context, req backend.SubscribeRequest) (*backend.SharesTxResult, error) {
	s.subscribed = append(s.subscribed, req)
	return &backend.SharesTxResult{Transaction: s.tx, Offer: s.offer}, nil
}

func (s *stubMembershipAPI) UpdateShares(ctx context.Context, req backend.UpdateSharesRequest) (*backend.SharesTxResult, error) {
	return &backend.SharesTxResult{Transaction: s.tx, Offer: s.offer}, nil
}

func (s *stubMembershipAPI) GetOffers(ctx context.Context) ([]models.SharesOffer, error) {
	return []models.SharesOffer{s.offer}, nil
}

func (s *stubMembershipAPI) GetTransaction(ctx context.Context, trackerID string) (*models.SharesTx, error) {
	tx := s.tx
	return &tx, nil
}

func testOffer() models.SharesOffer {
	return models.SharesOffer{
		ID:            "offer-1",
		Quantity:      100,
		Subscribed:    95,
		UnitValue:     decimal.NewFromInt(1000),
		Currency:      "KES",
		AvailableFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSubscriptionAmountDerivedFromOffer(t *testing.T) {
	api := &stubMembershipAPI{
		tx: models.SharesTx{
			ID: "sub-1", UserID: "alice", OfferID: "offer-1", Quantity: 3,
			Status: models.SharesTxProposed, Tracker: "trk-1",
			CreatedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		},
		offer: testOffer(),
	}
	adapter := NewMembershipAdapter(api)

	u, err := adapter.ToUnified(context.Background(), api.tx, api.offer, models.Viewer{UserID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Type != models.TxTypeSubscription || u.Context != models.ContextMembership {
		t.Errorf("unexpected type/context: %s/%s", u.Type, u.Context)
	}
	if !u.Amount.Value.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("amount = %s, want 3000 (3 shares x 1000)", u.Amount.Value)
	}
	if u.Status != models.StatusPending {
		t.Errorf("PROPOSED should map to pending, got %s", u.Status)
	}
	if u.Metadata.ShareQuantity != 3 {
		t.Errorf("share quantity = %d, want 3", u.Metadata.ShareQuantity)
	}
}

func TestSubscriptionInsufficientShares(t *testing.T) {
	api := &stubMembershipAPI{offer: testOffer()}
	adapter := NewMembershipAdapter(api)

	_, _, err := adapter.CreateSubscription(context.Background(), api.offer, backend.SubscribeRequest{
		UserID: "alice", OfferID: "offer-1", Quantity: 10,
		PaymentMethod: models.MethodMpesa,
	}, models.Viewer{UserID: "alice"})
	if err == nil {
		t.Fatal("expected business rule error for oversubscription")
	}
	if !svcerror.IsKind(err, svcerror.KindBusinessRule) {
		t.Errorf("expected business_rule kind, got %s", svcerror.KindOf(err))
	}
	if len(api.subscribed) != 0 {
		t.Error("no backend write should happen when the offer lacks shares")
	}
}

func TestSubscriptionIntentCarriesTracker(t *testing.T) {
	api := &stubMembershipAPI{
		tx: models.SharesTx{
			ID: "sub-1", UserID: "alice", OfferID: "offer-1", Quantity: 2,
			Status: models.SharesTxProposed, Tracker: "trk-9",
			CreatedAt: time.Now().UTC(),
		},
		offer: testOffer(),
	}
	adapter := NewMembershipAdapter(api)

	_, intent, err := adapter.CreateSubscription(context.Background(), api.offer, backend.SubscribeRequest{
		UserID: "alice", OfferID: "offer-1", Quantity: 2,
		PaymentMethod: models.MethodLightning,
	}, models.Viewer{UserID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if intent.SharesSubscriptionTracker != "trk-9" {
		t.Errorf("intent tracker = %q, want trk-9", intent.SharesSubscriptionTracker)
	}
	if intent.ChamaTracked() {
		t.Error("membership intent should not be chama-tracked")
	}
}

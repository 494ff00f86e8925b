// backend/src/adapters/personal_adapter_test.go
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

type stubPersonalAPI struct {
	tx     models.PersonalWalletTx
	wallet models.PersonalWallet

	withdrawals []backend.PersonalWithdrawRequest
}

func (s *stubPersonalAPI) Deposit(ctx context.Context, userID, walletID string, req backend.PersonalDepositRequest) (*backend.PersonalTxResult, error) {
	return &backend.PersonalTxResult{Transaction: s.tx, Wallet: s.wallet}, nil
}

func (s *stubPersonalAPI) Withdraw(ctx context.Context, userID, walletID string, req backend.PersonalWithdrawRequest) (*backend.PersonalTxResult, error) {
	s.withdrawals = append(s.withdrawals, req)
	return &backend.PersonalTxResult{Transaction: s.tx, Wallet: s.wallet}, nil
}

func (s *stubPersonalAPI) GetTransaction(ctx context.Context, userID, txID string) (*models.PersonalWalletTx, error) {
	tx := s.tx
	return &tx, nil
}

func TestManualReviewMapsToPendingWithFlag(t *testing.T) {
	api := &stubPersonalAPI{
		tx: models.PersonalWalletTx{
			ID: "ptx-1", UserID: "alice", WalletID: "w-1",
			Type: models.PersonalTxDeposit, Status: models.PersonalTxManualReview,
			AmountFiat: decimal.NewFromInt(2500), Currency: "KES",
			CreatedAt: time.Now().UTC(),
		},
		wallet: models.PersonalWallet{ID: "w-1", UserID: "alice", Type: models.WalletStandard},
	}
	adapter := NewPersonalAdapter(api)

	u, err := adapter.ToUnified(context.Background(), api.tx, api.wallet, models.Viewer{UserID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Status != models.StatusPending {
		t.Errorf("MANUAL_REVIEW should map to pending, got %s", u.Status)
	}
	if !u.Metadata.UnderReview {
		t.Error("under-review flag should be set in metadata")
	}
}

func TestLockedWalletRefusesWithdrawal(t *testing.T) {
	lockEnd := time.Now().Add(30 * 24 * time.Hour)
	api := &stubPersonalAPI{
		wallet: models.PersonalWallet{
			ID: "w-2", UserID: "alice", Type: models.WalletLocked, LockEndDate: &lockEnd,
		},
	}
	adapter := NewPersonalAdapter(api)

	_, _, err := adapter.CreateWithdrawal(context.Background(), "alice", api.wallet, backend.PersonalWithdrawRequest{
		Amount: decimal.NewFromInt(1000), Currency: "KES",
		PaymentMethod: models.MethodMpesa,
	}, models.Viewer{UserID: "alice"})
	if err == nil {
		t.Fatal("expected business rule error for locked wallet")
	}
	if !svcerror.IsKind(err, svcerror.KindBusinessRule) {
		t.Errorf("expected business_rule kind, got %s", svcerror.KindOf(err))
	}
	if len(api.withdrawals) != 0 {
		t.Error("no backend write should happen for a locked wallet")
	}
}

func TestExpiredLockAllowsWithdrawal(t *testing.T) {
	lockEnd := time.Now().Add(-time.Hour)
	api := &stubPersonalAPI{
		tx: models.PersonalWalletTx{
			ID: "ptx-2", UserID: "alice", WalletID: "w-2",
			Type: models.PersonalTxWithdraw, Status: models.PersonalTxPending,
			AmountFiat: decimal.NewFromInt(1000), Currency: "KES",
			CreatedAt: time.Now().UTC(),
		},
		wallet: models.PersonalWallet{
			ID: "w-2", UserID: "alice", Type: models.WalletLocked, LockEndDate: &lockEnd,
		},
	}
	adapter := NewPersonalAdapter(api)

	u, intent, err := adapter.CreateWithdrawal(context.Background(), "alice", api.wallet, backend.PersonalWithdrawRequest{
		Amount: decimal.NewFromInt(1000), Currency: "KES",
		PaymentMethod: models.MethodMpesa,
	}, models.Viewer{UserID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", u.Status)
	}
	if intent == nil || intent.Method != models.MethodMpesa {
		t.Errorf("intent should carry the payment method, got %+v", intent)
	}
}

func TestPersonalActionSurface(t *testing.T) {
	adapter := NewPersonalAdapter(&stubPersonalAPI{})
	failed := models.PersonalWalletTx{
		ID: "ptx-3", UserID: "alice", Status: models.PersonalTxFailed,
		Type: models.PersonalTxDeposit,
	}

	subject := adapter.AvailableActions(failed, models.Viewer{UserID: "alice"})
	if !hasAction(subject, models.ActionRetry) {
		t.Errorf("subject should see retry on failed tx, got %v", actionTypes(subject))
	}

	other := adapter.AvailableActions(failed, models.Viewer{UserID: "bob"})
	if len(other) != 1 || other[0].Type != models.ActionView {
		t.Errorf("non-subject should see only view, got %v", actionTypes(other))
	}
}

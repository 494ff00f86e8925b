// backend/src/services/transaction_service_test.go
package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/chamasats/backend/src/backend"
	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/reconciler"
	"github.com/username/chamasats/backend/src/svcerror"
)

// --- stubs ---

type svcChamaStub struct {
	mu       sync.Mutex
	chama    models.Chama
	tx       models.ChamaWalletTx
	seq      []models.ChamaTxStatus
	getCalls int
	deposits int
	updates  []backend.ChamaUpdateRequest
}

func (s *svcChamaStub) Deposit(ctx context.Context, chamaID string, req backend.ChamaDepositRequest) (*backend.ChamaTxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits++
	return &backend.ChamaTxResult{Transaction: s.tx, Chama: s.chama}, nil
}

func (s *svcChamaStub) Withdraw(ctx context.Context, chamaID string, req backend.ChamaWithdrawRequest) (*backend.ChamaTxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &backend.ChamaTxResult{Transaction: s.tx, Chama: s.chama}, nil
}

func (s *svcChamaStub) GetTransaction(ctx context.Context, chamaID, txID string) (*models.ChamaWalletTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.getCalls
	if idx >= len(s.seq) {
		idx = len(s.seq) - 1
	}
	s.getCalls++
	tx := s.tx
	tx.Status = s.seq[idx]
	return &tx, nil
}

func (s *svcChamaStub) UpdateTransaction(ctx context.Context, chamaID, txID string, req backend.ChamaUpdateRequest) (*backend.ChamaTxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, req)
	switch {
	case req.Status != nil:
		s.seq = []models.ChamaTxStatus{*req.Status}
	case len(req.Reviews) > 0 && req.Reviews[0].Review == models.ReviewApprove:
		s.tx.Reviews = append(s.tx.Reviews, req.Reviews...)
		s.seq = []models.ChamaTxStatus{models.ChamaTxApproved}
	case len(req.Reviews) > 0:
		s.tx.Reviews = append(s.tx.Reviews, req.Reviews...)
		s.seq = []models.ChamaTxStatus{models.ChamaTxRejected}
	}
	s.getCalls = 0
	return &backend.ChamaTxResult{Transaction: s.tx, Chama: s.chama}, nil
}

func (s *svcChamaStub) GetChama(ctx context.Context, chamaID string) (*models.Chama, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chama := s.chama
	return &chama, nil
}

func (s *svcChamaStub) GetMembers(ctx context.Context, chamaID string) ([]models.MemberProfile, error) {
	return []models.MemberProfile{{UserID: "member-1", Name: "Achieng"}}, nil
}

type svcPersonalStub struct {
	mu     sync.Mutex
	wallet models.PersonalWallet
	tx     models.PersonalWalletTx
	seq    []models.PersonalTxStatus
	calls  int
}

func (s *svcPersonalStub) Deposit(ctx context.Context, userID, walletID string, req backend.PersonalDepositRequest) (*backend.PersonalTxResult, error) {
	return &backend.PersonalTxResult{Transaction: s.tx, Wallet: s.wallet}, nil
}

func (s *svcPersonalStub) Withdraw(ctx context.Context, userID, walletID string, req backend.PersonalWithdrawRequest) (*backend.PersonalTxResult, error) {
	return &backend.PersonalTxResult{Transaction: s.tx, Wallet: s.wallet}, nil
}

func (s *svcPersonalStub) GetTransaction(ctx context.Context, userID, txID string) (*models.PersonalWalletTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.seq) {
		idx = len(s.seq) - 1
	}
	s.calls++
	tx := s.tx
	tx.Status = s.seq[idx]
	return &tx, nil
}

type svcMembershipStub struct {
	mu         sync.Mutex
	offers     []models.SharesOffer
	tx         models.SharesTx
	subscribed int
}

func (s *svcMembershipStub) Subscribe(ctx context.Context, req backend.SubscribeRequest) (*backend.SharesTxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed++
	return &backend.SharesTxResult{Transaction: s.tx, Offer: s.offers[0]}, nil
}

func (s *svcMembershipStub) UpdateShares(ctx context.Context, req backend.UpdateSharesRequest) (*backend.SharesTxResult, error) {
	return &backend.SharesTxResult{Transaction: s.tx, Offer: s.offers[0]}, nil
}

func (s *svcMembershipStub) GetOffers(ctx context.Context) ([]models.SharesOffer, error) {
	return s.offers, nil
}

func (s *svcMembershipStub) GetTransaction(ctx context.Context, trackerID string) (*models.SharesTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.tx
	return &tx, nil
}

type memStore struct {
	mu   sync.Mutex
	rows map[string]models.UnifiedTransaction
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]models.UnifiedTransaction)}
}

func (s *memStore) Upsert(ctx context.Context, tx models.UnifiedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[tx.Key()] = tx
	return nil
}

func (s *memStore) Get(ctx context.Context, txContext models.TxContext, id string) (models.UnifiedTransaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.rows[string(txContext)+"/"+id]
	return tx, ok, nil
}

func (s *memStore) List(ctx context.Context, f ListFilter) ([]models.UnifiedTransaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UnifiedTransaction
	for _, tx := range s.rows {
		if f.Context != "" && tx.Context != f.Context {
			continue
		}
		if f.Status != "" && tx.Status != f.Status {
			continue
		}
		if f.UserID != "" && tx.UserID != f.UserID {
			continue
		}
		out = append(out, tx)
	}
	return out, len(out), nil
}

func (s *memStore) status(key string) (models.UnifiedStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.rows[key]
	return tx.Status, ok
}

// --- fixtures ---

func testChama() models.Chama {
	return models.Chama{
		ID:   "chama-1",
		Name: "Umoja Savings",
		Members: []models.ChamaMember{
			{UserID: "member-1", Roles: []models.ChamaMemberRole{models.ChamaRoleMember}},
			{UserID: "admin-1", Roles: []models.ChamaMemberRole{models.ChamaRoleAdmin}},
		},
	}
}

func testChamaTx(txType models.ChamaTxType, status models.ChamaTxStatus) models.ChamaWalletTx {
	return models.ChamaWalletTx{
		ID:        "ctx-1",
		ChamaID:   "chama-1",
		MemberID:  "member-1",
		Type:      txType,
		Status:    status,
		Amount:    decimal.NewFromInt(2000),
		Currency:  "KES",
		CreatedAt: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}
}

func newTestManager(chama *svcChamaStub, personal *svcPersonalStub, membership *svcMembershipStub, store *memStore) *TransactionManager {
	rec := reconciler.New(reconciler.Config{Interval: 5 * time.Millisecond, Timeout: 250 * time.Millisecond})
	return NewTransactionManager(chama, personal, membership, store, rec, time.Minute)
}

func waitForStatus(t *testing.T, updates <-chan models.UnifiedTransaction, want models.UnifiedStatus) models.UnifiedTransaction {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case tx := <-updates:
			if tx.Status == want {
				return tx
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		}
	}
}

// --- tests ---

func TestCreateChamaDepositRejectsAmountBelowMinimum(t *testing.T) {
	chama := &svcChamaStub{chama: testChama(), tx: testChamaTx(models.ChamaTxDeposit, models.ChamaTxPending), seq: []models.ChamaTxStatus{models.ChamaTxPending}}
	m := newTestManager(chama, &svcPersonalStub{}, &svcMembershipStub{}, newMemStore())
	defer m.Close()

	_, err := m.CreateChamaDeposit(context.Background(), ChamaDepositParams{
		ChamaID:       "chama-1",
		Amount:        decimal.NewFromInt(5),
		Currency:      "KES",
		PaymentMethod: models.MethodMpesa,
		PhoneNumber:   "254712345678",
	}, models.Viewer{UserID: "member-1"})

	if !svcerror.IsKind(err, svcerror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if chama.deposits != 0 {
		t.Fatalf("expected no backend write after validation failure, got %d", chama.deposits)
	}
}

func TestCreateChamaDepositReconcilesToCompletion(t *testing.T) {
	chama := &svcChamaStub{
		chama: testChama(),
		tx:    testChamaTx(models.ChamaTxDeposit, models.ChamaTxPending),
		seq:   []models.ChamaTxStatus{models.ChamaTxPending, models.ChamaTxComplete},
	}
	store := newMemStore()
	m := newTestManager(chama, &svcPersonalStub{}, &svcMembershipStub{}, store)
	defer m.Close()

	updates := make(chan models.UnifiedTransaction, 32)
	m.RegisterListener(func(tx models.UnifiedTransaction) { updates <- tx })

	res, err := m.CreateChamaDeposit(context.Background(), ChamaDepositParams{
		ChamaID:       "chama-1",
		Amount:        decimal.NewFromInt(2000),
		Currency:      "KES",
		PaymentMethod: models.MethodMpesa,
		PhoneNumber:   "254712345678",
	}, models.Viewer{UserID: "member-1"})
	if err != nil {
		t.Fatalf("CreateChamaDeposit: %v", err)
	}
	if res.Transaction.Status != models.StatusPending {
		t.Fatalf("expected pending after create, got %s", res.Transaction.Status)
	}
	if res.Intent == nil || !res.Intent.ChamaTracked() {
		t.Fatalf("expected a chama-tracked payment intent, got %+v", res.Intent)
	}

	final := waitForStatus(t, updates, models.StatusCompleted)
	if final.Context != models.ContextChama || final.ID != "ctx-1" {
		t.Fatalf("unexpected reconciled transaction %s", final.Key())
	}

	if status, ok := store.status("chama/ctx-1"); !ok || status != models.StatusCompleted {
		t.Fatalf("expected completed snapshot persisted, got %q (found %v)", status, ok)
	}
}

func TestGetTransactionRejectsTerminalRegression(t *testing.T) {
	chama := &svcChamaStub{
		chama: testChama(),
		tx:    testChamaTx(models.ChamaTxDeposit, models.ChamaTxComplete),
		seq:   []models.ChamaTxStatus{models.ChamaTxPending},
	}
	m := newTestManager(chama, &svcPersonalStub{}, &svcMembershipStub{}, newMemStore())
	defer m.Close()

	completed := models.UnifiedTransaction{
		ID:      "ctx-1",
		Type:    models.TxTypeDeposit,
		Context: models.ContextChama,
		Status:  models.StatusCompleted,
		Amount:  models.Money{Value: decimal.NewFromInt(2000), Currency: "KES"},
		UserID:  "member-1",
		Metadata: models.TxMetadata{
			GroupID: "chama-1",
		},
	}
	m.recordMutation(context.Background(), completed)

	_, err := m.GetTransaction(context.Background(), models.ContextChama, "ctx-1", models.Viewer{UserID: "member-1"})
	if !svcerror.IsKind(err, svcerror.KindInconsistency) {
		t.Fatalf("expected inconsistency error for terminal regression, got %v", err)
	}
}

func TestGetTransactionRejectsTerminalRegressionAfterRestart(t *testing.T) {
	chama := &svcChamaStub{
		chama: testChama(),
		tx:    testChamaTx(models.ChamaTxDeposit, models.ChamaTxPending),
		seq:   []models.ChamaTxStatus{models.ChamaTxPending},
	}
	store := newMemStore()

	// The completed snapshot exists only in the store: a fresh manager
	// models a process that restarted after settling the payment.
	completed := models.UnifiedTransaction{
		ID:      "ctx-1",
		Type:    models.TxTypeDeposit,
		Context: models.ContextChama,
		Status:  models.StatusCompleted,
		Amount:  models.Money{Value: decimal.NewFromInt(2000), Currency: "KES"},
		UserID:  "member-1",
		Metadata: models.TxMetadata{
			GroupID: "chama-1",
		},
	}
	if err := store.Upsert(context.Background(), completed); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	m := newTestManager(chama, &svcPersonalStub{}, &svcMembershipStub{}, store)
	defer m.Close()

	_, err := m.GetTransaction(context.Background(), models.ContextChama, "ctx-1", models.Viewer{UserID: "member-1"})
	if !svcerror.IsKind(err, svcerror.KindInconsistency) {
		t.Fatalf("expected inconsistency error for terminal regression, got %v", err)
	}
	if status, ok := store.status("chama/ctx-1"); !ok || status != models.StatusCompleted {
		t.Fatalf("expected the completed snapshot to stay untouched, got %q", status)
	}
}

func TestPerformActionRetryReopensFailedTransaction(t *testing.T) {
	chama := &svcChamaStub{
		chama: testChama(),
		tx:    testChamaTx(models.ChamaTxDeposit, models.ChamaTxFailed),
		seq:   []models.ChamaTxStatus{models.ChamaTxFailed},
	}
	m := newTestManager(chama, &svcPersonalStub{}, &svcMembershipStub{}, newMemStore())
	defer m.Close()

	failed := models.UnifiedTransaction{
		ID:       "ctx-1",
		Type:     models.TxTypeDeposit,
		Context:  models.ContextChama,
		Status:   models.StatusFailed,
		UserID:   "member-1",
		Metadata: models.TxMetadata{GroupID: "chama-1"},
	}
	m.recordMutation(context.Background(), failed)

	tx, err := m.PerformAction(context.Background(), ActionRequest{
		Context: models.ContextChama,
		TxID:    "ctx-1",
		Action:  models.ActionRetry,
	}, models.Viewer{UserID: "member-1"})
	if err != nil {
		t.Fatalf("PerformAction retry: %v", err)
	}
	if tx.Status != models.StatusPending {
		t.Fatalf("expected retry to re-queue as pending, got %s", tx.Status)
	}
}

func TestPerformActionDeniedWhenNotAdvertised(t *testing.T) {
	chama := &svcChamaStub{
		chama: testChama(),
		tx:    testChamaTx(models.ChamaTxWithdrawal, models.ChamaTxPending),
		seq:   []models.ChamaTxStatus{models.ChamaTxPending},
	}
	m := newTestManager(chama, &svcPersonalStub{}, &svcMembershipStub{}, newMemStore())
	defer m.Close()

	// member-1 is the subject, not an admin: approve is never offered.
	_, err := m.PerformAction(context.Background(), ActionRequest{
		Context: models.ContextChama,
		ChamaID: "chama-1",
		TxID:    "ctx-1",
		Action:  models.ActionApprove,
	}, models.Viewer{UserID: "member-1"})
	if !svcerror.IsKind(err, svcerror.KindBusinessRule) {
		t.Fatalf("expected business rule error, got %v", err)
	}
	if len(chama.updates) != 0 {
		t.Fatalf("expected no backend write for a denied action, got %d", len(chama.updates))
	}
}

func TestPerformActionApproveByAdmin(t *testing.T) {
	chama := &svcChamaStub{
		chama: testChama(),
		tx:    testChamaTx(models.ChamaTxWithdrawal, models.ChamaTxPending),
		seq:   []models.ChamaTxStatus{models.ChamaTxPending},
	}
	m := newTestManager(chama, &svcPersonalStub{}, &svcMembershipStub{}, newMemStore())
	defer m.Close()

	tx, err := m.PerformAction(context.Background(), ActionRequest{
		Context: models.ContextChama,
		ChamaID: "chama-1",
		TxID:    "ctx-1",
		Action:  models.ActionApprove,
	}, models.Viewer{UserID: "admin-1"})
	if err != nil {
		t.Fatalf("PerformAction approve: %v", err)
	}
	if tx.Status != models.StatusApproved {
		t.Fatalf("expected approved after admin review, got %s", tx.Status)
	}
	if len(chama.updates) != 1 || len(chama.updates[0].Reviews) != 1 {
		t.Fatalf("expected exactly one review write, got %+v", chama.updates)
	}
}

func TestSubscribeSharesDerivesAmountFromOffer(t *testing.T) {
	offer := models.SharesOffer{
		ID:        "offer-1",
		Quantity:  1000,
		UnitValue: decimal.NewFromInt(100),
		Currency:  "KES",
	}
	membership := &svcMembershipStub{
		offers: []models.SharesOffer{offer},
		tx: models.SharesTx{
			ID:       "stx-1",
			UserID:   "member-1",
			OfferID:  "offer-1",
			Quantity: 5,
			Status:   models.SharesTxProposed,
			Tracker:  "tracker-1",
		},
	}
	m := newTestManager(&svcChamaStub{seq: []models.ChamaTxStatus{models.ChamaTxPending}}, &svcPersonalStub{}, membership, newMemStore())
	defer m.Close()

	res, err := m.SubscribeShares(context.Background(), SubscribeSharesParams{
		OfferID:       "offer-1",
		Quantity:      5,
		PaymentMethod: models.MethodMpesa,
		PhoneNumber:   "254712345678",
	}, models.Viewer{UserID: "member-1"})
	if err != nil {
		t.Fatalf("SubscribeShares: %v", err)
	}
	if !res.Transaction.Amount.Value.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected derived amount 500, got %s", res.Transaction.Amount.Value)
	}
	if res.Intent == nil || res.Intent.SharesSubscriptionTracker != "tracker-1" {
		t.Fatalf("expected intent keyed by tracker, got %+v", res.Intent)
	}
}

func TestSubscribeSharesRejectsOverLimitBeforeWrite(t *testing.T) {
	offer := models.SharesOffer{
		ID:        "offer-1",
		Quantity:  100000,
		UnitValue: decimal.NewFromInt(100),
		Currency:  "KES",
	}
	membership := &svcMembershipStub{offers: []models.SharesOffer{offer}}
	m := newTestManager(&svcChamaStub{seq: []models.ChamaTxStatus{models.ChamaTxPending}}, &svcPersonalStub{}, membership, newMemStore())
	defer m.Close()

	// 20000 shares at 100 is 2,000,000: above the membership ceiling.
	_, err := m.SubscribeShares(context.Background(), SubscribeSharesParams{
		OfferID:       "offer-1",
		Quantity:      20000,
		PaymentMethod: models.MethodLightning,
	}, models.Viewer{UserID: "member-1"})
	if !svcerror.IsKind(err, svcerror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if membership.subscribed != 0 {
		t.Fatalf("expected no backend write after validation failure")
	}
}

func TestSubscribeSharesUnknownOffer(t *testing.T) {
	m := newTestManager(&svcChamaStub{seq: []models.ChamaTxStatus{models.ChamaTxPending}}, &svcPersonalStub{}, &svcMembershipStub{}, newMemStore())
	defer m.Close()

	_, err := m.SubscribeShares(context.Background(), SubscribeSharesParams{
		OfferID:  "missing",
		Quantity: 1,
	}, models.Viewer{UserID: "member-1"})
	if !errors.Is(err, ErrUnknownOffer) {
		t.Fatalf("expected ErrUnknownOffer, got %v", err)
	}
}

func TestGetTransactionUnknownID(t *testing.T) {
	m := newTestManager(&svcChamaStub{seq: []models.ChamaTxStatus{models.ChamaTxPending}}, &svcPersonalStub{}, &svcMembershipStub{}, newMemStore())
	defer m.Close()

	_, err := m.GetTransaction(context.Background(), models.ContextChama, "nope", models.Viewer{UserID: "member-1"})
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	store := newMemStore()
	m := newTestManager(&svcChamaStub{seq: []models.ChamaTxStatus{models.ChamaTxPending}}, &svcPersonalStub{}, &svcMembershipStub{}, store)
	defer m.Close()

	m.recordMutation(context.Background(), models.UnifiedTransaction{
		ID: "a", Context: models.ContextChama, Status: models.StatusPending, UserID: "u1",
	})
	m.recordMutation(context.Background(), models.UnifiedTransaction{
		ID: "b", Context: models.ContextPersonal, Status: models.StatusCompleted, UserID: "u1",
	})

	res, err := m.ListTransactions(context.Background(), ListFilter{Context: models.ContextChama})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if res.Total != 1 || res.Items[0].ID != "a" {
		t.Fatalf("expected only the chama transaction, got %+v", res.Items)
	}
}

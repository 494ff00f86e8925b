// backend/src/services/transaction_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/username/chamasats/backend/src/adapters"
	"github.com/username/chamasats/backend/src/backend"
	"github.com/username/chamasats/backend/src/limits"
	"github.com/username/chamasats/backend/src/logger"
	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/reconciler"
	"github.com/username/chamasats/backend/src/svcerror"
)

// TransactionManager is the aggregation context over the three domain
// adapters. It owns the in-memory unified set, persists every accepted
// update as a snapshot, and drives reconciliation polling for in-flight
// payments. Updates replace the stored record wholesale; partial merges
// never happen.
type TransactionManager struct {
	chama      *adapters.ChamaAdapter
	personal   *adapters.PersonalAdapter
	membership *adapters.MembershipAdapter

	chamaAPI      adapters.ChamaAPI
	personalAPI   adapters.PersonalAPI
	membershipAPI adapters.MembershipAPI

	store SnapshotStore
	rec   *reconciler.Reconciler

	mu        sync.RWMutex
	txs       map[string]models.UnifiedTransaction
	listeners []func(models.UnifiedTransaction)
}

var _ TransactionService = (*TransactionManager)(nil)

func NewTransactionManager(
	chamaAPI adapters.ChamaAPI,
	personalAPI adapters.PersonalAPI,
	membershipAPI adapters.MembershipAPI,
	store SnapshotStore,
	rec *reconciler.Reconciler,
	memberCacheExpiry time.Duration,
) *TransactionManager {
	return &TransactionManager{
		chama:         adapters.NewChamaAdapter(chamaAPI, memberCacheExpiry),
		personal:      adapters.NewPersonalAdapter(personalAPI),
		membership:    adapters.NewMembershipAdapter(membershipAPI),
		chamaAPI:      chamaAPI,
		personalAPI:   personalAPI,
		membershipAPI: membershipAPI,
		store:         store,
		rec:           rec,
		txs:           make(map[string]models.UnifiedTransaction),
	}
}

// RegisterListener subscribes to accepted transaction updates. Listeners
// run synchronously after the update is recorded, outside the set lock.
func (m *TransactionManager) RegisterListener(fn func(models.UnifiedTransaction)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Close stops every poll task and waits for them to drain.
func (m *TransactionManager) Close() {
	m.rec.StopAll()
}

// ListTransactions serves persisted snapshots. Snapshot listings carry no
// actions; GetTransaction computes those against the live backend state.
func (m *TransactionManager) ListTransactions(ctx context.Context, f ListFilter) (ListResult, error) {
	items, total, err := m.store.List(ctx, f)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

// GetTransaction re-fetches one transaction from its backend, records the
// refreshed snapshot, and returns it materialized for the viewer with a
// freshly computed action set.
func (m *TransactionManager) GetTransaction(ctx context.Context, txContext models.TxContext, id string, viewer models.Viewer) (models.UnifiedTransaction, error) {
	snap, ok, err := m.snapshot(ctx, txContext, id)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	if !ok {
		return models.UnifiedTransaction{}, ErrTransactionNotFound
	}

	var fresh models.UnifiedTransaction
	switch txContext {
	case models.ContextChama:
		chama, err := m.chamaAPI.GetChama(ctx, snap.Metadata.GroupID)
		if err != nil {
			return models.UnifiedTransaction{}, err
		}
		fresh, err = m.chama.Refresh(ctx, snap.Metadata.GroupID, id, *chama, viewer)
		if err != nil {
			return models.UnifiedTransaction{}, err
		}
	case models.ContextPersonal:
		wallet := models.PersonalWallet{
			ID:     snap.Metadata.WalletID,
			UserID: snap.UserID,
			Type:   models.WalletType(snap.Metadata.WalletType),
		}
		fresh, err = m.personal.Refresh(ctx, snap.UserID, id, wallet, viewer)
		if err != nil {
			return models.UnifiedTransaction{}, err
		}
	case models.ContextMembership:
		tx, err := m.membershipAPI.GetTransaction(ctx, trackerRef(snap))
		if err != nil {
			return models.UnifiedTransaction{}, err
		}
		offer, err := m.offerByID(ctx, tx.OfferID)
		if err != nil {
			return models.UnifiedTransaction{}, err
		}
		fresh, err = m.membership.ToUnified(ctx, *tx, offer, viewer)
		if err != nil {
			return models.UnifiedTransaction{}, err
		}
	default:
		return models.UnifiedTransaction{}, svcerror.FieldError("context",
			fmt.Sprintf("unknown transaction context %q", txContext))
	}

	if err := m.recordRefresh(ctx, fresh); err != nil {
		return models.UnifiedTransaction{}, err
	}
	return fresh, nil
}

// CreateChamaDeposit initiates a group-wallet deposit and starts
// reconciling its payment.
func (m *TransactionManager) CreateChamaDeposit(ctx context.Context, p ChamaDepositParams, viewer models.Viewer) (CreateResult, error) {
	if err := checkLimits(models.ContextChama, models.TxTypeDeposit, p.PaymentMethod, p.Amount); err != nil {
		return CreateResult{}, err
	}

	req := backend.ChamaDepositRequest{
		MemberID:       viewer.UserID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		PaymentMethod:  p.PaymentMethod,
		PhoneNumber:    p.PhoneNumber,
		Reference:      p.Reference,
		IdempotencyKey: uuid.NewString(),
	}
	tx, intent, err := m.chama.CreateDeposit(ctx, p.ChamaID, req, viewer)
	if err != nil {
		return CreateResult{}, err
	}

	m.recordMutation(ctx, tx)
	m.track(ctx, intent)
	return CreateResult{Transaction: tx, Intent: intent}, nil
}

// CreateChamaWithdrawal initiates a group-wallet withdrawal. The request
// enters the admin review gate; its reconciliation poll watches the whole
// review-then-settle lifecycle.
func (m *TransactionManager) CreateChamaWithdrawal(ctx context.Context, p ChamaWithdrawParams, viewer models.Viewer) (CreateResult, error) {
	if err := checkLimits(models.ContextChama, models.TxTypeWithdrawal, p.PaymentMethod, p.Amount); err != nil {
		return CreateResult{}, err
	}

	req := backend.ChamaWithdrawRequest{
		MemberID:       viewer.UserID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		PaymentMethod:  p.PaymentMethod,
		PhoneNumber:    p.PhoneNumber,
		LightningAddr:  p.LightningAddr,
		Reference:      p.Reference,
		IdempotencyKey: uuid.NewString(),
	}
	tx, intent, err := m.chama.CreateWithdrawal(ctx, p.ChamaID, req, viewer)
	if err != nil {
		return CreateResult{}, err
	}

	m.recordMutation(ctx, tx)
	m.track(ctx, intent)
	return CreateResult{Transaction: tx, Intent: intent}, nil
}

// CreatePersonalDeposit initiates a personal-wallet deposit.
func (m *TransactionManager) CreatePersonalDeposit(ctx context.Context, p PersonalDepositParams, viewer models.Viewer) (CreateResult, error) {
	if err := checkLimits(models.ContextPersonal, models.TxTypeDeposit, p.PaymentMethod, p.Amount); err != nil {
		return CreateResult{}, err
	}

	req := backend.PersonalDepositRequest{
		Amount:         p.Amount,
		Currency:       p.Currency,
		PaymentMethod:  p.PaymentMethod,
		PhoneNumber:    p.PhoneNumber,
		Reference:      p.Reference,
		IdempotencyKey: uuid.NewString(),
	}
	tx, intent, err := m.personal.CreateDeposit(ctx, viewer.UserID, p.WalletID, req, viewer)
	if err != nil {
		return CreateResult{}, err
	}

	m.recordMutation(ctx, tx)
	m.track(ctx, intent)
	return CreateResult{Transaction: tx, Intent: intent}, nil
}

// CreatePersonalWithdrawal initiates a personal-wallet withdrawal. Locked
// wallets are refused by the adapter before any backend write.
func (m *TransactionManager) CreatePersonalWithdrawal(ctx context.Context, p PersonalWithdrawParams, viewer models.Viewer) (CreateResult, error) {
	if err := checkLimits(models.ContextPersonal, models.TxTypeWithdrawal, p.PaymentMethod, p.Amount); err != nil {
		return CreateResult{}, err
	}

	req := backend.PersonalWithdrawRequest{
		Amount:         p.Amount,
		Currency:       p.Currency,
		PaymentMethod:  p.PaymentMethod,
		PhoneNumber:    p.PhoneNumber,
		LightningAddr:  p.LightningAddr,
		IdempotencyKey: uuid.NewString(),
	}
	tx, intent, err := m.personal.CreateWithdrawal(ctx, viewer.UserID, p.Wallet, req, viewer)
	if err != nil {
		return CreateResult{}, err
	}

	m.recordMutation(ctx, tx)
	m.track(ctx, intent)
	return CreateResult{Transaction: tx, Intent: intent}, nil
}

// SubscribeShares subscribes the viewer to shares in an offer. The amount
// checked against limits is the derived one: quantity times unit value.
func (m *TransactionManager) SubscribeShares(ctx context.Context, p SubscribeSharesParams, viewer models.Viewer) (CreateResult, error) {
	offer, err := m.offerByID(ctx, p.OfferID)
	if err != nil {
		return CreateResult{}, err
	}
	amount := offer.UnitValue.Mul(decimal.NewFromInt(int64(p.Quantity)))
	if err := checkLimits(models.ContextMembership, models.TxTypeSubscription, p.PaymentMethod, amount); err != nil {
		return CreateResult{}, err
	}

	req := backend.SubscribeRequest{
		UserID:         viewer.UserID,
		OfferID:        p.OfferID,
		Quantity:       p.Quantity,
		PaymentMethod:  p.PaymentMethod,
		PhoneNumber:    p.PhoneNumber,
		IdempotencyKey: uuid.NewString(),
	}
	tx, intent, err := m.membership.CreateSubscription(ctx, offer, req, viewer)
	if err != nil {
		return CreateResult{}, err
	}

	m.recordMutation(ctx, tx)
	m.track(ctx, intent)
	return CreateResult{Transaction: tx, Intent: intent}, nil
}

// TransferShares moves shares from an existing subscription to another
// member. Transfers settle internally, so no payment is reconciled.
func (m *TransactionManager) TransferShares(ctx context.Context, p TransferSharesParams, viewer models.Viewer) (models.UnifiedTransaction, error) {
	req := backend.UpdateSharesRequest{
		TransactionID: p.TransactionID,
		ToUserID:      p.ToUserID,
		Quantity:      p.Quantity,
	}
	tx, err := m.membership.TransferShares(ctx, req, viewer)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	m.recordMutation(ctx, tx)
	return tx, nil
}

// PerformAction dispatches one of the advertised transaction actions. The
// decision table is re-evaluated against live backend state immediately
// before the write, so a stale client cannot exercise an action the
// transaction no longer offers.
//
// Only chama actions mutate through this service: personal retry and
// membership cancel re-initiate the payment flow client-side.
func (m *TransactionManager) PerformAction(ctx context.Context, req ActionRequest, viewer models.Viewer) (models.UnifiedTransaction, error) {
	if req.Context != models.ContextChama {
		return models.UnifiedTransaction{}, svcerror.New(svcerror.KindValidation,
			fmt.Sprintf("no server-side %s action exists for %s transactions", req.Action, req.Context))
	}

	chamaID := req.ChamaID
	if chamaID == "" {
		snap, ok, err := m.snapshot(ctx, models.ContextChama, req.TxID)
		if err != nil {
			return models.UnifiedTransaction{}, err
		}
		if !ok {
			return models.UnifiedTransaction{}, ErrTransactionNotFound
		}
		chamaID = snap.Metadata.GroupID
	}

	raw, err := m.chamaAPI.GetTransaction(ctx, chamaID, req.TxID)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}
	chama, err := m.chamaAPI.GetChama(ctx, chamaID)
	if err != nil {
		return models.UnifiedTransaction{}, err
	}

	allowed := false
	for _, a := range m.chama.AvailableActions(*raw, *chama, viewer) {
		if a.Type == req.Action && a.Enabled {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.UnifiedTransaction{}, svcerror.New(svcerror.KindBusinessRule,
			fmt.Sprintf("the %s action is not available on this transaction", req.Action))
	}

	var tx models.UnifiedTransaction
	switch req.Action {
	case models.ActionApprove:
		tx, err = m.chama.ApproveWithdrawal(ctx, chamaID, req.TxID, viewer)
	case models.ActionReject:
		tx, err = m.chama.RejectWithdrawal(ctx, chamaID, req.TxID, viewer)
	case models.ActionExecute:
		tx, err = m.chama.ExecuteWithdrawal(ctx, chamaID, req.TxID, viewer)
	case models.ActionCancel:
		tx, err = m.chama.CancelWithdrawal(ctx, chamaID, req.TxID, viewer)
	case models.ActionRetry:
		tx, err = m.chama.RetryTransaction(ctx, chamaID, req.TxID, viewer)
	default:
		return models.UnifiedTransaction{}, svcerror.FieldError("action",
			fmt.Sprintf("unknown action %q", req.Action))
	}
	if err != nil {
		return models.UnifiedTransaction{}, err
	}

	m.recordMutation(ctx, tx)

	// Execute releases funds and retry re-queues a payment: both put the
	// transaction back in flight, so both restart reconciliation.
	if req.Action == models.ActionExecute || req.Action == models.ActionRetry {
		m.track(ctx, &models.PaymentIntent{
			PaymentID: req.TxID,
			Amount:    tx.Amount,
			Status:    tx.Status,
			CreatedAt: tx.CreatedAt,
			ChamaID:   chamaID,
			UserID:    tx.UserID,
		})
	}
	return tx, nil
}

// track starts a reconciliation poll for an in-flight payment intent.
// Terminal intents are not polled; a duplicate start for an intent
// already being polled joins the existing task.
func (m *TransactionManager) track(ctx context.Context, intent *models.PaymentIntent) {
	if intent == nil || !intent.Status.IsPollable() {
		return
	}

	src := reconciler.SourceForIntent(*intent, m.chamaAPI, m.personalAPI, m.membershipAPI)
	tracked := *intent

	refresh := func(models.UnifiedStatus, any) {
		m.pollRefresh(tracked)
	}
	cb := reconciler.Callbacks{
		OnStatusChange: refresh,
		OnComplete:     refresh,
		OnFail:         refresh,
		OnTimeout: func() {
			logger.FromContext(context.Background()).Info("Payment reconciliation timed out",
				"paymentID", tracked.PaymentID, "chamaID", tracked.ChamaID)
		},
	}

	// Poll lifetime is owned by the service, not the request that
	// started it.
	pollCtx := logger.ToContext(context.Background(), logger.FromContext(ctx))
	if _, err := m.rec.Start(pollCtx, src, intent.Status, cb); err != nil {
		logger.FromContext(ctx).Warn("Failed to start payment reconciliation",
			"paymentID", intent.PaymentID, "error", err)
	}
}

// pollRefresh re-normalizes a tracked transaction after a poll event and
// records the refreshed snapshot.
func (m *TransactionManager) pollRefresh(intent models.PaymentIntent) {
	ctx := context.Background()
	viewer := models.Viewer{UserID: intent.UserID}

	var (
		fresh models.UnifiedTransaction
		err   error
	)
	switch {
	case intent.ChamaTracked():
		var chama *models.Chama
		chama, err = m.chamaAPI.GetChama(ctx, intent.ChamaID)
		if err == nil {
			fresh, err = m.chama.Refresh(ctx, intent.ChamaID, intent.PaymentID, *chama, viewer)
		}
	case intent.SharesSubscriptionTracker != "":
		var tx *models.SharesTx
		tx, err = m.membershipAPI.GetTransaction(ctx, intent.SharesSubscriptionTracker)
		if err == nil {
			var offer models.SharesOffer
			offer, err = m.offerByID(ctx, tx.OfferID)
			if err == nil {
				fresh, err = m.membership.ToUnified(ctx, *tx, offer, viewer)
			}
		}
	default:
		wallet := m.walletFor(intent)
		fresh, err = m.personal.Refresh(ctx, intent.UserID, intent.PaymentID, wallet, viewer)
	}
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to refresh transaction after poll event",
			"paymentID", intent.PaymentID, "error", err)
		return
	}

	if err := m.recordRefresh(ctx, fresh); err != nil {
		logger.FromContext(ctx).Error("Rejected poll refresh", "key", fresh.Key(), "error", err)
	}
}

// walletFor rebuilds the owning wallet of a personal payment from the
// stored snapshot. There is no wallet read endpoint; the snapshot carries
// everything normalization needs.
func (m *TransactionManager) walletFor(intent models.PaymentIntent) models.PersonalWallet {
	m.mu.RLock()
	snap, ok := m.txs[string(models.ContextPersonal)+"/"+intent.PaymentID]
	m.mu.RUnlock()
	if !ok {
		return models.PersonalWallet{UserID: intent.UserID}
	}
	return models.PersonalWallet{
		ID:     snap.Metadata.WalletID,
		UserID: snap.UserID,
		Type:   models.WalletType(snap.Metadata.WalletType),
	}
}

// snapshot reads a transaction from the in-memory set, falling back to
// the persisted store after a restart.
func (m *TransactionManager) snapshot(ctx context.Context, txContext models.TxContext, id string) (models.UnifiedTransaction, bool, error) {
	m.mu.RLock()
	snap, ok := m.txs[string(txContext)+"/"+id]
	m.mu.RUnlock()
	if ok {
		return snap, true, nil
	}
	return m.store.Get(ctx, txContext, id)
}

// recordMutation records the result of an explicit user write. Mutations
// replace the stored record unconditionally: a retry legitimately takes a
// failed transaction back to pending.
func (m *TransactionManager) recordMutation(ctx context.Context, tx models.UnifiedTransaction) {
	m.mu.Lock()
	m.txs[tx.Key()] = tx
	listeners := append([]func(models.UnifiedTransaction){}, m.listeners...)
	m.mu.Unlock()

	m.persist(ctx, tx)
	for _, fn := range listeners {
		fn(tx)
	}
}

// recordRefresh records a re-fetched snapshot. Refreshes are monotonic:
// a backend reporting a terminal transaction as in-flight again is an
// inconsistency, and the regression is rejected rather than applied. The
// previous status is read through the persisted store when the in-memory
// set has no entry, so the gate survives a restart.
func (m *TransactionManager) recordRefresh(ctx context.Context, tx models.UnifiedTransaction) error {
	prev, ok, err := m.snapshot(ctx, tx.Context, tx.ID)
	if err != nil {
		return err
	}
	if ok && prev.Status.IsTerminal() && prev.Status != tx.Status && !tx.Status.IsTerminal() {
		return svcerror.New(svcerror.KindInconsistency,
			fmt.Sprintf("transaction %s reported %s after terminal %s", tx.Key(), tx.Status, prev.Status))
	}

	m.mu.Lock()
	m.txs[tx.Key()] = tx
	listeners := append([]func(models.UnifiedTransaction){}, m.listeners...)
	m.mu.Unlock()

	m.persist(ctx, tx)
	for _, fn := range listeners {
		fn(tx)
	}
	return nil
}

// persist writes the snapshot through to the store. The upstream write
// already succeeded, so a store failure degrades to a log line instead of
// failing the operation.
func (m *TransactionManager) persist(ctx context.Context, tx models.UnifiedTransaction) {
	if err := m.store.Upsert(ctx, tx); err != nil {
		logger.FromContext(ctx).Error("Failed to persist transaction snapshot",
			"key", tx.Key(), "error", err)
	}
}

func (m *TransactionManager) offerByID(ctx context.Context, offerID string) (models.SharesOffer, error) {
	offers, err := m.membershipAPI.GetOffers(ctx)
	if err != nil {
		return models.SharesOffer{}, err
	}
	for _, o := range offers {
		if o.ID == offerID {
			return o, nil
		}
	}
	return models.SharesOffer{}, ErrUnknownOffer
}

// checkLimits validates an amount against the limits policy for the
// transaction, reporting every violated bound in one field error.
func checkLimits(txCtx models.TxContext, txType models.TxType, method models.PaymentMethod, amount decimal.Decimal) error {
	res := limits.ValidateAmount(amount, limits.GetLimits(txCtx, txType, method))
	if res.OK {
		return nil
	}
	msgs := make([]string, 0, len(res.Violations))
	for _, v := range res.Violations {
		msgs = append(msgs, v.Message)
	}
	return svcerror.FieldError("amount", strings.Join(msgs, "; "))
}

func trackerRef(snap models.UnifiedTransaction) string {
	if snap.Metadata.PaymentReference != "" {
		return snap.Metadata.PaymentReference
	}
	return snap.ID
}

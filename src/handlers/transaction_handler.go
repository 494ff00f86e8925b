// backend/src/handlers/transaction_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/chamasats/backend/src/limits"
	"github.com/username/chamasats/backend/src/logger"
	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/security/validation"
	"github.com/username/chamasats/backend/src/services"
	"github.com/username/chamasats/backend/src/svcerror"
)

// TransactionHandler serves the unified transaction API on top of the
// aggregation service.
type TransactionHandler struct {
	service services.TransactionService
}

func NewTransactionHandler(service services.TransactionService) *TransactionHandler {
	return &TransactionHandler{service: service}
}

// DepositRequest creates a deposit in the chama or personal context.
type DepositRequest struct {
	Context       models.TxContext     `json:"context"`
	ChamaID       string               `json:"chama_id,omitempty"`
	WalletID      string               `json:"wallet_id,omitempty"`
	Amount        string               `json:"amount"`
	Currency      string               `json:"currency"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PhoneNumber   string               `json:"phone_number,omitempty"`
	Reference     string               `json:"reference,omitempty"`
}

// WithdrawRequest creates a withdrawal in the chama or personal context.
// Personal withdrawals carry the wallet snapshot so the lock check can
// run before any backend write.
type WithdrawRequest struct {
	Context       models.TxContext     `json:"context"`
	ChamaID       string               `json:"chama_id,omitempty"`
	Wallet        *walletRef           `json:"wallet,omitempty"`
	Amount        string               `json:"amount"`
	Currency      string               `json:"currency"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PhoneNumber   string               `json:"phone_number,omitempty"`
	LightningAddr string               `json:"lightning_address,omitempty"`
	Reference     string               `json:"reference,omitempty"`
}

type walletRef struct {
	ID          string     `json:"id"`
	Type        string     `json:"wallet_type"`
	LockEndDate *time.Time `json:"lock_end_date,omitempty"`
}

// SubscribeRequest subscribes the viewer to shares in an offer.
type SubscribeRequest struct {
	OfferID       string               `json:"offer_id"`
	Quantity      int                  `json:"quantity"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	PhoneNumber   string               `json:"phone_number,omitempty"`
}

// TransferRequest moves shares to another member.
type TransferRequest struct {
	TransactionID string `json:"transaction_id"`
	ToUserID      string `json:"to_user_id"`
	Quantity      int    `json:"quantity"`
}

type actionBody struct {
	ChamaID string `json:"chama_id,omitempty"`
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	viewer, ok := GetViewerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	f := services.ListFilter{
		Context: models.TxContext(q.Get("context")),
		Type:    models.TxType(q.Get("type")),
		Status:  models.UnifiedStatus(q.Get("status")),
		UserID:  viewer.UserID,
	}
	if v := q.Get("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		f.Offset, _ = strconv.Atoi(v)
	}

	res, err := h.service.ListTransactions(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sendJSON(w, res, http.StatusOK)
}

func (h *TransactionHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	viewer, ok := GetViewerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	txContext := models.TxContext(chi.URLParam(r, "context"))
	txID := chi.URLParam(r, "id")

	tx, err := h.service.GetTransaction(r.Context(), txContext, txID, viewer)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sendJSON(w, tx, http.StatusOK)
}

func (h *TransactionHandler) HandleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	viewer, ok := GetViewerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := validation.ValidateAmountString(req.Amount, "amount")
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateCurrencyCode(req.Currency); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.PaymentMethod == models.MethodMpesa {
		if err := validation.ValidatePhoneNumber(req.PhoneNumber); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.PhoneNumber = validation.NormalizePhoneNumber(req.PhoneNumber)
	}
	if err := validation.ValidateReference(req.Reference); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var res services.CreateResult
	switch req.Context {
	case models.ContextChama:
		if req.ChamaID == "" {
			sendJSONError(w, "chama_id is required for chama deposits", http.StatusBadRequest)
			return
		}
		res, err = h.service.CreateChamaDeposit(r.Context(), services.ChamaDepositParams{
			ChamaID:       req.ChamaID,
			Amount:        amount,
			Currency:      req.Currency,
			PaymentMethod: req.PaymentMethod,
			PhoneNumber:   req.PhoneNumber,
			Reference:     req.Reference,
		}, viewer)
	case models.ContextPersonal:
		if req.WalletID == "" {
			sendJSONError(w, "wallet_id is required for personal deposits", http.StatusBadRequest)
			return
		}
		res, err = h.service.CreatePersonalDeposit(r.Context(), services.PersonalDepositParams{
			WalletID:      req.WalletID,
			Amount:        amount,
			Currency:      req.Currency,
			PaymentMethod: req.PaymentMethod,
			PhoneNumber:   req.PhoneNumber,
			Reference:     req.Reference,
		}, viewer)
	default:
		sendJSONError(w, "context must be chama or personal", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sendJSON(w, res, http.StatusCreated)
}

func (h *TransactionHandler) HandleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	viewer, ok := GetViewerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := validation.ValidateAmountString(req.Amount, "amount")
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateCurrencyCode(req.Currency); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch req.PaymentMethod {
	case models.MethodMpesa:
		if err := validation.ValidatePhoneNumber(req.PhoneNumber); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.PhoneNumber = validation.NormalizePhoneNumber(req.PhoneNumber)
	case models.MethodLightning:
		if err := validation.ValidateLightningAddress(req.LightningAddr); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var res services.CreateResult
	switch req.Context {
	case models.ContextChama:
		if req.ChamaID == "" {
			sendJSONError(w, "chama_id is required for chama withdrawals", http.StatusBadRequest)
			return
		}
		res, err = h.service.CreateChamaWithdrawal(r.Context(), services.ChamaWithdrawParams{
			ChamaID:       req.ChamaID,
			Amount:        amount,
			Currency:      req.Currency,
			PaymentMethod: req.PaymentMethod,
			PhoneNumber:   req.PhoneNumber,
			LightningAddr: req.LightningAddr,
			Reference:     req.Reference,
		}, viewer)
	case models.ContextPersonal:
		if req.Wallet == nil || req.Wallet.ID == "" {
			sendJSONError(w, "wallet is required for personal withdrawals", http.StatusBadRequest)
			return
		}
		res, err = h.service.CreatePersonalWithdrawal(r.Context(), services.PersonalWithdrawParams{
			Wallet: models.PersonalWallet{
				ID:          req.Wallet.ID,
				UserID:      viewer.UserID,
				Type:        models.WalletType(req.Wallet.Type),
				LockEndDate: req.Wallet.LockEndDate,
			},
			Amount:        amount,
			Currency:      req.Currency,
			PaymentMethod: req.PaymentMethod,
			PhoneNumber:   req.PhoneNumber,
			LightningAddr: req.LightningAddr,
		}, viewer)
	default:
		sendJSONError(w, "context must be chama or personal", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sendJSON(w, res, http.StatusCreated)
}

func (h *TransactionHandler) HandleSubscribeShares(w http.ResponseWriter, r *http.Request) {
	viewer, ok := GetViewerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringNotEmpty(req.OfferID, "offer_id"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateQuantity(req.Quantity, "quantity"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.PaymentMethod == models.MethodMpesa {
		if err := validation.ValidatePhoneNumber(req.PhoneNumber); err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.PhoneNumber = validation.NormalizePhoneNumber(req.PhoneNumber)
	}

	res, err := h.service.SubscribeShares(r.Context(), services.SubscribeSharesParams{
		OfferID:       req.OfferID,
		Quantity:      req.Quantity,
		PaymentMethod: req.PaymentMethod,
		PhoneNumber:   req.PhoneNumber,
	}, viewer)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sendJSON(w, res, http.StatusCreated)
}

func (h *TransactionHandler) HandleTransferShares(w http.ResponseWriter, r *http.Request) {
	viewer, ok := GetViewerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringNotEmpty(req.TransactionID, "transaction_id"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringNotEmpty(req.ToUserID, "to_user_id"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateQuantity(req.Quantity, "quantity"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := h.service.TransferShares(r.Context(), services.TransferSharesParams{
		TransactionID: req.TransactionID,
		ToUserID:      req.ToUserID,
		Quantity:      req.Quantity,
	}, viewer)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sendJSON(w, tx, http.StatusOK)
}

func (h *TransactionHandler) HandlePerformAction(w http.ResponseWriter, r *http.Request) {
	viewer, ok := GetViewerFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	req := services.ActionRequest{
		Context: models.TxContext(chi.URLParam(r, "context")),
		TxID:    chi.URLParam(r, "id"),
		Action:  models.ActionType(chi.URLParam(r, "action")),
	}
	if r.Body != nil {
		var body actionBody
		// The body is optional; a missing chama_id is resolved from the
		// stored snapshot.
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			req.ChamaID = body.ChamaID
		}
	}

	tx, err := h.service.PerformAction(r.Context(), req, viewer)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sendJSON(w, tx, http.StatusOK)
}

func (h *TransactionHandler) HandleGetLimits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	l := limits.GetLimits(
		models.TxContext(q.Get("context")),
		models.TxType(q.Get("type")),
		models.PaymentMethod(q.Get("method")),
	)
	sendJSON(w, l, http.StatusOK)
}

// writeServiceError maps service errors to HTTP statuses by their kind.
func (h *TransactionHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrTransactionNotFound), errors.Is(err, services.ErrUnknownOffer):
		sendJSONError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, validation.ErrValidationFailed):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var se *svcerror.Error
	message := "request failed"
	if errors.As(err, &se) {
		message = se.Message
	}

	switch svcerror.KindOf(err) {
	case svcerror.KindValidation:
		sendJSONError(w, message, http.StatusBadRequest)
	case svcerror.KindBusinessRule:
		sendJSONError(w, message, http.StatusUnprocessableEntity)
	case svcerror.KindInconsistency:
		sendJSONError(w, message, http.StatusConflict)
	case svcerror.KindTimeout:
		sendJSONError(w, message, http.StatusGatewayTimeout)
	default:
		logger.FromContext(r.Context()).Error("Upstream request failed", "error", err)
		sendJSONError(w, "upstream service unavailable", http.StatusBadGateway)
	}
}

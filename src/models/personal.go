// backend/src/models/personal.go
package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PersonalTxStatus is the personal wallet's native status vocabulary.
type PersonalTxStatus string

const (
	PersonalTxPending      PersonalTxStatus = "PENDING"
	PersonalTxProcessing   PersonalTxStatus = "PROCESSING"
	PersonalTxComplete     PersonalTxStatus = "COMPLETE"
	PersonalTxFailed       PersonalTxStatus = "FAILED"
	PersonalTxManualReview PersonalTxStatus = "MANUAL_REVIEW"
)

// PersonalTxType is the personal wallet's native transaction type.
type PersonalTxType string

const (
	PersonalTxDeposit  PersonalTxType = "DEPOSIT"
	PersonalTxWithdraw PersonalTxType = "WITHDRAW"
	PersonalTxTransfer PersonalTxType = "TRANSFER"
)

// WalletType distinguishes personal wallet flavours. Locked wallets reject
// withdrawals before their lock end date.
type WalletType string

const (
	WalletStandard WalletType = "STANDARD"
	WalletTarget   WalletType = "TARGET"
	WalletLocked   WalletType = "LOCKED"
)

// PersonalWallet is the owning entity for personal transactions.
type PersonalWallet struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Name        string     `json:"name,omitempty"`
	Type        WalletType `json:"wallet_type"`
	LockEndDate *time.Time `json:"lock_end_date,omitempty"`
}

// Locked reports whether the wallet still refuses withdrawals at the
// given instant.
func (w PersonalWallet) Locked(at time.Time) bool {
	return w.Type == WalletLocked && w.LockEndDate != nil && at.Before(*w.LockEndDate)
}

// PersonalWalletTx is a raw personal-wallet transaction. Amounts are
// reported in fiat alongside the sats equivalent.
type PersonalWalletTx struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	WalletID    string           `json:"wallet_id"`
	Type        PersonalTxType   `json:"type"`
	Status      PersonalTxStatus `json:"status"`
	AmountFiat  decimal.Decimal  `json:"amount_fiat"`
	Currency    string           `json:"currency"`
	AmountMsats int64            `json:"amount_msats,omitempty"`
	Reference   string           `json:"reference,omitempty"`
	Lightning   json.RawMessage  `json:"lightning,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   *time.Time       `json:"updated_at,omitempty"`
}

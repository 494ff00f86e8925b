// backend/src/models/unified.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxContext identifies the originating backend domain of a transaction.
// It is immutable for the lifetime of the record.
type TxContext string

const (
	ContextChama      TxContext = "chama"
	ContextPersonal   TxContext = "personal"
	ContextMembership TxContext = "membership"
)

// TxType is the unified transaction type vocabulary.
type TxType string

const (
	TxTypeDeposit      TxType = "deposit"
	TxTypeWithdrawal   TxType = "withdrawal"
	TxTypeTransfer     TxType = "transfer"
	TxTypeSubscription TxType = "subscription"
)

// UnifiedStatus is the single status taxonomy every domain maps into.
type UnifiedStatus string

const (
	StatusPending         UnifiedStatus = "pending"
	StatusPendingApproval UnifiedStatus = "pending_approval"
	StatusApproved        UnifiedStatus = "approved"
	StatusProcessing      UnifiedStatus = "processing"
	StatusCompleted       UnifiedStatus = "completed"
	StatusFailed          UnifiedStatus = "failed"
	StatusRejected        UnifiedStatus = "rejected"
)

// Money pairs an amount with its currency code.
type Money struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// TxMetadata carries the context-specific fields that do not fit the
// unified shape. Fields are populated per context and omitted otherwise.
type TxMetadata struct {
	GroupID          string `json:"group_id,omitempty"`
	GroupName        string `json:"group_name,omitempty"`
	MemberID         string `json:"member_id,omitempty"`
	MemberName       string `json:"member_name,omitempty"`
	WalletID         string `json:"wallet_id,omitempty"`
	WalletType       string `json:"wallet_type,omitempty"`
	ShareQuantity    int    `json:"share_quantity,omitempty"`
	ShareValue       string `json:"share_value,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`
	LightningInvoice string `json:"lightning_invoice,omitempty"`
	Approvals        int    `json:"approvals,omitempty"`
	Rejections       int    `json:"rejections,omitempty"`

	// UnderReview marks a personal-wallet transaction held for manual
	// review. The unified status stays "pending"; consumers distinguish
	// by this flag, not by status.
	UnderReview bool `json:"under_review,omitempty"`

	// Anomaly records a native status that is invalid for the transaction
	// type (e.g. a chama deposit reporting APPROVED). The status is mapped
	// to the nearest safe value and the discrepancy surfaced here.
	Anomaly string `json:"anomaly,omitempty"`
}

// UnifiedTransaction is the canonical transaction record produced by every
// domain adapter. IDs are unique within their originating context only.
type UnifiedTransaction struct {
	ID        string              `json:"id"`
	Type      TxType              `json:"type"`
	Context   TxContext           `json:"context"`
	Status    UnifiedStatus       `json:"status"`
	Amount    Money               `json:"amount"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
	UserID    string              `json:"user_id"`
	UserName  string              `json:"user_name,omitempty"`
	Metadata  TxMetadata          `json:"metadata"`
	Actions   []TransactionAction `json:"actions"`
}

// Key returns the (context, id) pair that identifies the record across
// domains. Raw IDs alone are not globally unique.
func (t UnifiedTransaction) Key() string {
	return string(t.Context) + "/" + t.ID
}

// IsTerminal reports whether no further status transitions are expected.
func (s UnifiedStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected:
		return true
	}
	return false
}

// IsPollable reports whether a payment in this status is still in flight
// and eligible for reconciliation polling.
func (s UnifiedStatus) IsPollable() bool {
	switch s {
	case StatusPending, StatusPendingApproval, StatusProcessing, StatusApproved:
		return true
	}
	return false
}

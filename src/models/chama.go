// backend/src/models/chama.go
package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ChamaTxStatus is the chama wallet's native status vocabulary.
type ChamaTxStatus string

const (
	ChamaTxPending    ChamaTxStatus = "PENDING"
	ChamaTxProcessing ChamaTxStatus = "PROCESSING"
	ChamaTxComplete   ChamaTxStatus = "COMPLETE"
	ChamaTxFailed     ChamaTxStatus = "FAILED"
	ChamaTxApproved   ChamaTxStatus = "APPROVED"
	ChamaTxRejected   ChamaTxStatus = "REJECTED"
)

// ChamaTxType is the chama wallet's native transaction type.
type ChamaTxType string

const (
	ChamaTxDeposit    ChamaTxType = "DEPOSIT"
	ChamaTxWithdrawal ChamaTxType = "WITHDRAWAL"
	ChamaTxTransfer   ChamaTxType = "TRANSFER"
)

// ChamaTxReview is a single admin review recorded against a withdrawal.
type ChamaTxReview string

const (
	ReviewApprove ChamaTxReview = "APPROVE"
	ReviewReject  ChamaTxReview = "REJECT"
)

// ChamaReview pairs a reviewing member with their verdict.
type ChamaReview struct {
	MemberID string        `json:"member_id"`
	Review   ChamaTxReview `json:"review"`
}

// ChamaWalletTx is a raw group-wallet transaction as reported by the
// chama backend. Lightning is kept raw: the rail artifact may arrive as
// a nested bolt11 object or as a bare invoice string.
type ChamaWalletTx struct {
	ID        string          `json:"id"`
	ChamaID   string          `json:"chama_id"`
	MemberID  string          `json:"member_id"`
	Type      ChamaTxType     `json:"type"`
	Status    ChamaTxStatus   `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reviews   []ChamaReview   `json:"reviews,omitempty"`
	Reference string          `json:"reference,omitempty"`
	Lightning json.RawMessage `json:"lightning,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// ReviewBy returns the review submitted by the given member, if any.
func (t ChamaWalletTx) ReviewBy(memberID string) (ChamaReview, bool) {
	for _, r := range t.Reviews {
		if r.MemberID == memberID {
			return r, true
		}
	}
	return ChamaReview{}, false
}

// ChamaMemberRole mirrors the chama backend's member role encoding.
type ChamaMemberRole int

const (
	ChamaRoleMember        ChamaMemberRole = 0
	ChamaRoleAdmin         ChamaMemberRole = 1
	ChamaRoleExternalAdmin ChamaMemberRole = 2
)

// ChamaMember is a group member with their roles.
type ChamaMember struct {
	UserID string            `json:"user_id"`
	Roles  []ChamaMemberRole `json:"roles"`
}

// IsAdmin reports whether the member holds any administrative role.
func (m ChamaMember) IsAdmin() bool {
	for _, r := range m.Roles {
		if r == ChamaRoleAdmin || r == ChamaRoleExternalAdmin {
			return true
		}
	}
	return false
}

// Chama is the owning entity for group-wallet transactions.
type Chama struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Members     []ChamaMember `json:"members"`
	CreatedBy   string        `json:"created_by,omitempty"`
}

// Member returns the chama member with the given user id, if present.
func (c Chama) Member(userID string) (ChamaMember, bool) {
	for _, m := range c.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return ChamaMember{}, false
}

// MemberProfile is the human-readable profile resolved for a member when
// the chama record does not embed names.
type MemberProfile struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

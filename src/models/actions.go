// backend/src/models/actions.go
package models

// ActionType enumerates the mutations a viewer may perform on a transaction.
type ActionType string

const (
	ActionView    ActionType = "view"
	ActionApprove ActionType = "approve"
	ActionReject  ActionType = "reject"
	ActionExecute ActionType = "execute"
	ActionCancel  ActionType = "cancel"
	ActionRetry   ActionType = "retry"
)

// TransactionAction is a permitted operation for the current viewer.
// Actions are commands: they carry everything needed to dispatch them and
// execution takes the service as an explicit parameter. They are recomputed
// from (status, viewer role, ownership) every time a transaction is
// materialized and are never persisted.
type TransactionAction struct {
	Type                 ActionType `json:"type"`
	Enabled              bool       `json:"enabled"`
	Label                string     `json:"label"`
	Variant              string     `json:"variant"`
	RequiresConfirmation bool       `json:"requires_confirmation,omitempty"`
	ConfirmationMessage  string     `json:"confirmation_message,omitempty"`
}

// MemberRole is a viewer's role within a chama.
type MemberRole int

const (
	RoleMember MemberRole = iota
	RoleAdmin
	RoleExternalAdmin
)

// Viewer is the identity the action decision tables are evaluated for.
type Viewer struct {
	UserID string
	Role   MemberRole
}

// IsAdmin reports whether the viewer holds an administrative role.
func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin || v.Role == RoleExternalAdmin
}

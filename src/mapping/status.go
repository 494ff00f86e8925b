// backend/src/mapping/status.go
package mapping

import (
	"fmt"

	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/svcerror"
)

// Status mapping tables. These are pure and total: every known native
// status maps to exactly one unified status, and an unknown native status
// is an explicit error, never a silent default.

// ChamaResult is the outcome of mapping a chama-native status. Anomaly is
// set when the native status is invalid for the transaction type (a deposit
// reporting APPROVED or REJECTED); the status is coerced to the nearest
// safe value and the caller must log the discrepancy.
type ChamaResult struct {
	Status  models.UnifiedStatus
	Anomaly string
}

// MapChamaStatus maps a chama wallet status to the unified taxonomy.
// The mapping is type-dependent: PENDING means awaiting approval for
// withdrawals but plain pending for deposits, and APPROVED/REJECTED are
// meaningless for deposits, which have no human review step.
func MapChamaStatus(status models.ChamaTxStatus, txType models.ChamaTxType) (ChamaResult, error) {
	switch status {
	case models.ChamaTxPending:
		if txType == models.ChamaTxWithdrawal {
			return ChamaResult{Status: models.StatusPendingApproval}, nil
		}
		return ChamaResult{Status: models.StatusPending}, nil
	case models.ChamaTxProcessing:
		return ChamaResult{Status: models.StatusProcessing}, nil
	case models.ChamaTxComplete:
		return ChamaResult{Status: models.StatusCompleted}, nil
	case models.ChamaTxFailed:
		return ChamaResult{Status: models.StatusFailed}, nil
	case models.ChamaTxApproved:
		if txType == models.ChamaTxDeposit {
			return ChamaResult{
				Status:  models.StatusPending,
				Anomaly: "deposit reported native status APPROVED",
			}, nil
		}
		return ChamaResult{Status: models.StatusApproved}, nil
	case models.ChamaTxRejected:
		if txType == models.ChamaTxDeposit {
			return ChamaResult{
				Status:  models.StatusPending,
				Anomaly: "deposit reported native status REJECTED",
			}, nil
		}
		return ChamaResult{Status: models.StatusRejected}, nil
	}
	return ChamaResult{}, svcerror.New(svcerror.KindInconsistency,
		fmt.Sprintf("unknown chama transaction status %q", status))
}

// PersonalResult is the outcome of mapping a personal-wallet status.
// UnderReview is set for MANUAL_REVIEW, which maps to pending rather than
// a distinct unified state; consumers distinguish by metadata.
type PersonalResult struct {
	Status      models.UnifiedStatus
	UnderReview bool
}

// MapPersonalStatus maps a personal-wallet status to the unified taxonomy.
// The mapping is type-independent.
func MapPersonalStatus(status models.PersonalTxStatus) (PersonalResult, error) {
	switch status {
	case models.PersonalTxPending:
		return PersonalResult{Status: models.StatusPending}, nil
	case models.PersonalTxProcessing:
		return PersonalResult{Status: models.StatusProcessing}, nil
	case models.PersonalTxComplete:
		return PersonalResult{Status: models.StatusCompleted}, nil
	case models.PersonalTxFailed:
		return PersonalResult{Status: models.StatusFailed}, nil
	case models.PersonalTxManualReview:
		return PersonalResult{Status: models.StatusPending, UnderReview: true}, nil
	}
	return PersonalResult{}, svcerror.New(svcerror.KindInconsistency,
		fmt.Sprintf("unknown personal transaction status %q", status))
}

// MapMembershipStatus maps a share-subscription status to the unified
// taxonomy.
func MapMembershipStatus(status models.SharesTxStatus) (models.UnifiedStatus, error) {
	switch status {
	case models.SharesTxProposed:
		return models.StatusPending, nil
	case models.SharesTxProcessing:
		return models.StatusProcessing, nil
	case models.SharesTxApproved:
		return models.StatusApproved, nil
	case models.SharesTxComplete:
		return models.StatusCompleted, nil
	case models.SharesTxFailed:
		return models.StatusFailed, nil
	}
	return "", svcerror.New(svcerror.KindInconsistency,
		fmt.Sprintf("unknown shares transaction status %q", status))
}

// MapChamaType translates the chama-native transaction type.
func MapChamaType(t models.ChamaTxType) models.TxType {
	switch t {
	case models.ChamaTxDeposit:
		return models.TxTypeDeposit
	case models.ChamaTxWithdrawal:
		return models.TxTypeWithdrawal
	default:
		return models.TxTypeTransfer
	}
}

// MapPersonalType translates the personal-native transaction type.
func MapPersonalType(t models.PersonalTxType) models.TxType {
	switch t {
	case models.PersonalTxDeposit:
		return models.TxTypeDeposit
	case models.PersonalTxWithdraw:
		return models.TxTypeWithdrawal
	default:
		return models.TxTypeTransfer
	}
}

// backend/src/mapping/status_test.go
package mapping

import (
	"testing"

	"github.com/username/chamasats/backend/src/models"
	"github.com/username/chamasats/backend/src/svcerror"
)

func TestMapChamaStatusTable(t *testing.T) {
	cases := []struct {
		status      models.ChamaTxStatus
		txType      models.ChamaTxType
		want        models.UnifiedStatus
		wantAnomaly bool
	}{
		{models.ChamaTxPending, models.ChamaTxDeposit, models.StatusPending, false},
		{models.ChamaTxPending, models.ChamaTxWithdrawal, models.StatusPendingApproval, false},
		{models.ChamaTxPending, models.ChamaTxTransfer, models.StatusPending, false},

		{models.ChamaTxProcessing, models.ChamaTxDeposit, models.StatusProcessing, false},
		{models.ChamaTxProcessing, models.ChamaTxWithdrawal, models.StatusProcessing, false},
		{models.ChamaTxProcessing, models.ChamaTxTransfer, models.StatusProcessing, false},

		{models.ChamaTxComplete, models.ChamaTxDeposit, models.StatusCompleted, false},
		{models.ChamaTxComplete, models.ChamaTxWithdrawal, models.StatusCompleted, false},
		{models.ChamaTxComplete, models.ChamaTxTransfer, models.StatusCompleted, false},

		{models.ChamaTxFailed, models.ChamaTxDeposit, models.StatusFailed, false},
		{models.ChamaTxFailed, models.ChamaTxWithdrawal, models.StatusFailed, false},
		{models.ChamaTxFailed, models.ChamaTxTransfer, models.StatusFailed, false},

		{models.ChamaTxApproved, models.ChamaTxDeposit, models.StatusPending, true},
		{models.ChamaTxApproved, models.ChamaTxWithdrawal, models.StatusApproved, false},
		{models.ChamaTxApproved, models.ChamaTxTransfer, models.StatusApproved, false},

		{models.ChamaTxRejected, models.ChamaTxDeposit, models.StatusPending, true},
		{models.ChamaTxRejected, models.ChamaTxWithdrawal, models.StatusRejected, false},
		{models.ChamaTxRejected, models.ChamaTxTransfer, models.StatusRejected, false},
	}

	for _, c := range cases {
		got, err := MapChamaStatus(c.status, c.txType)
		if err != nil {
			t.Fatalf("MapChamaStatus(%s, %s) returned error: %v", c.status, c.txType, err)
		}
		if got.Status != c.want {
			t.Errorf("MapChamaStatus(%s, %s) = %s, want %s", c.status, c.txType, got.Status, c.want)
		}
		if (got.Anomaly != "") != c.wantAnomaly {
			t.Errorf("MapChamaStatus(%s, %s) anomaly = %q, want anomaly=%v", c.status, c.txType, got.Anomaly, c.wantAnomaly)
		}
	}
}

func TestMapChamaStatusUnknown(t *testing.T) {
	_, err := MapChamaStatus("BOGUS", models.ChamaTxDeposit)
	if err == nil {
		t.Fatal("expected error for unknown chama status")
	}
	if !svcerror.IsKind(err, svcerror.KindInconsistency) {
		t.Errorf("expected inconsistency kind, got %s", svcerror.KindOf(err))
	}
}

func TestMapPersonalStatusTable(t *testing.T) {
	cases := []struct {
		status          models.PersonalTxStatus
		want            models.UnifiedStatus
		wantUnderReview bool
	}{
		{models.PersonalTxPending, models.StatusPending, false},
		{models.PersonalTxProcessing, models.StatusProcessing, false},
		{models.PersonalTxComplete, models.StatusCompleted, false},
		{models.PersonalTxFailed, models.StatusFailed, false},
		{models.PersonalTxManualReview, models.StatusPending, true},
	}
	for _, c := range cases {
		got, err := MapPersonalStatus(c.status)
		if err != nil {
			t.Fatalf("MapPersonalStatus(%s) returned error: %v", c.status, err)
		}
		if got.Status != c.want || got.UnderReview != c.wantUnderReview {
			t.Errorf("MapPersonalStatus(%s) = (%s, %v), want (%s, %v)",
				c.status, got.Status, got.UnderReview, c.want, c.wantUnderReview)
		}
	}

	if _, err := MapPersonalStatus("BOGUS"); err == nil {
		t.Error("expected error for unknown personal status")
	}
}

func TestMapMembershipStatusTable(t *testing.T) {
	cases := []struct {
		status models.SharesTxStatus
		want   models.UnifiedStatus
	}{
		{models.SharesTxProposed, models.StatusPending},
		{models.SharesTxProcessing, models.StatusProcessing},
		{models.SharesTxApproved, models.StatusApproved},
		{models.SharesTxComplete, models.StatusCompleted},
		{models.SharesTxFailed, models.StatusFailed},
	}
	for _, c := range cases {
		got, err := MapMembershipStatus(c.status)
		if err != nil {
			t.Fatalf("MapMembershipStatus(%s) returned error: %v", c.status, err)
		}
		if got != c.want {
			t.Errorf("MapMembershipStatus(%s) = %s, want %s", c.status, got, c.want)
		}
	}

	if _, err := MapMembershipStatus("BOGUS"); err == nil {
		t.Error("expected error for unknown shares status")
	}
}

func TestTerminalAndPollable(t *testing.T) {
	terminal := []models.UnifiedStatus{models.StatusCompleted, models.StatusFailed, models.StatusRejected}
	pollable := []models.UnifiedStatus{models.StatusPending, models.StatusPendingApproval, models.StatusProcessing, models.StatusApproved}

	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		if s.IsPollable() {
			t.Errorf("%s should not be pollable", s)
		}
	}
	for _, s := range pollable {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
		if !s.IsPollable() {
			t.Errorf("%s should be pollable", s)
		}
	}
}

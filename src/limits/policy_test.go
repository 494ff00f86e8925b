// backend/src/limits/policy_test.go
package limits

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/username/chamasats/backend/src/models"
)

func TestValidateAmountBoundaries(t *testing.T) {
	l := GetLimits(models.ContextChama, models.TxTypeWithdrawal, "")

	belowMin := ValidateAmount(l.MinAmount.Sub(decimal.NewFromInt(1)), l)
	if belowMin.OK {
		t.Fatal("amount below minimum should fail")
	}
	if belowMin.Violations[0].Kind != ViolationBelowMinimum {
		t.Errorf("expected below_minimum, got %s", belowMin.Violations[0].Kind)
	}

	if got := ValidateAmount(l.MinAmount, l); !got.OK {
		t.Errorf("amount equal to minimum should pass, got %+v", got.Violations)
	}

	if got := ValidateAmount(l.MaxAmount, l); !got.OK {
		t.Errorf("amount equal to maximum should pass, got %+v", got.Violations)
	}

	aboveMax := ValidateAmount(l.MaxAmount.Add(decimal.NewFromInt(1)), l)
	if aboveMax.OK {
		t.Fatal("amount above maximum should fail")
	}
	if aboveMax.Violations[0].Kind != ViolationAboveMaximum {
		t.Errorf("expected above_maximum, got %s", aboveMax.Violations[0].Kind)
	}
}

func TestValidateAmountNotPositive(t *testing.T) {
	l := GetLimits(models.ContextPersonal, models.TxTypeDeposit, "")
	res := ValidateAmount(decimal.Zero, l)
	if res.OK || res.Violations[0].Kind != ViolationNotPositive {
		t.Errorf("zero amount should fail with not_positive, got %+v", res)
	}
}

func TestValidateAmountDailyAndMonthlyCaps(t *testing.T) {
	l := Limits{
		MinAmount:    decimal.NewFromInt(10),
		MaxAmount:    decimal.NewFromInt(1_000_000),
		DailyLimit:   decimal.NewFromInt(300_000),
		MonthlyLimit: decimal.NewFromInt(1_000_000),
		Currency:     "KES",
	}

	// Within the per-transaction ceiling but over the daily cap.
	res := ValidateAmount(decimal.NewFromInt(400_000), l)
	if res.OK {
		t.Fatal("amount over the daily cap should fail")
	}
	if len(res.Violations) != 1 || res.Violations[0].Kind != ViolationAboveDailyCap {
		t.Errorf("expected a single above_daily_limit violation, got %+v", res.Violations)
	}

	// Over every ceiling at once: each bound reports distinctly.
	res = ValidateAmount(decimal.NewFromInt(1_200_000), l)
	kinds := map[ViolationKind]bool{}
	for _, v := range res.Violations {
		kinds[v.Kind] = true
	}
	for _, want := range []ViolationKind{ViolationAboveMaximum, ViolationAboveDailyCap, ViolationAboveMonthlyCap} {
		if !kinds[want] {
			t.Errorf("missing %s violation, got %+v", want, res.Violations)
		}
	}

	if got := ValidateAmount(l.DailyLimit, l); !got.OK {
		t.Errorf("amount equal to the daily cap should pass, got %+v", got.Violations)
	}
}

func TestValidateAmountIgnoresUnsetCaps(t *testing.T) {
	// Context defaults carry no daily or monthly caps; large amounts fail
	// only the per-transaction ceiling.
	l := GetLimits(models.ContextPersonal, models.TxTypeDeposit, "")
	res := ValidateAmount(decimal.NewFromInt(600_000), l)
	if res.OK {
		t.Fatal("amount above maximum should fail")
	}
	if len(res.Violations) != 1 || res.Violations[0].Kind != ViolationAboveMaximum {
		t.Errorf("expected only above_maximum, got %+v", res.Violations)
	}
}

func TestMethodLimitsOverrideContextDefaults(t *testing.T) {
	// Personal deposits allow up to 500k by default, but the mpesa rail
	// caps a single transaction at 150k.
	noMethod := GetLimits(models.ContextPersonal, models.TxTypeDeposit, "")
	mpesa := GetLimits(models.ContextPersonal, models.TxTypeDeposit, models.MethodMpesa)

	if !noMethod.MaxAmount.Equal(decimal.NewFromInt(500_000)) {
		t.Errorf("default personal deposit max = %s, want 500000", noMethod.MaxAmount)
	}
	if !mpesa.MaxAmount.Equal(decimal.NewFromInt(150_000)) {
		t.Errorf("mpesa personal deposit max = %s, want 150000", mpesa.MaxAmount)
	}
	if mpesa.DailyLimit.IsZero() || mpesa.MonthlyLimit.IsZero() {
		t.Error("mpesa rail should carry daily and monthly limits")
	}
}

func TestLightningDailyOnlyCeiling(t *testing.T) {
	ln := GetLimits(models.ContextPersonal, models.TxTypeDeposit, models.MethodLightning)
	if ln.DailyLimit.IsZero() {
		t.Error("lightning rail should carry a daily limit")
	}
	if !ln.MonthlyLimit.IsZero() {
		t.Error("lightning rail should not carry a monthly limit")
	}

	mpesa := GetLimits(models.ContextPersonal, models.TxTypeDeposit, models.MethodMpesa)
	if !ln.DailyLimit.GreaterThan(mpesa.DailyLimit) {
		t.Errorf("lightning daily ceiling (%s) should exceed mpesa's (%s)", ln.DailyLimit, mpesa.DailyLimit)
	}
}

func TestContextFloorAppliesUnderRail(t *testing.T) {
	// Membership subscriptions keep their 100 KES floor even on the
	// lightning rail, whose own minimum is 1.
	ln := GetLimits(models.ContextMembership, models.TxTypeSubscription, models.MethodLightning)
	if !ln.MinAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("membership lightning min = %s, want 100", ln.MinAmount)
	}
}

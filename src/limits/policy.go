// backend/src/limits/policy.go
package limits

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/chamasats/backend/src/models"
)

// Limits are the amount bounds for a (context, type, payment method)
// combination. Daily and monthly limits are rail-specific and independent
// of the per-transaction min/max; zero means no limit of that kind.
type Limits struct {
	MinAmount    decimal.Decimal `json:"min_amount"`
	MaxAmount    decimal.Decimal `json:"max_amount"`
	DailyLimit   decimal.Decimal `json:"daily_limit,omitempty"`
	MonthlyLimit decimal.Decimal `json:"monthly_limit,omitempty"`
	Currency     string          `json:"currency"`
}

const defaultCurrency = "KES"

// Context+type defaults, applied when no payment method is known yet.
var contextDefaults = map[models.TxContext]map[models.TxType]Limits{
	models.ContextChama: {
		models.TxTypeDeposit:    {MinAmount: dec(10), MaxAmount: dec(300_000), Currency: defaultCurrency},
		models.TxTypeWithdrawal: {MinAmount: dec(50), MaxAmount: dec(150_000), Currency: defaultCurrency},
		models.TxTypeTransfer:   {MinAmount: dec(10), MaxAmount: dec(150_000), Currency: defaultCurrency},
	},
	models.ContextPersonal: {
		models.TxTypeDeposit:    {MinAmount: dec(10), MaxAmount: dec(500_000), Currency: defaultCurrency},
		models.TxTypeWithdrawal: {MinAmount: dec(50), MaxAmount: dec(300_000), Currency: defaultCurrency},
		models.TxTypeTransfer:   {MinAmount: dec(10), MaxAmount: dec(300_000), Currency: defaultCurrency},
	},
	models.ContextMembership: {
		models.TxTypeSubscription: {MinAmount: dec(100), MaxAmount: dec(1_000_000), Currency: defaultCurrency},
	},
}

// Rail caps. Mobile money carries regulatory per-transaction, daily and
// monthly ceilings; Lightning carries a higher daily-only ceiling.
var methodLimits = map[models.PaymentMethod]Limits{
	models.MethodMpesa: {
		MinAmount:    dec(10),
		MaxAmount:    dec(150_000),
		DailyLimit:   dec(300_000),
		MonthlyLimit: dec(1_000_000),
		Currency:     defaultCurrency,
	},
	models.MethodLightning: {
		MinAmount:  dec(1),
		MaxAmount:  dec(500_000),
		DailyLimit: dec(500_000),
		Currency:   defaultCurrency,
	},
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// GetLimits computes the bounds for a transaction. Payment-method-specific
// limits take precedence when a method is known; otherwise the context+type
// defaults apply. An unknown combination yields the most restrictive
// context default for the type.
func GetLimits(ctx models.TxContext, txType models.TxType, method models.PaymentMethod) Limits {
	base := Limits{MinAmount: dec(10), MaxAmount: dec(150_000), Currency: defaultCurrency}
	if byType, ok := contextDefaults[ctx]; ok {
		if l, ok := byType[txType]; ok {
			base = l
		}
	}

	if method == "" {
		return base
	}
	rail, ok := methodLimits[method]
	if !ok {
		return base
	}

	// The rail overrides min/max and contributes its daily/monthly caps.
	// The per-transaction ceiling never exceeds the context's own.
	out := rail
	if base.MaxAmount.LessThan(rail.MaxAmount) {
		out.MaxAmount = base.MaxAmount
	}
	if base.MinAmount.GreaterThan(rail.MinAmount) {
		out.MinAmount = base.MinAmount
	}
	return out
}

// ViolationKind distinguishes the bound an amount failed.
type ViolationKind string

const (
	ViolationBelowMinimum    ViolationKind = "below_minimum"
	ViolationAboveMaximum    ViolationKind = "above_maximum"
	ViolationNotPositive     ViolationKind = "not_positive"
	ViolationAboveDailyCap   ViolationKind = "above_daily_limit"
	ViolationAboveMonthlyCap ViolationKind = "above_monthly_limit"
)

// Violation is a single failed bound with a human-readable reason.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

// ValidationResult reports every bound an amount violates. Amounts are
// never silently clamped.
type ValidationResult struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations,omitempty"`
}

// ValidateAmount checks an amount against limits, reporting each violated
// bound distinctly.
func ValidateAmount(amount decimal.Decimal, l Limits) ValidationResult {
	var violations []Violation

	if amount.Sign() <= 0 {
		violations = append(violations, Violation{
			Kind:    ViolationNotPositive,
			Message: "amount must be greater than zero",
		})
		return ValidationResult{OK: false, Violations: violations}
	}
	if amount.LessThan(l.MinAmount) {
		violations = append(violations, Violation{
			Kind:    ViolationBelowMinimum,
			Message: fmt.Sprintf("amount is below the minimum of %s %s", l.MinAmount.String(), l.Currency),
		})
	}
	if amount.GreaterThan(l.MaxAmount) {
		violations = append(violations, Violation{
			Kind:    ViolationAboveMaximum,
			Message: fmt.Sprintf("amount is above the maximum of %s %s", l.MaxAmount.String(), l.Currency),
		})
	}
	if l.DailyLimit.Sign() > 0 && amount.GreaterThan(l.DailyLimit) {
		violations = append(violations, Violation{
			Kind:    ViolationAboveDailyCap,
			Message: fmt.Sprintf("amount exceeds the daily limit of %s %s", l.DailyLimit.String(), l.Currency),
		})
	}
	if l.MonthlyLimit.Sign() > 0 && amount.GreaterThan(l.MonthlyLimit) {
		violations = append(violations, Violation{
			Kind:    ViolationAboveMonthlyCap,
			Message: fmt.Sprintf("amount exceeds the monthly limit of %s %s", l.MonthlyLimit.String(), l.Currency),
		})
	}

	return ValidationResult{OK: len(violations) == 0, Violations: violations}
}

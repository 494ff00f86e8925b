// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ErrValidationFailed is the sentinel wrapped by every validator here.
var ErrValidationFailed = fmt.Errorf("validation failed")

// Constants for lengths remain here
const (
	DefaultMaxStringLength = 255
	MaxCurrencyCodeLength  = 3
	MaxReferenceLength     = 100
	MaxLightningAddrLength = 320
	MaxInvoiceLength       = 2048
)

// --- String Validators ---

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateStringRegex checks if a string matches a given regex pattern.
func ValidateStringRegex(s string, pattern *regexp.Regexp, fieldName, formatDescription string) error {
	if !pattern.MatchString(s) {
		return fmt.Errorf("%w: %s ('%s') is not in the expected format (%s)", ErrValidationFailed, fieldName, s, formatDescription)
	}
	return nil
}

// --- Specific Format Validators ---

var (
	// Kenyan MSISDN in international format without the plus sign.
	phoneRegex        = regexp.MustCompile(`^254[17]\d{8}$`)
	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	referenceRegex    = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)
	bolt11Regex       = regexp.MustCompile(`^ln(bc|tb|bcrt)[a-z0-9]+$`)
	lightningAddrRe   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// NormalizePhoneNumber strips spacing and the leading plus or zero so the
// result is a bare international MSISDN (2547XXXXXXXX).
func NormalizePhoneNumber(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	cleaned = strings.TrimPrefix(cleaned, "+")
	if strings.HasPrefix(cleaned, "0") && len(cleaned) == 10 {
		cleaned = "254" + cleaned[1:]
	}
	return cleaned
}

// ValidatePhoneNumber checks a mobile-money MSISDN. The input is
// normalized first; callers should persist the normalized form.
func ValidatePhoneNumber(s string) error {
	normalized := NormalizePhoneNumber(s)
	if normalized == "" {
		return fmt.Errorf("%w: phone number cannot be empty", ErrValidationFailed)
	}
	return ValidateStringRegex(normalized, phoneRegex, "phone number", "Kenyan MSISDN, e.g. 254712345678")
}

// ValidateCurrencyCode checks if currency code is 3 uppercase letters.
func ValidateCurrencyCode(s string) error {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return nil
	}
	if err := ValidateStringMaxLength(trimmed, MaxCurrencyCodeLength, "Currency Code"); err != nil {
		return err
	}
	if !currencyCodeRegex.MatchString(trimmed) {
		return fmt.Errorf("%w: Currency Code ('%s') is not in the expected format (3 uppercase letters)", ErrValidationFailed, s)
	}
	return nil
}

// ValidateReference checks format and length for a payment reference.
// Empty references are allowed.
func ValidateReference(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if err := ValidateStringMaxLength(trimmed, MaxReferenceLength, "Reference"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, referenceRegex, "Reference", "alphanumeric with spaces, hyphens and underscores")
}

// ValidateLightningAddress checks a user@domain lightning address.
func ValidateLightningAddress(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return fmt.Errorf("%w: lightning address cannot be empty", ErrValidationFailed)
	}
	if err := ValidateStringMaxLength(trimmed, MaxLightningAddrLength, "Lightning Address"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, lightningAddrRe, "Lightning Address", "user@domain")
}

// ValidateLightningInvoice checks the shape of a bolt11 payment request.
// It does not decode the invoice; the payment rail does that.
func ValidateLightningInvoice(s string) error {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" {
		return fmt.Errorf("%w: lightning invoice cannot be empty", ErrValidationFailed)
	}
	if err := ValidateStringMaxLength(trimmed, MaxInvoiceLength, "Lightning Invoice"); err != nil {
		return err
	}
	return ValidateStringRegex(trimmed, bolt11Regex, "Lightning Invoice", "bolt11 payment request")
}

// --- Numeric Validators ---

// ValidateAmountString parses a decimal amount string and requires it to
// be strictly positive. Range checks against the limits policy happen in
// the service layer; this only guards the wire format.
func ValidateAmountString(s, fieldName string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	val, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s ('%s') is not a valid amount: %v", ErrValidationFailed, fieldName, s, err)
	}
	if val.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must be greater than zero", ErrValidationFailed, fieldName)
	}
	return val, nil
}

// ValidateQuantity requires a strictly positive share quantity.
func ValidateQuantity(v int, fieldName string) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be greater than zero", ErrValidationFailed, fieldName)
	}
	return nil
}

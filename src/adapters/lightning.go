// backend/src/adapters/lightning.go
package adapters

import "encoding/json"

// ExtractLightningInvoice pulls a bolt11 payment request out of a raw
// lightning payload. The upstream nests the invoice at
// lightning.bolt11.paymentRequest; older responses carry the invoice as a
// bare string. The nested path is checked first.
func ExtractLightningInvoice(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var nested struct {
		Bolt11 struct {
			PaymentRequest string `json:"paymentRequest"`
		} `json:"bolt11"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Bolt11.PaymentRequest != "" {
		return nested.Bolt11.PaymentRequest
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	return ""
}

package payment

import (
	"crypto/subtle"
	"strings"
)

// VerifySePayWebhookAuth checks the Authorization header SePay sends with
// every webhook delivery: "Apikey <configured key>".
func VerifySePayWebhookAuth(apiKey, header string) bool {
	if apiKey == "" || header == "" {
		return false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Apikey") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(apiKey)) == 1
}

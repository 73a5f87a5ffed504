package validate

import (
	"strings"

	"github.com/ShiraazMoollatjie/goluhn"

	"github.com/GlebRadaev/partnerpay/internal/domain"
)

func IsLuhn(s string) bool {
	err := goluhn.Validate(s)
	return err == nil
}

// Destination reports whether dest can receive a payout sent with method.
func Destination(method domain.PaymentMethod, dest string) bool {
	dest = strings.TrimSpace(dest)
	switch method {
	case domain.MethodCard:
		return IsLuhn(strings.ReplaceAll(dest, " ", ""))
	case domain.MethodStripe:
		return strings.HasPrefix(dest, "acct_")
	case domain.MethodManual:
		return true
	}
	return false
}

package utils

import (
	"fmt"
	"regexp"
)

var (
	codePattern           = regexp.MustCompile(`^[A-Z0-9_]{1,16}$`)
	transactionRefPattern = regexp.MustCompile(`^[A-Z0-9_]{1,16}-\d{13}-[0-9a-z]{6}$`)
	controlChars          = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateCode validates an upper-case product or event code such as ILC or ISS
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("invalid code %q: expected 1-16 upper-case letters, digits or underscores", code)
	}
	return nil
}

// ValidateTransactionRef validates a generated "<PRODUCT>-<epochMillis>-<suffix>" reference
func ValidateTransactionRef(ref string) error {
	if !transactionRefPattern.MatchString(ref) {
		return fmt.Errorf("invalid transaction reference: %s", ref)
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

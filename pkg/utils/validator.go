package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex       = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	claimNumberRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-_/]*$`)
	controlChars     = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateClaimNumber checks a claim number's shape: non-empty, at most
// 64 characters, alphanumeric with separators.
func ValidateClaimNumber(claimNumber string) error {
	claimNumber = strings.TrimSpace(claimNumber)
	if claimNumber == "" {
		return fmt.Errorf("claim number is empty")
	}
	if len(claimNumber) > 64 {
		return fmt.Errorf("claim number exceeds 64 characters: %s", claimNumber)
	}
	if !claimNumberRegex.MatchString(claimNumber) {
		return fmt.Errorf("claim number contains invalid characters: %s", claimNumber)
	}
	return nil
}

// SanitizeString removes control characters from free-text fields
// before they reach logs or exports.
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

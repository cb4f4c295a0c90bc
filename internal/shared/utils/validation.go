package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String length limits
const (
	MaxUserLength = 128
	MaxIDLength   = 128
)

var (
	// SafeIDPattern allows alphanumeric, dots, hyphens and underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	// UserPattern also admits the domain separators of account names such as
	// CORP\alice or alice@corp.example.
	UserPattern = regexp.MustCompile(`^[a-zA-Z0-9._@\\-]+$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateID validates a definition id
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}
	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, dots, hyphens, and underscores allowed)", fieldName)
	}
	return nil
}

// ValidateUser validates an account name as reported by the session layer
func ValidateUser(user string, required bool) error {
	if err := ValidateString(user, "user", 1, MaxUserLength, required); err != nil {
		return err
	}
	if user != "" && (!UserPattern.MatchString(user) || user == "." || user == "..") {
		return fmt.Errorf("user %q contains invalid characters", user)
	}
	return nil
}

package validation

import (
	"fmt"
	"unicode/utf8"
)

// Password length bounds, counted in characters.
const (
	PasswordMin = 8
	PasswordMax = 128
)

// ValidatePassword checks that a password is within the allowed length.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMin {
		return fmt.Errorf("password must be at least %d characters", PasswordMin)
	}
	if n > PasswordMax {
		return fmt.Errorf("password must be at most %d characters", PasswordMax)
	}
	return nil
}

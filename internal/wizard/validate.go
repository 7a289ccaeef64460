package wizard

import (
	"errors"
	"strings"
)

// Client-side input checks. A rejection here surfaces immediately and never
// changes step state; no request is sent.

func validatePhone(phone string) error {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 8 {
		return errors.New("phone number is too short")
	}
	if !allDigits(digits) {
		return errors.New("phone number must contain digits only")
	}
	return nil
}

func validateCode(code string) error {
	if len(code) != 6 || !allDigits(code) {
		return errors.New("verification code must be 6 digits")
	}
	return nil
}

func validateAccountNumber(account string) error {
	if len(account) < 7 || len(account) > 16 {
		return errors.New("account number must be between 7 and 16 digits")
	}
	if !allDigits(account) {
		return errors.New("account number must be numeric")
	}
	return nil
}

func validatePIN(pin string) error {
	if len(pin) != 4 || !allDigits(pin) {
		return errors.New("PIN must be exactly 4 digits")
	}
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

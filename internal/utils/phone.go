package utils

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// ErrInvalidPhone is returned for numbers that are not Russian mobile or
// landline numbers in +7/7/8 form.
var ErrInvalidPhone = errors.New("invalid phone number")

var phonePattern = regexp.MustCompile(`^(\+7|7|8)\d{10}$`)

// ValidPhone reports whether phone, stripped of everything but digits and
// '+', is an 11-digit number starting with +7, 7 or 8.
func ValidPhone(phone string) bool {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '+' {
			return r
		}
		return -1
	}, phone)
	return phonePattern.MatchString(cleaned)
}

// FormatPhone renders an 11-digit number as "+7 (XXX) XXX-XX-XX".  Input
// that does not reduce to such a number is returned unchanged.
func FormatPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if strings.HasPrefix(digits, "8") {
		digits = "7" + digits[1:]
	}
	if len(digits) == 11 && digits[0] == '7' {
		return "+7 (" + digits[1:4] + ") " + digits[4:7] + "-" + digits[7:9] + "-" + digits[9:]
	}
	return phone
}

// NormalizePhone validates phone and returns its canonical form.
func NormalizePhone(phone string) (string, error) {
	if !ValidPhone(phone) {
		return "", ErrInvalidPhone
	}
	return FormatPhone(phone), nil
}

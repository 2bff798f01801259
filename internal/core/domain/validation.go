package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	emailPattern = regexp.MustCompile(
		"^[A-Za-z0-9!#$%&'*+/=?^_`{|}~-]+(\\.[A-Za-z0-9!#$%&'*+/=?^_`{|}~-]+)*" +
			"@([A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?\\.)+[A-Za-z]{2,63}$")

	// International form with a leading '+' and 10-15 digits, or NNN-NNN-NNNN.
	phonePattern = regexp.MustCompile(`^(\+\d{10,15}|\d{3}-\d{3}-\d{4})$`)
)

// Column bounds of the store schema.
const (
	maxEmailLength = 254
	maxNameLength  = 255
)

// MaxPrice is the largest value a DECIMAL(10,2) price column holds.
var MaxPrice = decimal.RequireFromString("99999999.99")

func ValidateEmail(value string) error {
	if len(value) > maxEmailLength || !emailPattern.MatchString(value) {
		return Errorf(ErrInvalidFormat, "Enter a valid email address.")
	}
	return nil
}

func ValidatePhone(value string) error {
	if !phonePattern.MatchString(value) {
		return Errorf(ErrInvalidFormat, "Invalid phone format.")
	}
	return nil
}

func ValidatePrice(value decimal.Decimal) error {
	if !value.IsPositive() {
		return Errorf(ErrInvalidValue, "Price must be positive.")
	}
	if value.GreaterThan(MaxPrice) {
		return Errorf(ErrInvalidValue, "Price cannot exceed %s.", MaxPrice.StringFixed(2))
	}
	return nil
}

func ValidateStock(value int) error {
	if value < 0 {
		return Errorf(ErrInvalidValue, "Stock cannot be negative.")
	}
	return nil
}

func ValidateName(value string) error {
	if strings.TrimSpace(value) == "" {
		return Errorf(ErrInvalidValue, "Name is required.")
	}
	if utf8.RuneCountInString(strings.TrimSpace(value)) > maxNameLength {
		return Errorf(ErrInvalidValue, "Name cannot exceed %d characters.", maxNameLength)
	}
	return nil
}

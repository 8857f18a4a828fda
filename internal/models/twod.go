// Package models defines the core domain entities for the twodoracle application.
// These models represent 2D draw numbers, session results, daily result rows, and
// live SET readings. All models include built-in validation to ensure data integrity
// throughout the application.
//
// Terminology:
//   - SET: the Stock Exchange of Thailand index the draw is derived from.
//   - 2D: a two-digit draw outcome "00".."99" derived from a SET reading.
//   - Session: one of the fixed daily draw times (11:00, 12:01, 15:00, 16:30).
package models

import (
	"errors"
	"fmt"
)

// TwoD is a two-digit draw outcome. Leading zeros are significant, so it is
// always handled as a string and never as a number.
type TwoD string

// ErrInvalidTwoD is returned when a value is not exactly two decimal digits.
var ErrInvalidTwoD = errors.New("2D number must be exactly two decimal digits")

// ParseTwoD validates s and returns it as a TwoD.
func ParseTwoD(s string) (TwoD, error) {
	n := TwoD(s)
	if !n.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTwoD, s)
	}
	return n, nil
}

// Valid reports whether n is exactly two ASCII digits.
func (n TwoD) Valid() bool {
	return len(n) == 2 && isDigit(n[0]) && isDigit(n[1])
}

// Tens returns the first digit.
func (n TwoD) Tens() byte { return n[0] }

// Ones returns the second digit.
func (n TwoD) Ones() byte { return n[1] }

// IsDouble reports whether both digits are equal ("00", "11", ...).
func (n TwoD) IsDouble() bool {
	return n.Valid() && n[0] == n[1]
}

// FromDigits builds a TwoD from two digit characters.
func FromDigits(tens, ones byte) TwoD {
	return TwoD([]byte{tens, ones})
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

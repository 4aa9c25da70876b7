package cusip

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Length is the canonical identifier length.
	Length = 9
	// StemLength is the length of the stem the check digit is computed over.
	StemLength = Length - 1
)

// Alphabet is the candidate character order used when searching for a
// missing stem character: letters first, then digits.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrInvalidStem is returned when a stem is not exactly StemLength
// characters drawn from [0-9A-Z].
var ErrInvalidStem = errors.New("invalid identifier stem")

// CheckDigit computes the check digit for an 8-character stem.
func CheckDigit(stem string) (byte, error) {
	if len(stem) != StemLength {
		return 0, fmt.Errorf("%w: %q has length %d", ErrInvalidStem, stem, len(stem))
	}

	sum := 0
	for i := 0; i < len(stem); i++ {
		v, ok := charValue(stem[i])
		if !ok {
			return 0, fmt.Errorf("%w: %q has character %q", ErrInvalidStem, stem, stem[i])
		}
		if i%2 == 1 {
			v *= 2
		}
		sum += v/10 + v%10
	}
	return byte('0' + (10-sum%10)%10), nil
}

// Complete appends the check digit to an 8-character stem.
func Complete(stem string) (string, error) {
	d, err := CheckDigit(stem)
	if err != nil {
		return "", err
	}
	return stem + string(d), nil
}

// Valid reports whether code is a 9-character identifier whose last
// character is the correct check digit.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	d, err := CheckDigit(code[:StemLength])
	if err != nil {
		return false
	}
	return code[StemLength] == d
}

// LeftPad pads code on the left with zeros to Length.
// Codes of Length or longer are returned unchanged.
func LeftPad(code string) string {
	if len(code) >= Length {
		return code
	}
	return strings.Repeat("0", Length-len(code)) + code
}

// RightPad pads code on the right with zeros to Length.
func RightPad(code string) string {
	if len(code) >= Length {
		return code
	}
	return code + strings.Repeat("0", Length-len(code))
}

func charValue(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

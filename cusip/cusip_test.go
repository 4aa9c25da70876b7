package cusip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDigit(t *testing.T) {
	tests := []struct {
		stem string
		want byte
	}{
		{"03783310", '0'}, // Apple
		{"38259P50", '8'}, // Google class A
		{"59491810", '4'}, // Microsoft
		{"88160R10", '1'}, // Tesla
		{"00000000", '0'},
	}
	for _, tt := range tests {
		t.Run(tt.stem, func(t *testing.T) {
			got, err := CheckDigit(tt.stem)
			require.NoError(t, err)
			assert.Equal(t, string(tt.want), string(got))
		})
	}
}

func TestCheckDigitRejectsBadStems(t *testing.T) {
	for _, stem := range []string{"", "0378331", "037833100", "0378331a", "0378-310"} {
		t.Run(stem, func(t *testing.T) {
			_, err := CheckDigit(stem)
			require.ErrorIs(t, err, ErrInvalidStem)
		})
	}
}

func TestComplete(t *testing.T) {
	code, err := Complete("03783310")
	require.NoError(t, err)
	assert.Equal(t, "037833100", code)

	_, err = Complete("short")
	require.ErrorIs(t, err, ErrInvalidStem)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("037833100"))
	assert.True(t, Valid("38259P508"))
	assert.False(t, Valid("037833101"))
	assert.False(t, Valid("03783310"))
	assert.False(t, Valid("COMMON ST"))
}

func TestPadding(t *testing.T) {
	assert.Equal(t, "000012345", LeftPad("12345"))
	assert.Equal(t, "123450000", RightPad("12345"))
	assert.Equal(t, "037833100", LeftPad("037833100"))
	assert.Equal(t, "0378331000", RightPad("0378331000"))
}

func TestAlphabet(t *testing.T) {
	assert.Len(t, Alphabet, 36)
	for i := 0; i < len(Alphabet); i++ {
		_, ok := charValue(Alphabet[i])
		assert.True(t, ok)
	}
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("2024_Q1", "file.txt")
	b := Fingerprint("2024_Q1", "file.txt")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	// Part boundaries matter
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}

func TestPadCIK(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1067983", "0001067983"},
		{" 1067983 ", "0001067983"},
		{"0001067983", "0001067983"},
		{"", ""},
		{"12345678901", "12345678901"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PadCIK(tt.in))
		})
	}
}

func TestHoldingNormalizeIdentity(t *testing.T) {
	h := &Holding{NameOfIssuer: " apple inc ", TitleOfClass: "com", CUSIP: " 037833100\n"}
	h.NormalizeIdentity()
	assert.Equal(t, "APPLE INC", h.NameOfIssuer)
	assert.Equal(t, "COM", h.TitleOfClass)
	assert.Equal(t, "037833100", h.CUSIP)
}

func TestValidateFiling(t *testing.T) {
	tests := []struct {
		name    string
		filing  *Filing
		wantErr error
	}{
		{"nil", nil, ErrInvalidFiling},
		{"empty accession", &Filing{CIK: "0000000001"}, ErrEmptyAccessionNumber},
		{"non numeric cik", &Filing{AccessionNumber: "a", CIK: "12AB"}, ErrInvalidCIK},
		{"too wide cik", &Filing{AccessionNumber: "a", CIK: "123456789012"}, ErrInvalidCIK},
		{"valid", &Filing{AccessionNumber: "0001-24-000001", CIK: "0000000001"}, nil},
		{"empty cik accepted", &Filing{AccessionNumber: "0001-24-000001"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFiling(tt.filing)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateHolding(t *testing.T) {
	require.ErrorIs(t, ValidateHolding(nil), ErrInvalidHolding)
	require.ErrorIs(t, ValidateHolding(&Holding{}), ErrInvalidHolding)
	require.NoError(t, ValidateHolding(&Holding{FilingID: 1}))
	require.NoError(t, ValidateHolding(&Holding{AccessionNumber: "x"}))
}

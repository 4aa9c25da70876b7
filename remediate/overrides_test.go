package remediate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/thirteenf/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverrides(t *testing.T) {
	o, err := ParseOverrides([]byte(`
set_amendment_type:
  - type: RESTATEMENT
    accessions:
      - 0000919185-16-000018
      - 0001654954-20-012510
delete:
  - cik: "1780067"
    period: 2020-12-31
    reason: filed under the wrong filer
`))
	require.NoError(t, err)
	require.Len(t, o.SetAmendmentType, 1)
	assert.Equal(t, []string{"0000919185-16-000018", "0001654954-20-012510"}, o.SetAmendmentType[0].Accessions)
	require.Len(t, o.Delete, 1)
	assert.Equal(t, "0001780067", o.Delete[0].CIK)

	period, err := o.Delete[0].PeriodOfReport()
	require.NoError(t, err)
	assert.Equal(t, day(2020, 12, 31), period)
	assert.False(t, o.Empty())
}

func TestParseOverrides_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"malformed", "delete: [", ErrInvalidOverride},
		{"empty type", "set_amendment_type: [{type: '', accessions: [A]}]", ErrInvalidOverride},
		{"no accessions", "set_amendment_type: [{type: RESTATEMENT}]", ErrInvalidOverride},
		{"blank accession", "set_amendment_type: [{type: RESTATEMENT, accessions: [' ']}]", core.ErrEmptyAccessionNumber},
		{"empty cik", "delete: [{period: 2020-12-31}]", ErrInvalidOverride},
		{"bad cik", "delete: [{cik: 12a, period: 2020-12-31}]", core.ErrInvalidCIK},
		{"bad period", "delete: [{cik: '1', period: 2020-13-01}]", ErrInvalidOverride},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOverrides([]byte(tt.yaml))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	o, err := LoadOverrides("")
	require.NoError(t, err)
	assert.True(t, o.Empty())

	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testOverrides), 0o644))
	o, err = LoadOverrides(path)
	require.NoError(t, err)
	assert.Len(t, o.Delete, 1)

	_, err = LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

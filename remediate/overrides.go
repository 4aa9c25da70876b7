package remediate

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/thirteenf/core"
	"gopkg.in/yaml.v3"
)

// PeriodLayout is the date layout of override periods.
const PeriodLayout = "2006-01-02"

// Overrides is the manual-correction table applied by the apply-overrides
// step. It is kept outside the code so corrections can change without a
// release.
//
//	set_amendment_type:
//	  - type: RESTATEMENT
//	    accessions: [0000919185-16-000018]
//	delete:
//	  - cik: "0001780067"
//	    period: 2020-12-31
//	    reason: duplicate submission under a second filer
type Overrides struct {
	SetAmendmentType []AmendmentOverride `yaml:"set_amendment_type"`
	Delete           []DeleteOverride    `yaml:"delete"`
}

// AmendmentOverride sets the amendment type of the listed filings.
type AmendmentOverride struct {
	Type       string   `yaml:"type"`
	Accessions []string `yaml:"accessions"`
}

// DeleteOverride removes one filer's filings for one report period.
type DeleteOverride struct {
	CIK    string `yaml:"cik"`
	Period string `yaml:"period"` // PeriodLayout
	Reason string `yaml:"reason,omitempty"`
}

// PeriodOfReport parses Period.
func (d DeleteOverride) PeriodOfReport() (time.Time, error) {
	t, err := time.Parse(PeriodLayout, strings.TrimSpace(d.Period))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: period %q: %w", ErrInvalidOverride, d.Period, err)
	}
	return t, nil
}

// Empty reports whether the table has no entries.
func (o *Overrides) Empty() bool {
	return o == nil || (len(o.SetAmendmentType) == 0 && len(o.Delete) == 0)
}

// Validate checks every entry and normalizes filer identifiers.
func (o *Overrides) Validate() error {
	for i, a := range o.SetAmendmentType {
		if strings.TrimSpace(a.Type) == "" {
			return fmt.Errorf("%w: set_amendment_type[%d]: type is empty", ErrInvalidOverride, i)
		}
		if len(a.Accessions) == 0 {
			return fmt.Errorf("%w: set_amendment_type[%d]: no accessions", ErrInvalidOverride, i)
		}
		for _, acc := range a.Accessions {
			if strings.TrimSpace(acc) == "" {
				return fmt.Errorf("%w: set_amendment_type[%d]: %w", ErrInvalidOverride, i, core.ErrEmptyAccessionNumber)
			}
		}
	}
	for i := range o.Delete {
		d := &o.Delete[i]
		d.CIK = core.PadCIK(d.CIK)
		if d.CIK == "" {
			return fmt.Errorf("%w: delete[%d]: cik is empty", ErrInvalidOverride, i)
		}
		if err := core.ValidateCIK(d.CIK); err != nil {
			return fmt.Errorf("%w: delete[%d]: %w", ErrInvalidOverride, i, err)
		}
		if _, err := d.PeriodOfReport(); err != nil {
			return fmt.Errorf("delete[%d]: %w", i, err)
		}
	}
	return nil
}

// ParseOverrides decodes and validates a YAML override table.
func ParseOverrides(data []byte) (*Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOverride, err)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}

// LoadOverrides reads the override table at path. An empty path yields an
// empty table.
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return &Overrides{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	o, err := ParseOverrides(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}

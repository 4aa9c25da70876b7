// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"strings"
)

// ValidateFiling validates a Filing according to domain rules.
//
// Validation rules:
//   - AccessionNumber must not be empty
//   - CIK must be numeric and at most CIKWidth characters
//
// NOT validated (absent values are persisted as NULL):
//   - dates, address fields, amendment metadata
//   - ID (assigned by the store)
func ValidateFiling(filing *Filing) error {
	if filing == nil {
		return fmt.Errorf("%w: filing is nil", ErrInvalidFiling)
	}

	if strings.TrimSpace(filing.AccessionNumber) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFiling, ErrEmptyAccessionNumber)
	}

	if err := ValidateCIK(filing.CIK); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidFiling, filing.AccessionNumber, err)
	}

	return nil
}

// ValidateCIK checks that a filer identifier is all digits and not wider
// than CIKWidth. An empty identifier is accepted.
func ValidateCIK(cik string) error {
	if len(cik) > CIKWidth {
		return fmt.Errorf("%w: %q is wider than %d", ErrInvalidCIK, cik, CIKWidth)
	}
	for _, r := range cik {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidCIK, cik)
		}
	}
	return nil
}

// ValidateHolding validates a Holding before insertion.
// A holding must reference its filing, by surrogate id or accession number.
func ValidateHolding(holding *Holding) error {
	if holding == nil {
		return fmt.Errorf("%w: holding is nil", ErrInvalidHolding)
	}
	if holding.FilingID == 0 && holding.AccessionNumber == "" {
		return fmt.Errorf("%w: no filing reference", ErrInvalidHolding)
	}
	return nil
}

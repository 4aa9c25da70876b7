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

import "errors"

// Domain validation errors
var (
	// ErrInvalidFiling indicates a Filing failed validation.
	ErrInvalidFiling = errors.New("invalid filing")

	// ErrInvalidHolding indicates a Holding failed validation.
	ErrInvalidHolding = errors.New("invalid holding")

	// ErrInvalidPeriod indicates a year/quarter pair is out of range or unparseable.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrEmptyAccessionNumber indicates the accession number is empty.
	ErrEmptyAccessionNumber = errors.New("accession number cannot be empty")

	// ErrInvalidCIK indicates a filer identifier that is not numeric or is too wide.
	ErrInvalidCIK = errors.New("invalid cik")

	// ErrUnknownCategory indicates a work item category other than bulk or document.
	ErrUnknownCategory = errors.New("unknown work item category")
)

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

package source

import "errors"

var (
	// ErrMissingFile indicates a required bulk table is absent from the folder.
	ErrMissingFile = errors.New("missing bulk table")

	// ErrMissingColumn indicates a required column is absent from a bulk table.
	ErrMissingColumn = errors.New("missing column")

	// ErrMissingFragments indicates a document has fewer than two <XML> fragments.
	ErrMissingFragments = errors.New("document has fewer than two xml fragments")

	// ErrMissingHeaderField indicates the accession number or acceptance
	// timestamp could not be found in the document header.
	ErrMissingHeaderField = errors.New("missing document header field")

	// ErrMalformedXML indicates a fragment could not be decoded.
	ErrMalformedXML = errors.New("malformed xml fragment")
)

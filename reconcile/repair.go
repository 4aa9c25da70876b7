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

package reconcile

import (
	"sort"

	"github.com/poiesic/thirteenf/cusip"
	"github.com/poiesic/thirteenf/storage"
)

// Method names the repair that produced a Fix.
type Method string

const (
	MethodLeftPad  Method = "left-pad"
	MethodRightPad Method = "right-pad"
	MethodChecksum Method = "checksum"
	MethodZeroPad  Method = "zero-pad" // unconditional fallback
)

// Methods lists repair methods in priority order.
var Methods = []Method{MethodLeftPad, MethodRightPad, MethodChecksum, MethodZeroPad}

// Fix is the replacement chosen for one short code.
type Fix struct {
	Code   string
	Method Method
}

// Swaps holds the values found in the wrong column.
type Swaps struct {
	// Titles are class titles that are reference codes.
	Titles []string
	// Issuers are issuer names that are reference codes.
	Issuers []string
}

// Empty reports whether no swaps were found.
func (s Swaps) Empty() bool {
	return len(s.Titles) == 0 && len(s.Issuers) == 0
}

// DetectSwaps finds class titles and issuer names holding reference codes.
func DetectSwaps(triples []storage.IdentifierTriple, ref ReferenceSet) Swaps {
	titles := make(map[string]struct{})
	issuers := make(map[string]struct{})
	for _, t := range triples {
		if ref.Contains(t.TitleOfClass) {
			titles[t.TitleOfClass] = struct{}{}
		}
		if ref.Contains(t.NameOfIssuer) {
			issuers[t.NameOfIssuer] = struct{}{}
		}
	}
	return Swaps{Titles: sortedKeys(titles), Issuers: sortedKeys(issuers)}
}

// ShortCodes returns the distinct non-empty identifiers shorter than
// cusip.Length, ignoring rows the swap stage repairs.
func ShortCodes(triples []storage.IdentifierTriple, ref ReferenceSet) []string {
	codes := make(map[string]struct{})
	for _, t := range triples {
		if ref.Contains(t.TitleOfClass) || ref.Contains(t.NameOfIssuer) {
			continue
		}
		if t.CUSIP != "" && len(t.CUSIP) < cusip.Length {
			codes[t.CUSIP] = struct{}{}
		}
	}
	return sortedKeys(codes)
}

// PlanShortCodeFixes chooses a replacement for every short code. Each code
// takes the first repair that yields a reference code, in Methods order.
// Codes no repair resolves are left-padded unconditionally. Empty codes and
// codes of full length are skipped.
func PlanShortCodeFixes(codes []string, ref ReferenceSet) map[string]Fix {
	fixes := make(map[string]Fix, len(codes))
	for _, code := range codes {
		if code == "" || len(code) >= cusip.Length {
			continue
		}
		fixes[code] = planFix(code, ref)
	}
	return fixes
}

func planFix(code string, ref ReferenceSet) Fix {
	if padded := cusip.LeftPad(code); ref.Contains(padded) {
		return Fix{Code: padded, Method: MethodLeftPad}
	}
	if padded := cusip.RightPad(code); ref.Contains(padded) {
		return Fix{Code: padded, Method: MethodRightPad}
	}
	if repaired, ok := checksumRepair(code, ref); ok {
		return Fix{Code: repaired, Method: MethodChecksum}
	}
	return Fix{Code: cusip.LeftPad(code), Method: MethodZeroPad}
}

// checksumRepair completes an 8-character code with its check digit, or
// searches a 7-character code for the missing character: every prefix in
// cusip.Alphabet order first, then every suffix.
func checksumRepair(code string, ref ReferenceSet) (string, bool) {
	switch len(code) {
	case cusip.StemLength:
		return completeIfKnown(code, ref)
	case cusip.StemLength - 1:
		for i := 0; i < len(cusip.Alphabet); i++ {
			if full, ok := completeIfKnown(cusip.Alphabet[i:i+1]+code, ref); ok {
				return full, true
			}
		}
		for i := 0; i < len(cusip.Alphabet); i++ {
			if full, ok := completeIfKnown(code+cusip.Alphabet[i:i+1], ref); ok {
				return full, true
			}
		}
	}
	return "", false
}

func completeIfKnown(stem string, ref ReferenceSet) (string, bool) {
	full, err := cusip.Complete(stem)
	if err != nil || !ref.Contains(full) {
		return "", false
	}
	return full, true
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

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

// Package cusip implements the 9-character security identifier check digit.
//
// A code is an 8-character alphanumeric stem followed by one check digit.
// Each stem character maps to a value: digits to themselves, letters to
// 10 plus their alphabet position (A=10 ... Z=35). Values at odd indexes
// are doubled, the decimal digits of every value are summed, and the check
// digit is (10 - sum mod 10) mod 10.
//
//	d, _ := cusip.CheckDigit("03783310") // '0'
//	cusip.Valid("037833100")              // true
package cusip

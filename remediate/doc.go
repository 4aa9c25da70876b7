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

// Package remediate runs the post-load cleanup of the relational store.
//
// A Runner executes an ordered list of steps. Each step is one transaction:
// a failing step is rolled back and aborts the run, leaving earlier steps
// committed. Every step is idempotent, so a failed run is retried by running
// it again.
//
// The steps, in order:
//
//	prune-early-filings    filings reported before Config.MinReportYear
//	drop-notice-filings    13F-NT and 13F-NT/A notices
//	pad-cik                zero-pad filer identifiers
//	apply-overrides        manual corrections from the override table
//	resolve-amendments     delete filings superseded by a later one
//	drop-options           holdings with a put/call flag
//	reconcile-identifiers  the reconcile.Engine
//
// The run ends by counting orphan filings, which declare table entries but
// have no holdings. They are logged, not repaired.
package remediate

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

import "errors"

var (
	// ErrEmptyReferenceSet is returned when the reference source yields no codes.
	ErrEmptyReferenceSet = errors.New("reference set is empty")

	// ErrMissingIdentifierColumn is returned when the reference file has no
	// identifier column.
	ErrMissingIdentifierColumn = errors.New("reference file has no identifier column")

	// ErrStageFailed wraps the error of a stage whose batch was rolled back.
	ErrStageFailed = errors.New("reconciliation stage failed")

	// ErrRepositoryRequired is returned when a repository is not provided.
	ErrRepositoryRequired = errors.New("repository required")

	// ErrReferenceSourceRequired is returned when a reference source is not provided.
	ErrReferenceSourceRequired = errors.New("reference source required")
)

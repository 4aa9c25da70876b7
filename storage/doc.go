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

// Package storage defines the relational store used by ingestion and
// remediation.
//
// The store holds two tables: filings, keyed by a unique accession number,
// and holdings, each owned by one filing. Deleting a filing deletes its
// holdings.
//
// # Transactions
//
// All reads and writes go through Repository.WithTransaction. Ingestion
// runs one transaction per work item, so a failed item leaves no rows
// behind. Remediation runs one transaction per step.
//
//	err := repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
//	    id, inserted, err := tx.InsertFiling(ctx, filing)
//	    ...
//	})
//
// # Implementations
//
// Package sqldb implements Repository over database/sql for SQLite and
// PostgreSQL. Use sqldb.NewMemoryRepository in tests.
//
// # Thread Safety
//
// Repository implementations must support concurrent transactions from
// multiple goroutines. A Tx is bound to one goroutine.
package storage

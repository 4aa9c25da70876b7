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

package storage

import (
	"context"
	"time"

	"github.com/poiesic/thirteenf/core"
)

// IdentifierTriple is one distinct (identifier, class title, issuer name)
// combination found in holdings. Values are trimmed and upper-cased.
type IdentifierTriple struct {
	CUSIP        string
	TitleOfClass string
	NameOfIssuer string
}

// Counts reports table sizes.
type Counts struct {
	Filings  int64
	Holdings int64
}

// Repository is the entry point to the relational store.
type Repository interface {
	// WithTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Counts returns the number of filings and holdings.
	Counts(ctx context.Context) (Counts, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// Tx groups the operations available inside a transaction.
type Tx interface {
	IngestionTx
	RemediationTx
}

// IngestionTx holds the writes performed by ingestion workers.
type IngestionTx interface {
	// InsertFilings inserts filings, silently skipping accession numbers
	// that already exist. Returns the number of rows inserted.
	InsertFilings(ctx context.Context, filings []*core.Filing) (int64, error)

	// InsertFiling inserts one filing with insert-or-ignore semantics.
	// inserted is false, and id zero, when the accession number already exists.
	InsertFiling(ctx context.Context, filing *core.Filing) (id int64, inserted bool, err error)

	// ResolveFilingIDs maps accession numbers to surrogate ids.
	// Accession numbers with no filing are absent from the result.
	ResolveFilingIDs(ctx context.Context, accessions []string) (map[string]int64, error)

	// InsertHoldings inserts holdings. Each holding's FilingID must be set.
	InsertHoldings(ctx context.Context, holdings []*core.Holding) (int64, error)
}

// RemediationTx holds the batch corrections run after ingestion.
// Each method returns the number of rows affected.
type RemediationTx interface {
	// IdentifierTriples returns the distinct identifier triples in holdings.
	IdentifierTriples(ctx context.Context) ([]IdentifierTriple, error)

	// SwapTitleIntoIdentifier exchanges identifier and class title on rows
	// whose class title is one of titles.
	SwapTitleIntoIdentifier(ctx context.Context, titles []string) (int64, error)

	// RotateIssuerIntoIdentifier moves the issuer name into the identifier,
	// the class title into the issuer name and the identifier into the class
	// title, on rows whose issuer name is one of issuers.
	RotateIssuerIntoIdentifier(ctx context.Context, issuers []string) (int64, error)

	// RemapIdentifiers replaces each identifier key of mapping with its value.
	RemapIdentifiers(ctx context.Context, mapping map[string]string) (int64, error)

	// DeleteFilingsBefore deletes filings, and their holdings, whose period of
	// report precedes cutoff.
	DeleteFilingsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteFilingsBySubmissionType deletes filings of the given types.
	DeleteFilingsBySubmissionType(ctx context.Context, types []string) (int64, error)

	// PadCIKs left-pads filer identifiers with zeros to core.CIKWidth.
	PadCIKs(ctx context.Context) (int64, error)

	// SetAmendmentType overrides the amendment type of the given filings.
	SetAmendmentType(ctx context.Context, accessions []string, amendmentType string) (int64, error)

	// DeleteFilingsForPeriod deletes a filer's filings for one report period.
	DeleteFilingsForPeriod(ctx context.Context, cik string, period time.Time) (int64, error)

	// SupersededFilingIDs returns filings replaced by a later filing for the
	// same filer and period: originals when any restatement exists, older
	// restatements, and older originals.
	SupersededFilingIDs(ctx context.Context) ([]int64, error)

	// DeleteFilings deletes filings, and their holdings, by id.
	DeleteFilings(ctx context.Context, ids []int64) (int64, error)

	// DeleteOptionHoldings deletes holdings carrying a put/call flag.
	DeleteOptionHoldings(ctx context.Context) (int64, error)

	// CountOrphanFilings counts filings that declare table entries but have
	// no holdings.
	CountOrphanFilings(ctx context.Context) (int64, error)
}

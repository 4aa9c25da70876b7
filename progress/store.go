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

// Package progress records which ingestion work items have completed.
//
// State is partitioned by category. Bulk items live in one flat list keyed
// by folder; document items are nested by period key. Each partition keeps a
// processed list and a failed list. Lists only grow: an item that failed and
// later succeeded appears in both.
//
// Only the processed list decides whether an item is skipped, so failed
// items are always retried on the next run.
//
// Store implementations are not required to support concurrent writers.
// Callers route every mutation through a single goroutine.
package progress

import (
	"fmt"
	"sort"
	"time"

	"github.com/poiesic/thirteenf/core"
)

// Status is the recorded outcome of a work item.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Reader answers completion queries. Work enumeration only needs a Reader.
type Reader interface {
	// IsProcessed reports whether itemID was marked processed.
	// The period key is ignored for the bulk category.
	IsProcessed(category core.Category, periodKey, itemID string) bool

	// ProcessedCount returns the number of processed items in a period.
	// For the bulk category an empty period key counts the whole list and
	// a non-empty key counts the folder with that key.
	ProcessedCount(category core.Category, periodKey string) int
}

// Store is a durable, append-only record of work item outcomes.
type Store interface {
	Reader

	// MarkProcessed records a successful item and persists immediately.
	// Marking an item twice is a no-op.
	MarkProcessed(category core.Category, periodKey, itemID string) error

	// MarkFailed records a failed item and persists immediately.
	MarkFailed(category core.Category, periodKey, itemID string) error

	// Summary returns per-period counts.
	Summary() Summary

	// Flush forces state to durable storage.
	Flush() error

	// Close flushes and releases resources.
	Close() error
}

// Summary is a snapshot of the store's contents.
type Summary struct {
	LastUpdated time.Time
	Entries     []SummaryEntry
}

// SummaryEntry holds counts for one category and period. Bulk items are
// reported under an empty period key.
type SummaryEntry struct {
	Category  core.Category
	PeriodKey string
	Processed int
	// Failed counts items that failed and have not since been processed.
	Failed int
}

// Totals sums processed and outstanding failed items for a category.
func (s Summary) Totals(category core.Category) (processed, failed int) {
	for _, e := range s.Entries {
		if e.Category == category {
			processed += e.Processed
			failed += e.Failed
		}
	}
	return processed, failed
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"   // JSON document
	BackendBadger = "badger" // badger directory
)

// Open opens the store named by backend at path. An empty backend selects
// BackendFile.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return OpenFileStore(path)
	case BackendBadger:
		return OpenBadgerStore(path, false)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// partitionKey maps a category and period to the key items are grouped
// under. Bulk items share a single partition.
func partitionKey(category core.Category, periodKey string) (string, error) {
	switch category {
	case core.CategoryBulk:
		return "", nil
	case core.CategoryDocument:
		return periodKey, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnknownCategory, category)
	}
}

func sortEntries(entries []SummaryEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		return entries[i].PeriodKey < entries[j].PeriodKey
	})
}

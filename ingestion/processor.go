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

package ingestion

import (
	"context"

	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/source"
)

// BulkParser reads one bulk folder.
type BulkParser interface {
	Parse(dir string) (*source.BulkFolder, error)
}

// DocumentParser reads one per-document filing.
type DocumentParser interface {
	Parse(path string) (*source.Document, error)
}

// itemStats counts the rows one work item wrote.
type itemStats struct {
	filings  int64
	holdings int64
	dropped  int64 // holdings whose filing could not be resolved
}

// processor is an internal interface for ingesting one work item.
// Implementations own the whole item: parse, then write in one transaction.
type processor interface {
	process(ctx context.Context, item core.WorkItem) (itemStats, error)
}

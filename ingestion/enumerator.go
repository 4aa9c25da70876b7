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
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/progress"
)

const (
	// DefaultBoundaryYear is the first year ingested from individual documents.
	DefaultBoundaryYear = 2024

	// DefaultDocumentExt is the file extension of individual documents.
	DefaultDocumentExt = ".txt"
)

// Track is the work of one category within a plan.
type Track struct {
	Category core.Category
	Universe int             // Items found on disk
	Done     int             // Items in the universe already processed
	Items    []core.WorkItem // Items left to run
}

// Remaining returns the number of items left to run.
func (t Track) Remaining() int {
	return t.Universe - t.Done
}

// Plan is the remaining work for a period range.
type Plan struct {
	Bulk      Track
	Documents Track
}

// Items returns bulk items followed by document items.
func (p *Plan) Items() []core.WorkItem {
	items := make([]core.WorkItem, 0, len(p.Bulk.Items)+len(p.Documents.Items))
	items = append(items, p.Bulk.Items...)
	return append(items, p.Documents.Items...)
}

// Remaining returns the number of items left to run across both tracks.
func (p *Plan) Remaining() int {
	return len(p.Bulk.Items) + len(p.Documents.Items)
}

// Enumerator computes work items from the source directories.
type Enumerator struct {
	bulkDir      string
	documentDir  string
	boundaryYear int
	documentExt  string
	progress     progress.Reader
	logger       *slog.Logger
}

// EnumeratorOption configures an Enumerator.
type EnumeratorOption func(*Enumerator)

// WithBoundaryYear sets the first year read from individual documents.
func WithBoundaryYear(year int) EnumeratorOption {
	return func(e *Enumerator) {
		if year > 0 {
			e.boundaryYear = year
		}
	}
}

// WithDocumentExt sets the document file extension. The empty string
// accepts every regular file.
func WithDocumentExt(ext string) EnumeratorOption {
	return func(e *Enumerator) {
		e.documentExt = ext
	}
}

// WithEnumeratorLogger sets a custom logger.
func WithEnumeratorLogger(logger *slog.Logger) EnumeratorOption {
	return func(e *Enumerator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEnumerator creates an Enumerator over bulkDir and documentDir.
// Bulk folders are named <bulkDir>/<YYYY>_Q<q>; documents live in
// <documentDir>/<YYYY>_Q<q>/.
func NewEnumerator(bulkDir, documentDir string, reader progress.Reader, opts ...EnumeratorOption) *Enumerator {
	e := &Enumerator{
		bulkDir:      bulkDir,
		documentDir:  documentDir,
		boundaryYear: DefaultBoundaryYear,
		documentExt:  DefaultDocumentExt,
		progress:     reader,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "enumerator")
	return e
}

// Plan splits periods at the boundary year and lists the unprocessed items
// of each track. A missing or unreadable directory contributes no items.
func (e *Enumerator) Plan(periods []core.Period) (*Plan, error) {
	plan := &Plan{
		Bulk:      Track{Category: core.CategoryBulk},
		Documents: Track{Category: core.CategoryDocument},
	}
	for _, period := range periods {
		if err := period.Validate(); err != nil {
			return nil, err
		}
		if period.Year < e.boundaryYear {
			e.planBulk(&plan.Bulk, period)
		} else {
			e.planDocuments(&plan.Documents, period)
		}
	}

	e.logger.Info("planned work",
		"bulk_universe", plan.Bulk.Universe, "bulk_remaining", plan.Bulk.Remaining(),
		"document_universe", plan.Documents.Universe, "document_remaining", plan.Documents.Remaining())
	return plan, nil
}

func (e *Enumerator) planBulk(track *Track, period core.Period) {
	item := core.WorkItem{
		Category: core.CategoryBulk,
		Period:   period,
		ID:       period.Key(),
		Path:     filepath.Join(e.bulkDir, period.Key()),
	}
	info, err := os.Stat(item.Path)
	if err != nil || !info.IsDir() {
		e.logger.Warn("bulk folder not found", "period", period.Key(), "path", item.Path)
		return
	}

	track.Universe++
	if e.progress.IsProcessed(item.Category, item.PeriodKey(), item.ID) {
		track.Done++
		return
	}
	track.Items = append(track.Items, item)
}

func (e *Enumerator) planDocuments(track *Track, period core.Period) {
	dir := filepath.Join(e.documentDir, period.Key())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("document folder not found", "period", period.Key(), "path", dir)
		} else {
			e.logger.Error("document folder unreadable", "period", period.Key(), "path", dir, "err", err)
		}
		return
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if e.documentExt != "" && !strings.EqualFold(filepath.Ext(entry.Name()), e.documentExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		track.Universe++
		if e.progress.IsProcessed(core.CategoryDocument, period.Key(), name) {
			track.Done++
			continue
		}
		track.Items = append(track.Items, core.WorkItem{
			Category: core.CategoryDocument,
			Period:   period,
			ID:       name,
			Path:     filepath.Join(dir, name),
		})
	}
}

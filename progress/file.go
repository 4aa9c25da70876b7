package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/poiesic/thirteenf/core"
)

// itemLists is the processed/failed pair stored for each partition.
type itemLists struct {
	Processed []string `json:"processed"`
	Failed    []string `json:"failed"`
}

// document is the on-disk layout of a FileStore.
type document struct {
	StructuredData    *itemLists            `json:"structured_data"`
	IndividualFilings map[string]*itemLists `json:"individual_filings"`
	LastUpdated       string                `json:"last_updated,omitempty"`
}

// partition mirrors itemLists with set indexes for O(1) membership.
type partition struct {
	lists     *itemLists
	processed map[string]struct{}
	failed    map[string]struct{}
}

func newPartition(lists *itemLists) *partition {
	if lists.Processed == nil {
		lists.Processed = []string{}
	}
	if lists.Failed == nil {
		lists.Failed = []string{}
	}
	p := &partition{
		lists:     lists,
		processed: make(map[string]struct{}, len(lists.Processed)),
		failed:    make(map[string]struct{}, len(lists.Failed)),
	}
	for _, id := range lists.Processed {
		p.processed[id] = struct{}{}
	}
	for _, id := range lists.Failed {
		p.failed[id] = struct{}{}
	}
	return p
}

// FileStore keeps progress in a single JSON document, rewritten on every
// mutation. Writes go to a temporary file in the same directory that is
// then renamed over the target, so a crash leaves either the new or the
// prior document.
type FileStore struct {
	path        string
	mu          sync.RWMutex
	bulk        *partition
	documents   map[string]*partition
	lastUpdated time.Time
	closed      bool
	now         func() time.Time
}

var _ Store = (*FileStore)(nil)

// OpenFileStore loads the document at path, or starts empty if it does not
// exist. The parent directory is created if needed.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	doc := document{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptState, path, err)
		}
	}

	if doc.StructuredData == nil {
		doc.StructuredData = &itemLists{}
	}
	s := &FileStore{
		path:      path,
		bulk:      newPartition(doc.StructuredData),
		documents: make(map[string]*partition, len(doc.IndividualFilings)),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for key, lists := range doc.IndividualFilings {
		if lists == nil {
			lists = &itemLists{}
		}
		s.documents[key] = newPartition(lists)
	}
	if doc.LastUpdated != "" {
		if t, err := time.Parse(time.RFC3339Nano, doc.LastUpdated); err == nil {
			s.lastUpdated = t
		}
	}
	return s, nil
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) lookup(category core.Category, periodKey string) *partition {
	key, err := partitionKey(category, periodKey)
	if err != nil {
		return nil
	}
	if category == core.CategoryBulk {
		return s.bulk
	}
	return s.documents[key]
}

// IsProcessed reports whether the item is in the processed list.
func (s *FileStore) IsProcessed(category core.Category, periodKey, itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.lookup(category, periodKey)
	if p == nil {
		return false
	}
	_, ok := p.processed[itemID]
	return ok
}

// ProcessedCount returns the number of processed items in a period.
func (s *FileStore) ProcessedCount(category core.Category, periodKey string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.lookup(category, periodKey)
	if p == nil {
		return 0
	}
	if category == core.CategoryBulk && periodKey != "" {
		if _, ok := p.processed[periodKey]; ok {
			return 1
		}
		return 0
	}
	return len(p.processed)
}

// MarkProcessed appends the item to the processed list and persists.
func (s *FileStore) MarkProcessed(category core.Category, periodKey, itemID string) error {
	return s.mark(category, periodKey, itemID, StatusProcessed)
}

// MarkFailed appends the item to the failed list and persists.
func (s *FileStore) MarkFailed(category core.Category, periodKey, itemID string) error {
	return s.mark(category, periodKey, itemID, StatusFailed)
}

func (s *FileStore) mark(category core.Category, periodKey, itemID string, status Status) error {
	key, err := partitionKey(category, periodKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	p := s.bulk
	if category == core.CategoryDocument {
		p = s.documents[key]
		if p == nil {
			p = newPartition(&itemLists{})
			s.documents[key] = p
		}
	}

	switch status {
	case StatusProcessed:
		if _, ok := p.processed[itemID]; ok {
			return nil
		}
		p.processed[itemID] = struct{}{}
		p.lists.Processed = append(p.lists.Processed, itemID)
	case StatusFailed:
		if _, ok := p.failed[itemID]; ok {
			return nil
		}
		p.failed[itemID] = struct{}{}
		p.lists.Failed = append(p.lists.Failed, itemID)
	}

	s.lastUpdated = s.now()
	return s.persist()
}

// Summary returns per-period counts.
func (s *FileStore) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := Summary{LastUpdated: s.lastUpdated}
	if len(s.bulk.processed) > 0 || len(s.bulk.failed) > 0 {
		summary.Entries = append(summary.Entries, s.bulk.entry(core.CategoryBulk, ""))
	}
	for key, p := range s.documents {
		summary.Entries = append(summary.Entries, p.entry(core.CategoryDocument, key))
	}
	sortEntries(summary.Entries)
	return summary
}

func (p *partition) entry(category core.Category, periodKey string) SummaryEntry {
	e := SummaryEntry{Category: category, PeriodKey: periodKey, Processed: len(p.processed)}
	for id := range p.failed {
		if _, ok := p.processed[id]; !ok {
			e.Failed++
		}
	}
	return e
}

// Flush rewrites the document.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.persist()
}

// Close marks the store closed. Every mutation has already been persisted,
// so there is nothing left to write. Further mutations fail with ErrStoreClosed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// persist writes the document atomically. Must be called with lock held.
func (s *FileStore) persist() error {
	doc := document{
		StructuredData:    s.bulk.lists,
		IndividualFilings: make(map[string]*itemLists, len(s.documents)),
	}
	for key, p := range s.documents {
		doc.IndividualFilings[key] = p.lists
	}
	if !s.lastUpdated.IsZero() {
		doc.LastUpdated = s.lastUpdated.Format(time.RFC3339Nano)
	}

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace progress file: %w", err)
	}
	return nil
}

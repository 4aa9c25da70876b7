package progress

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/thirteenf/core"
)

const (
	processedPrefix = "p/"
	failedPrefix    = "f/"
	lastUpdatedKey  = "meta/last_updated"
)

// BadgerStore keeps progress in a badger database, one key per recorded
// outcome. Writes are synced, so a committed mark survives a crash.
type BadgerStore struct {
	db       *badger.DB
	inMemory bool
	logger   *slog.Logger
	now      func() time.Time
}

var _ Store = (*BadgerStore)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

// OpenBadgerStore opens a badger-backed store in dir.
// Creates the directory if it doesn't exist. With inMemory the directory is
// ignored and nothing is persisted, which is useful in tests.
func OpenBadgerStore(dir string, inMemory bool) (*BadgerStore, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
			if info, err = os.Stat(dir); err != nil {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		opts = badger.DefaultOptions(dir).WithSyncWrites(true)
	}

	logger := slog.Default().With("component", "progress")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:       db,
		inMemory: inMemory,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// withTx executes fn within a badger transaction.
// The transaction is discarded unless fn commits it.
func (s *BadgerStore) withTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if s.db.IsClosed() {
		return ErrStoreClosed
	}
	tx := s.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

func itemKey(prefix string, category core.Category, partition, itemID string) []byte {
	return []byte(prefix + string(category) + "/" + partition + "/" + itemID)
}

func partitionPrefix(prefix string, category core.Category, partition string) []byte {
	return []byte(prefix + string(category) + "/" + partition + "/")
}

// IsProcessed reports whether a processed key exists for the item.
func (s *BadgerStore) IsProcessed(category core.Category, periodKey, itemID string) bool {
	part, err := partitionKey(category, periodKey)
	if err != nil {
		return false
	}

	found := false
	err = s.withTx(func(tx *badger.Txn) error {
		_, err := tx.Get(itemKey(processedPrefix, category, part, itemID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	}, false)
	if err != nil {
		s.logger.Error("error reading progress", "item", itemID, "err", err)
	}
	return found
}

// ProcessedCount counts processed keys in a period.
func (s *BadgerStore) ProcessedCount(category core.Category, periodKey string) int {
	if category == core.CategoryBulk && periodKey != "" {
		if s.IsProcessed(category, "", periodKey) {
			return 1
		}
		return 0
	}
	part, err := partitionKey(category, periodKey)
	if err != nil {
		return 0
	}

	count := 0
	err = s.withTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = partitionPrefix(processedPrefix, category, part)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		s.logger.Error("error counting progress", "category", category, "period", periodKey, "err", err)
	}
	return count
}

// MarkProcessed records a processed key and commits synchronously.
func (s *BadgerStore) MarkProcessed(category core.Category, periodKey, itemID string) error {
	return s.mark(processedPrefix, category, periodKey, itemID)
}

// MarkFailed records a failed key and commits synchronously.
func (s *BadgerStore) MarkFailed(category core.Category, periodKey, itemID string) error {
	return s.mark(failedPrefix, category, periodKey, itemID)
}

func (s *BadgerStore) mark(prefix string, category core.Category, periodKey, itemID string) error {
	part, err := partitionKey(category, periodKey)
	if err != nil {
		return err
	}

	return s.withTx(func(tx *badger.Txn) error {
		key := itemKey(prefix, category, part, itemID)
		_, err := tx.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		stamp := []byte(s.now().Format(time.RFC3339Nano))
		if err := tx.Set(key, stamp); err != nil {
			return err
		}
		if err := tx.Set([]byte(lastUpdatedKey), stamp); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Summary scans every recorded key and groups counts by period.
func (s *BadgerStore) Summary() Summary {
	type group struct {
		processed map[string]struct{}
		failed    []string
	}
	type groupKey struct {
		category  core.Category
		partition string
	}
	groups := make(map[groupKey]*group)
	get := func(k groupKey) *group {
		g := groups[k]
		if g == nil {
			g = &group{processed: make(map[string]struct{})}
			groups[k] = g
		}
		return g
	}

	var summary Summary
	err := s.withTx(func(tx *badger.Txn) error {
		if item, err := tx.Get([]byte(lastUpdatedKey)); err == nil {
			_ = item.Value(func(val []byte) error {
				summary.LastUpdated, _ = time.Parse(time.RFC3339Nano, string(val))
				return nil
			})
		}

		for _, prefix := range []string{processedPrefix, failedPrefix} {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = []byte(prefix)
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				parts := strings.SplitN(string(iter.Item().Key())[len(prefix):], "/", 3)
				if len(parts) != 3 {
					continue
				}
				g := get(groupKey{core.Category(parts[0]), parts[1]})
				if prefix == processedPrefix {
					g.processed[parts[2]] = struct{}{}
				} else {
					g.failed = append(g.failed, parts[2])
				}
			}
			iter.Close()
		}
		return nil
	}, false)
	if err != nil {
		s.logger.Error("error summarizing progress", "err", err)
	}

	for k, g := range groups {
		e := SummaryEntry{Category: k.category, PeriodKey: k.partition, Processed: len(g.processed)}
		for _, id := range g.failed {
			if _, ok := g.processed[id]; !ok {
				e.Failed++
			}
		}
		summary.Entries = append(summary.Entries, e)
	}
	sortEntries(summary.Entries)
	return summary
}

// Flush syncs the value log to disk.
func (s *BadgerStore) Flush() error {
	if s.db.IsClosed() {
		return ErrStoreClosed
	}
	if s.inMemory {
		return nil
	}
	return s.db.Sync()
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/storage"
)

// bulkProcessor ingests one bulk folder.
type bulkProcessor struct {
	repo   storage.Repository
	parser BulkParser
	logger *slog.Logger
}

var _ processor = (*bulkProcessor)(nil)

func newBulkProcessor(repo storage.Repository, parser BulkParser, logger *slog.Logger) *bulkProcessor {
	return &bulkProcessor{
		repo:   repo,
		parser: parser,
		logger: logger.With("processor", "bulk"),
	}
}

// process inserts the folder's filings with insert-or-ignore, resolves the
// filing ids referenced by its holdings, and inserts the holdings that
// resolved. Unresolvable holdings are dropped and counted.
func (bp *bulkProcessor) process(ctx context.Context, item core.WorkItem) (itemStats, error) {
	folder, err := bp.parser.Parse(item.Path)
	if err != nil {
		return itemStats{}, fmt.Errorf("parse %s: %w", item.Path, err)
	}

	var stats itemStats
	err = bp.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		n, err := tx.InsertFilings(ctx, folder.Filings)
		if err != nil {
			return err
		}
		stats.filings = n

		seen := make(map[string]struct{})
		var accessions []string
		for _, h := range folder.Holdings {
			if _, ok := seen[h.AccessionNumber]; !ok {
				seen[h.AccessionNumber] = struct{}{}
				accessions = append(accessions, h.AccessionNumber)
			}
		}
		ids, err := tx.ResolveFilingIDs(ctx, accessions)
		if err != nil {
			return err
		}

		kept := make([]*core.Holding, 0, len(folder.Holdings))
		for _, h := range folder.Holdings {
			id, ok := ids[h.AccessionNumber]
			if !ok {
				stats.dropped++
				continue
			}
			h.FilingID = id
			kept = append(kept, h)
		}

		n, err = tx.InsertHoldings(ctx, kept)
		if err != nil {
			return err
		}
		stats.holdings = n
		return nil
	})
	if err != nil {
		return itemStats{}, err
	}

	if stats.dropped > 0 {
		bp.logger.Warn("dropped holdings with unresolved filings", "item", item.String(), "dropped", stats.dropped)
	}
	return stats, nil
}

// documentProcessor ingests one per-document filing.
type documentProcessor struct {
	repo   storage.Repository
	parser DocumentParser
	logger *slog.Logger
}

var _ processor = (*documentProcessor)(nil)

func newDocumentProcessor(repo storage.Repository, parser DocumentParser, logger *slog.Logger) *documentProcessor {
	return &documentProcessor{
		repo:   repo,
		parser: parser,
		logger: logger.With("processor", "document"),
	}
}

// process inserts the filing and, only when it was newly inserted, its
// holdings. A filing that already exists keeps whatever holdings it has.
func (dp *documentProcessor) process(ctx context.Context, item core.WorkItem) (itemStats, error) {
	doc, err := dp.parser.Parse(item.Path)
	if err != nil {
		return itemStats{}, fmt.Errorf("parse %s: %w", item.Path, err)
	}

	var stats itemStats
	err = dp.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		id, inserted, err := tx.InsertFiling(ctx, doc.Filing)
		if err != nil {
			return err
		}
		if !inserted {
			dp.logger.Debug("filing already present, skipping holdings",
				"item", item.String(), "accession", doc.Filing.AccessionNumber)
			return nil
		}
		stats.filings = 1

		for _, h := range doc.Holdings {
			h.FilingID = id
		}
		n, err := tx.InsertHoldings(ctx, doc.Holdings)
		if err != nil {
			return err
		}
		stats.holdings = n
		return nil
	})
	if err != nil {
		return itemStats{}, err
	}
	return stats, nil
}

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/progress"
	"github.com/poiesic/thirteenf/source"
	"github.com/poiesic/thirteenf/storage"
	"golang.org/x/sync/errgroup"
)

// Reporter receives progress notifications. Calls are made from a single
// goroutine.
type Reporter interface {
	Start(plan *Plan)
	ItemDone(item core.WorkItem, err error)
	Finish(result *Result)
}

// Recorder receives per-item measurements, typically for metrics.
type Recorder interface {
	ObserveItem(category core.Category, err error, elapsed time.Duration)
	ObserveRows(category core.Category, filings, holdings, dropped int64)
}

// CategoryResult counts item outcomes for one category.
type CategoryResult struct {
	Planned   int
	Succeeded int
	Failed    int
}

// Result summarizes one pipeline run.
type Result struct {
	RunID            string
	Bulk             CategoryResult
	Documents        CategoryResult
	FilingsInserted  int64
	HoldingsInserted int64
	HoldingsDropped  int64
	Duration         time.Duration
}

// Total sums both categories.
func (r *Result) Total() CategoryResult {
	return CategoryResult{
		Planned:   r.Bulk.Planned + r.Documents.Planned,
		Succeeded: r.Bulk.Succeeded + r.Documents.Succeeded,
		Failed:    r.Bulk.Failed + r.Documents.Failed,
	}
}

func (r *Result) category(c core.Category) *CategoryResult {
	if c == core.CategoryBulk {
		return &r.Bulk
	}
	return &r.Documents
}

// outcome is the result of one work item, posted by its worker whether it
// succeeded, failed or panicked.
type outcome struct {
	item    core.WorkItem
	stats   itemStats
	err     error
	elapsed time.Duration
}

// Pipeline runs work items on a worker pool and records their outcomes.
type Pipeline struct {
	repository storage.Repository
	store      progress.Store
	enumerator *Enumerator
	pool       *ants.Pool
	poolSize   int
	bulkParser BulkParser
	docParser  DocumentParser
	processors map[core.Category]processor
	reporter   Reporter
	recorder   Recorder
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithReporter sets the progress reporter.
func WithReporter(reporter Reporter) Option {
	return func(p *Pipeline) error {
		if reporter != nil {
			p.reporter = reporter
		}
		return nil
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(p *Pipeline) error {
		p.recorder = recorder
		return nil
	}
}

// WithBulkParser replaces the bulk folder parser.
func WithBulkParser(parser BulkParser) Option {
	return func(p *Pipeline) error {
		if parser != nil {
			p.bulkParser = parser
		}
		return nil
	}
}

// WithDocumentParser replaces the document parser.
func WithDocumentParser(parser DocumentParser) Option {
	return func(p *Pipeline) error {
		if parser != nil {
			p.docParser = parser
		}
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	repository storage.Repository,
	store progress.Store,
	enumerator *Enumerator,
	opts ...Option,
) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if store == nil {
		return nil, ErrProgressStoreRequired
	}
	if enumerator == nil {
		return nil, ErrEnumeratorRequired
	}

	p := &Pipeline{
		repository: repository,
		store:      store,
		enumerator: enumerator,
		poolSize:   max(runtime.NumCPU(), 1),
		bulkParser: source.NewBulkReader(),
		docParser:  source.NewDocumentReader(),
		reporter:   nopReporter{},
		logger:     slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pipeline")

	pool, err := ants.NewPool(p.poolSize)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	p.processors = map[core.Category]processor{
		core.CategoryBulk:     newBulkProcessor(repository, p.bulkParser, p.logger),
		core.CategoryDocument: newDocumentProcessor(repository, p.docParser, p.logger),
	}
	return p, nil
}

// Run ingests every unprocessed item of periods.
//
// Each item is processed in its own transaction. A failed item is logged,
// recorded as failed and left unprocessed for the next run; it does not
// affect other items. A progress store write error stops dispatch and is
// returned once every in-flight item has reported.
func (p *Pipeline) Run(ctx context.Context, periods []core.Period) (*Result, error) {
	start := time.Now()
	plan, err := p.enumerator.Plan(periods)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(periods)+1)
	keys = append(keys, strconv.FormatInt(start.UnixNano(), 10))
	for _, period := range periods {
		keys = append(keys, period.Key())
	}
	result := &Result{RunID: core.Fingerprint(keys...)}
	result.Bulk.Planned = len(plan.Bulk.Items)
	result.Documents.Planned = len(plan.Documents.Items)
	logger := p.logger.With("run", result.RunID)

	items := plan.Items()
	logger.Info("starting ingestion", "items", len(items), "workers", p.poolSize)
	p.reporter.Start(plan)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan outcome, p.poolSize)
	var g errgroup.Group

	// Dispatcher: closes outcomes once every submitted item has posted.
	g.Go(func() error {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(outcomes)
		}()
		for _, item := range items {
			if runCtx.Err() != nil {
				return nil
			}
			wg.Add(1)
			err := p.pool.Submit(func() {
				defer wg.Done()
				outcomes <- p.execute(runCtx, item)
			})
			if err != nil {
				wg.Done()
				outcomes <- outcome{item: item, err: fmt.Errorf("submit: %w", err)}
			}
		}
		return nil
	})

	// Aggregator: the only writer to the progress store.
	g.Go(func() error {
		var storeErr error
		for out := range outcomes {
			counts := result.category(out.item.Category)
			if out.err != nil {
				counts.Failed++
				logger.Error("work item failed",
					"category", out.item.Category, "period", out.item.PeriodKey(),
					"item", out.item.ID, "err", out.err)
			} else {
				counts.Succeeded++
				result.FilingsInserted += out.stats.filings
				result.HoldingsInserted += out.stats.holdings
				result.HoldingsDropped += out.stats.dropped
				logger.Debug("work item processed",
					"category", out.item.Category, "period", out.item.PeriodKey(),
					"item", out.item.ID, "filings", out.stats.filings, "holdings", out.stats.holdings)
			}

			if storeErr == nil {
				if err := p.record(out); err != nil {
					storeErr = fmt.Errorf("record %s: %w", out.item, err)
					logger.Error("progress store write failed, stopping dispatch", "err", err)
					cancel()
				}
			}

			if p.recorder != nil {
				p.recorder.ObserveItem(out.item.Category, out.err, out.elapsed)
				p.recorder.ObserveRows(out.item.Category, out.stats.filings, out.stats.holdings, out.stats.dropped)
			}
			p.reporter.ItemDone(out.item, out.err)
		}
		return storeErr
	})

	err = g.Wait()
	result.Duration = time.Since(start)
	if err == nil {
		err = ctx.Err()
	}
	if flushErr := p.store.Flush(); flushErr != nil && err == nil {
		err = fmt.Errorf("flush progress: %w", flushErr)
	}

	total := result.Total()
	logger.Info("ingestion finished",
		"succeeded", total.Succeeded, "failed", total.Failed,
		"filings", result.FilingsInserted, "holdings", result.HoldingsInserted,
		"dropped", result.HoldingsDropped, "duration", result.Duration)
	p.reporter.Finish(result)
	return result, err
}

func (p *Pipeline) record(out outcome) error {
	if out.err != nil {
		return p.store.MarkFailed(out.item.Category, out.item.PeriodKey(), out.item.ID)
	}
	return p.store.MarkProcessed(out.item.Category, out.item.PeriodKey(), out.item.ID)
}

// execute runs one item and converts a panic into an item error.
func (p *Pipeline) execute(ctx context.Context, item core.WorkItem) (out outcome) {
	start := time.Now()
	out.item = item
	defer func() {
		if r := recover(); r != nil {
			out.stats = itemStats{}
			out.err = fmt.Errorf("%w: %v", ErrItemPanicked, r)
		}
		out.elapsed = time.Since(start)
	}()

	proc, ok := p.processors[item.Category]
	if !ok {
		out.err = fmt.Errorf("%w: %q", core.ErrUnknownCategory, item.Category)
		return out
	}
	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}
	out.stats, out.err = proc.process(ctx, item)
	return out
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

type nopReporter struct{}

func (nopReporter) Start(*Plan)                   {}
func (nopReporter) ItemDone(core.WorkItem, error) {}
func (nopReporter) Finish(*Result)                {}

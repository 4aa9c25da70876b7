package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/progress"
	"github.com/poiesic/thirteenf/source"
	"github.com/poiesic/thirteenf/storage"
	"github.com/poiesic/thirteenf/storage/sqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBulkParser returns one filing per folder with two holdings, plus a
// holding referencing a filing that does not exist.
type fakeBulkParser struct{}

func (fakeBulkParser) Parse(dir string) (*source.BulkFolder, error) {
	key := filepath.Base(dir)
	accession := "bulk-" + key
	return &source.BulkFolder{
		Filings: []*core.Filing{{AccessionNumber: accession, CIK: "0000000001"}},
		Holdings: []*core.Holding{
			{AccessionNumber: accession, CUSIP: "037833100"},
			{AccessionNumber: accession, CUSIP: "594918104"},
			{AccessionNumber: "unknown-" + key, CUSIP: "166764100"},
		},
	}, nil
}

// fakeDocumentParser keys filings on the file name. Behaviour per file can
// be overridden with fail and panics.
type fakeDocumentParser struct {
	mu        sync.Mutex
	fail      map[string]error
	panics    map[string]bool
	accession map[string]string
}

func (p *fakeDocumentParser) Parse(path string) (*source.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := filepath.Base(path)
	if err := p.fail[name]; err != nil {
		return nil, err
	}
	if p.panics[name] {
		panic("bad document " + name)
	}
	accession := "doc-" + name
	if a, ok := p.accession[name]; ok {
		accession = a
	}
	return &source.Document{
		Filing: &core.Filing{AccessionNumber: accession, CIK: "0000000002"},
		Holdings: []*core.Holding{
			{AccessionNumber: accession, CUSIP: "037833100"},
		},
	}, nil
}

// failingRepository fails InsertHoldings for one accession number, after
// the filing row has been written.
type failingRepository struct {
	storage.Repository
	accession string
}

func (r *failingRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return r.Repository.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		return fn(ctx, &failingTx{Tx: tx, accession: r.accession})
	})
}

type failingTx struct {
	storage.Tx
	accession string
}

func (t *failingTx) InsertHoldings(ctx context.Context, holdings []*core.Holding) (int64, error) {
	for _, h := range holdings {
		if h.AccessionNumber == t.accession {
			return 0, errors.New("disk full")
		}
	}
	return t.Tx.InsertHoldings(ctx, holdings)
}

// recordingReporter captures reporter calls.
type recordingReporter struct {
	started  *Plan
	done     []string
	failed   []string
	finished *Result
}

func (r *recordingReporter) Start(plan *Plan) { r.started = plan }

func (r *recordingReporter) ItemDone(item core.WorkItem, err error) {
	if err != nil {
		r.failed = append(r.failed, item.ID)
		return
	}
	r.done = append(r.done, item.ID)
}

func (r *recordingReporter) Finish(result *Result) { r.finished = result }

// recordingRecorder captures metric observations.
type recordingRecorder struct {
	items map[string]int
	rows  int64
}

func (r *recordingRecorder) ObserveItem(category core.Category, err error, _ time.Duration) {
	if r.items == nil {
		r.items = map[string]int{}
	}
	r.items[fmt.Sprintf("%s/%t", category, err == nil)]++
}

func (r *recordingRecorder) ObserveRows(_ core.Category, filings, holdings, dropped int64) {
	r.rows += filings + holdings + dropped
}

type pipelineFixture struct {
	layout sourceLayout
	repo   *sqldb.Repository
	store  *progress.FileStore
	docs   *fakeDocumentParser
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	repo, err := sqldb.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return &pipelineFixture{
		layout: newLayout(t),
		repo:   repo,
		store:  newFileStore(t),
		docs:   &fakeDocumentParser{},
	}
}

func (f *pipelineFixture) pipeline(t *testing.T, repo storage.Repository, opts ...Option) *Pipeline {
	t.Helper()
	enumerator := NewEnumerator(f.layout.bulkDir, f.layout.documentDir, f.store)
	opts = append([]Option{
		WithPoolSize(3),
		WithBulkParser(fakeBulkParser{}),
		WithDocumentParser(f.docs),
	}, opts...)
	p, err := NewPipeline(repo, f.store, enumerator, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func (f *pipelineFixture) counts(t *testing.T) storage.Counts {
	t.Helper()
	counts, err := f.repo.Counts(context.Background())
	require.NoError(t, err)
	return counts
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	f := newPipelineFixture(t)
	enumerator := NewEnumerator("", "", f.store)

	_, err := NewPipeline(nil, f.store, enumerator)
	require.ErrorIs(t, err, ErrRepositoryRequired)
	_, err = NewPipeline(f.repo, nil, enumerator)
	require.ErrorIs(t, err, ErrProgressStoreRequired)
	_, err = NewPipeline(f.repo, f.store, nil)
	require.ErrorIs(t, err, ErrEnumeratorRequired)
}

func TestPipeline_RunIsIdempotent(t *testing.T) {
	f := newPipelineFixture(t)
	reporter := &recordingReporter{}
	recorder := &recordingRecorder{}
	p := f.pipeline(t, f.repo, WithReporter(reporter), WithRecorder(recorder))
	ctx := context.Background()

	result, err := p.Run(ctx, periods(t, "2023Q3", "2024Q1"))
	require.NoError(t, err)

	assert.Len(t, result.RunID, 16)
	assert.Equal(t, CategoryResult{Planned: 2, Succeeded: 2}, result.Bulk)
	assert.Equal(t, CategoryResult{Planned: 3, Succeeded: 3}, result.Documents)
	assert.Equal(t, int64(5), result.FilingsInserted)
	assert.Equal(t, int64(7), result.HoldingsInserted)
	assert.Equal(t, int64(2), result.HoldingsDropped)
	assert.Positive(t, result.Duration)

	assert.Equal(t, 5, reporter.started.Remaining())
	assert.Len(t, reporter.done, 5)
	assert.Same(t, result, reporter.finished)
	assert.Equal(t, 2, recorder.items["structured_data/true"])
	assert.Equal(t, 3, recorder.items["individual_filings/true"])
	assert.Equal(t, int64(14), recorder.rows)

	first := f.counts(t)
	assert.Equal(t, storage.Counts{Filings: 5, Holdings: 7}, first)
	assert.True(t, f.store.IsProcessed(core.CategoryBulk, "", "2023_Q4"))
	assert.Equal(t, 3, f.store.ProcessedCount(core.CategoryDocument, "2024_Q1"))

	// Second run finds nothing to do and leaves row counts unchanged
	result, err = p.Run(ctx, periods(t, "2023Q3", "2024Q1"))
	require.NoError(t, err)
	assert.Zero(t, result.Total().Planned)
	assert.Equal(t, first, f.counts(t))
}

func TestPipeline_ReprocessingDoesNotDuplicateRows(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	_, err := f.pipeline(t, f.repo).Run(ctx, periods(t, "2024Q1", "2024Q1"))
	require.NoError(t, err)
	first := f.counts(t)

	// A fresh progress store forces every document to run again
	f.store = newFileStore(t)
	result, err := f.pipeline(t, f.repo).Run(ctx, periods(t, "2024Q1", "2024Q1"))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Documents.Succeeded)
	assert.Zero(t, result.FilingsInserted)
	assert.Zero(t, result.HoldingsInserted)
	assert.Equal(t, first, f.counts(t))
}

func TestPipeline_PartialFailureIsolation(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()
	repo := &failingRepository{Repository: f.repo, accession: "doc-b.TXT"}
	f.docs.fail = map[string]error{"c.txt": errors.New("truncated document")}
	reporter := &recordingReporter{}

	result, err := f.pipeline(t, repo, WithReporter(reporter)).Run(ctx, periods(t, "2023Q4", "2024Q1"))
	require.NoError(t, err, "item failures are not fatal to the run")

	assert.Equal(t, CategoryResult{Planned: 1, Succeeded: 1}, result.Bulk)
	assert.Equal(t, CategoryResult{Planned: 3, Succeeded: 1, Failed: 2}, result.Documents)
	assert.ElementsMatch(t, []string{"b.TXT", "c.txt"}, reporter.failed)

	assert.True(t, f.store.IsProcessed(core.CategoryBulk, "", "2023_Q4"))
	assert.True(t, f.store.IsProcessed(core.CategoryDocument, "2024_Q1", "a.txt"))
	assert.False(t, f.store.IsProcessed(core.CategoryDocument, "2024_Q1", "b.TXT"))
	assert.False(t, f.store.IsProcessed(core.CategoryDocument, "2024_Q1", "c.txt"))
	_, failed := f.store.Summary().Totals(core.CategoryDocument)
	assert.Equal(t, 2, failed)

	// The filing row of the mid-insert failure was rolled back with its holdings
	assert.Equal(t, storage.Counts{Filings: 2, Holdings: 3}, f.counts(t))

	// A later run retries only the failed items
	f.docs.fail = nil
	result, err = f.pipeline(t, f.repo).Run(ctx, periods(t, "2023Q4", "2024Q1"))
	require.NoError(t, err)
	assert.Zero(t, result.Bulk.Planned)
	assert.Equal(t, CategoryResult{Planned: 2, Succeeded: 2}, result.Documents)
	assert.Equal(t, storage.Counts{Filings: 4, Holdings: 5}, f.counts(t))

	_, failed = f.store.Summary().Totals(core.CategoryDocument)
	assert.Zero(t, failed)
}

func TestPipeline_PanicBecomesItemFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.docs.panics = map[string]bool{"a.txt": true}
	reporter := &recordingReporter{}

	result, err := f.pipeline(t, f.repo, WithReporter(reporter)).Run(context.Background(), periods(t, "2024Q1", "2024Q1"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Documents.Failed)
	assert.Equal(t, 2, result.Documents.Succeeded)
	assert.Equal(t, []string{"a.txt"}, reporter.failed)
	assert.False(t, f.store.IsProcessed(core.CategoryDocument, "2024_Q1", "a.txt"))
}

func TestPipeline_ExistingFilingSkipsHoldings(t *testing.T) {
	f := newPipelineFixture(t)
	f.docs.accession = map[string]string{"a.txt": "shared", "b.TXT": "shared", "c.txt": "shared"}

	result, err := f.pipeline(t, f.repo, WithPoolSize(1)).Run(context.Background(), periods(t, "2024Q1", "2024Q1"))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Documents.Succeeded)
	assert.Equal(t, int64(1), result.FilingsInserted)
	assert.Equal(t, storage.Counts{Filings: 1, Holdings: 1}, f.counts(t))
}

func TestPipeline_CanceledContext(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.pipeline(t, f.repo).Run(ctx, periods(t, "2023Q3", "2024Q1"))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, result.Total().Succeeded)
	assert.Equal(t, storage.Counts{}, f.counts(t))
}

// closedStore rejects every mutation.
type closedStore struct {
	progress.Store
}

func (closedStore) MarkProcessed(core.Category, string, string) error { return progress.ErrStoreClosed }
func (closedStore) MarkFailed(core.Category, string, string) error    { return progress.ErrStoreClosed }

func TestPipeline_StoreWriteErrorIsFatal(t *testing.T) {
	f := newPipelineFixture(t)
	enumerator := NewEnumerator(f.layout.bulkDir, f.layout.documentDir, f.store)
	p, err := NewPipeline(f.repo, closedStore{Store: f.store}, enumerator,
		WithPoolSize(1), WithBulkParser(fakeBulkParser{}), WithDocumentParser(f.docs))
	require.NoError(t, err)
	defer p.Release()

	_, err = p.Run(context.Background(), periods(t, "2023Q3", "2024Q1"))
	require.ErrorIs(t, err, progress.ErrStoreClosed)
}

func TestPipeline_DefaultParsers(t *testing.T) {
	root := t.TempDir()
	bulkDir := filepath.Join(root, "structured")
	docDir := filepath.Join(root, "documents")
	folder := filepath.Join(bulkDir, "2023_Q4")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(docDir, "2024_Q1"), 0o755))

	tsv := map[string][]string{
		source.SubmissionFile:  {"ACCESSION_NUMBER\tCIK\tPERIODOFREPORT", "A-1\t1\t31-DEC-2023"},
		source.CoverPageFile:   {"ACCESSION_NUMBER\tFILINGMANAGER_NAME", "A-1\tFund"},
		source.SummaryPageFile: {"ACCESSION_NUMBER\tTABLEENTRYTOTAL", "A-1\t1"},
		source.InfoTableFile:   {"ACCESSION_NUMBER\tCUSIP\tTITLEOFCLASS", "A-1\t037833100\tcom"},
	}
	for name, lines := range tsv {
		require.NoError(t, os.WriteFile(filepath.Join(folder, name), []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	}
	doc := "ACCESSION NUMBER: D-1\n<ACCEPTANCE-DATETIME>20240501120000\n" +
		"<XML><edgarSubmission><cik>2</cik></edgarSubmission></XML>\n" +
		"<XML><informationTable><infoTable><cusip>594918104</cusip></infoTable></informationTable></XML>\n"
	require.NoError(t, os.WriteFile(filepath.Join(docDir, "2024_Q1", "D-1.txt"), []byte(doc), 0o644))

	repo, err := sqldb.NewMemoryRepository()
	require.NoError(t, err)
	defer repo.Close()
	store := newFileStore(t)

	p, err := NewPipeline(repo, store, NewEnumerator(bulkDir, docDir, store), WithPoolSize(2))
	require.NoError(t, err)
	defer p.Release()

	result, err := p.Run(context.Background(), periods(t, "2023Q4", "2024Q1"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total().Succeeded)

	counts, err := repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Filings: 2, Holdings: 2}, counts)
}

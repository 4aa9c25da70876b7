package thirteenf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/thirteenf/config"
	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/metrics"
	"github.com/poiesic/thirteenf/remediate"
	"github.com/poiesic/thirteenf/source"
	"github.com/poiesic/thirteenf/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

const document = `<SEC-DOCUMENT>
<SEC-HEADER>
ACCESSION NUMBER:		0000000009-24-000001
</SEC-HEADER>
<ACCEPTANCE-DATETIME>20240514093000
<DOCUMENT><TEXT><XML>
<edgarSubmission>
  <headerData>
    <submissionType>13F-HR</submissionType>
    <filerInfo>
      <filer><credentials><cik>9</cik></credentials></filer>
      <periodOfReport>03-31-2024</periodOfReport>
    </filerInfo>
  </headerData>
  <formData>
    <coverPage><filingManager><name>Small Fund</name></filingManager></coverPage>
    <summaryPage><tableEntryTotal>1</tableEntryTotal></summaryPage>
  </formData>
</edgarSubmission>
</XML></TEXT></DOCUMENT>
<DOCUMENT><TEXT><XML>
<informationTable>
  <infoTable>
    <nameOfIssuer>Microsoft Corp</nameOfIssuer>
    <titleOfClass>COM</titleOfClass>
    <cusip>594918104</cusip>
    <value>10</value>
    <shrsOrPrnAmt><sshPrnamt>5</sshPrnamt><sshPrnamtType>SH</sshPrnamtType></shrsOrPrnAmt>
  </infoTable>
</informationTable>
</XML></TEXT></DOCUMENT>
</SEC-DOCUMENT>`

// newConfig lays out one bulk folder, one document and a reference file.
func newConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	bulk := filepath.Join(root, "structured", "2023_Q4")
	writeFile(t, filepath.Join(bulk, source.SubmissionFile),
		"ACCESSION_NUMBER\tFILING_DATE\tSUBMISSIONTYPE\tCIK\tPERIODOFREPORT",
		"0001-24-000001\t14-FEB-2024\t13F-HR\t1067983\t31-DEC-2023",
		"0001-24-000002\t14-FEB-2024\t13F-NT\t102909\t31-DEC-2023",
	)
	writeFile(t, filepath.Join(bulk, source.CoverPageFile),
		"ACCESSION_NUMBER\tFILINGMANAGER_NAME",
		"0001-24-000001\tBerkshire Hathaway Inc",
	)
	writeFile(t, filepath.Join(bulk, source.SummaryPageFile),
		"ACCESSION_NUMBER\tTABLEENTRYTOTAL",
		"0001-24-000001\t3",
	)
	writeFile(t, filepath.Join(bulk, source.InfoTableFile),
		"ACCESSION_NUMBER\tNAMEOFISSUER\tTITLEOFCLASS\tCUSIP\tPUTCALL",
		"0001-24-000001\tApple Inc\tCOM\t37833100\t",
		"0001-24-000001\tChevron Corp\tCOM\t166764100\tPut",
		"0001-24-000001\tMicrosoft Corp\t594918104\tCOMMON STOCK\t",
	)
	writeFile(t, filepath.Join(root, "filings", "2024_Q1", "0000000009-24-000001.txt"), document)
	writeFile(t, filepath.Join(root, "ref.csv"), "cusip", "037833100", "594918104", "166764100")

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.DSN = filepath.Join(root, "warehouse.db")
	cfg.Paths.BulkDir = filepath.Join(root, "structured")
	cfg.Paths.DocumentDir = filepath.Join(root, "filings")
	cfg.Paths.ProgressFile = filepath.Join(root, "progress.json")
	cfg.Paths.ReferenceFile = filepath.Join(root, "ref.csv")
	cfg.Ingestion.Workers = 2
	return cfg
}

func TestWarehouse_IngestAndRemediate(t *testing.T) {
	ctx := context.Background()
	rec := metrics.NewRecorder()
	w, err := Open(ctx, newConfig(t), WithMetrics(rec))
	require.NoError(t, err)
	defer w.Close()

	periods, err := core.QuarterRange(core.Period{Year: 2023, Quarter: 4}, core.Period{Year: 2024, Quarter: 1})
	require.NoError(t, err)

	pipeline, err := w.NewPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	result, err := pipeline.Run(ctx, periods)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Bulk.Succeeded)
	assert.Equal(t, 1, result.Documents.Succeeded)
	assert.Zero(t, result.Total().Failed)
	assert.Equal(t, int64(3), result.FilingsInserted)
	assert.Equal(t, int64(4), result.HoldingsInserted)

	// Everything is recorded as processed
	again, err := pipeline.Run(ctx, periods)
	require.NoError(t, err)
	assert.Zero(t, again.Total().Planned)

	runner, err := w.NewRemediator()
	require.NoError(t, err)
	report, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Rows(remediate.StepDropNoticeFilings))
	assert.Equal(t, int64(1), report.Rows(remediate.StepDropOptions))
	require.NotNil(t, report.Reconcile)
	assert.Equal(t, int64(1), report.Reconcile.TitleSwaps)
	assert.Equal(t, int64(1), report.Reconcile.RowsRemapped)

	status, err := w.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Filings: 2, Holdings: 3}, status.Counts)
	processed, failed := status.Progress.Totals(core.CategoryDocument)
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)

	families, err := rec.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestWarehouse_RemediatorWithoutReference(t *testing.T) {
	cfg := newConfig(t)
	cfg.Paths.ReferenceFile = ""
	w, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer w.Close()

	runner, err := w.NewRemediator()
	require.NoError(t, err)
	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report.Reconcile)
}

func TestOpen_Errors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.Database.Driver = "oracle"
		_, err := Open(context.Background(), cfg)
		require.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("progress store", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.Ingestion.ProgressBackend = "badger"
		// badger needs a directory
		cfg.Paths.ProgressFile = cfg.Paths.ReferenceFile
		_, err := Open(context.Background(), cfg)
		require.Error(t, err)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.Paths.OverridesFile = filepath.Join(t.TempDir(), "bad.yaml")
		writeFile(t, cfg.Paths.OverridesFile, "delete: [{cik: x, period: 2020-12-31}]")
		w, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		defer w.Close()
		_, err = w.NewRemediator()
		require.ErrorIs(t, err, remediate.ErrInvalidOverride)
	})
}

package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTSV(t *testing.T, dir, name string, rows ...[]string) {
	t.Helper()
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644))
}

func writeBulkFolder(t *testing.T, withManagers bool) string {
	t.Helper()
	dir := t.TempDir()
	writeTSV(t, dir, SubmissionFile,
		[]string{"ACCESSION_NUMBER", "FILING_DATE", "SUBMISSIONTYPE", "CIK", "PERIODOFREPORT"},
		[]string{"0001-23-000001", "14-FEB-2023", "13F-HR", "1067983", "31-DEC-2022"},
		[]string{"0001-23-000002", "15-FEB-2023", "13F-NT", "0000102909", "31-DEC-2022"},
		[]string{"0001-23-000001", "14-FEB-2023", "13F-HR", "1067983", "31-DEC-2022"},
	)
	writeTSV(t, dir, CoverPageFile,
		[]string{"accession_number", "ISAMENDMENT", "AMENDMENTNO", "AMENDMENTTYPE", "FILINGMANAGER_NAME", "FILINGMANAGER_CITY", "REPORTCALENDARORQUARTER"},
		[]string{"0001-23-000001", "Y", "1", "RESTATEMENT", "Berkshire Hathaway Inc", "Omaha", "31-DEC-2022"},
	)
	writeTSV(t, dir, SummaryPageFile,
		[]string{"ACCESSION_NUMBER", "OTHERINCLUDEDMANAGERSCOUNT", "TABLEENTRYTOTAL", "TABLEVALUETOTAL", "ISCONFIDENTIALOMITTED"},
		[]string{"0001-23-000001", "2", "2", "1,234,567", "N"},
	)
	if withManagers {
		writeTSV(t, dir, OtherManagerFile,
			[]string{"ACCESSION_NUMBER", "SEQUENCENUMBER", "CIK", "FORM13FFILENUMBER", "NAME"},
			[]string{"0001-23-000001", "1", "0000200001", "028-00001", "National Indemnity"},
			[]string{"0001-23-000001", "2", "", "028-00002", "GEICO"},
		)
	}
	writeTSV(t, dir, InfoTableFile,
		[]string{"ACCESSION_NUMBER", "NAMEOFISSUER", "TITLEOFCLASS", "CUSIP", "VALUE", "SSHPRNAMT", "SSHPRNAMTTYPE", "PUTCALL", "INVESTMENTDISCRETION", "VOTING_AUTH_SOLE", "VOTING_AUTH_SHARED", "VOTING_AUTH_NONE"},
		[]string{"0001-23-000001", " Apple Inc ", "com", "037833100", "100", "1,000", " SH ", "", " DFND ", "1000", "0", "0"},
		[]string{"0001-23-000001", "Alphabet Inc", "cap stk cl a", "02079k305", "50.5", "10", "SH", "Call", "SOLE", "10.0", "", "x"},
	)
	return dir
}

func TestBulkReader_Parse(t *testing.T) {
	dir := writeBulkFolder(t, true)

	folder, err := NewBulkReader().Parse(dir)
	require.NoError(t, err)
	require.Len(t, folder.Filings, 2, "duplicate submission rows collapse")

	f := folder.Filings[0]
	assert.Equal(t, "0001-23-000001", f.AccessionNumber)
	assert.Equal(t, "0001067983", f.CIK)
	assert.Equal(t, time.Date(2023, time.February, 14, 0, 0, 0, 0, time.UTC), f.FilingDate)
	assert.Equal(t, time.Date(2022, time.December, 31, 0, 0, 0, 0, time.UTC), f.PeriodOfReport)
	assert.True(t, f.IsAmendment)
	assert.Equal(t, 1, f.AmendmentNo)
	assert.Equal(t, "RESTATEMENT", f.AmendmentType)
	assert.Equal(t, "Berkshire Hathaway Inc", f.FilingManagerName)
	assert.Equal(t, "Omaha", f.FilingManagerCity)
	assert.Equal(t, 2, f.TableEntryTotal)
	assert.Equal(t, 1234567.0, f.TableValueTotal)
	assert.False(t, f.IsConfidentialOmitted)
	require.Len(t, f.OtherManagers, 2)
	assert.Equal(t, 2, f.OtherManagers[1].SequenceNumber)
	assert.Equal(t, "GEICO", f.OtherManagers[1].Name)

	// Left join: no cover or summary row leaves defaults
	nt := folder.Filings[1]
	assert.Equal(t, "13F-NT", nt.SubmissionType)
	assert.False(t, nt.IsAmendment)
	assert.Empty(t, nt.FilingManagerName)
	assert.Empty(t, nt.OtherManagers)

	require.Len(t, folder.Holdings, 2)
	h := folder.Holdings[0]
	assert.Equal(t, "0001-23-000001", h.AccessionNumber)
	assert.Zero(t, h.FilingID)
	assert.Equal(t, "APPLE INC", h.NameOfIssuer)
	assert.Equal(t, "COM", h.TitleOfClass)
	assert.Equal(t, "SH", h.SshPrnamtType)
	assert.Equal(t, "DFND", h.InvestmentDiscretion)
	assert.Equal(t, 1000.0, h.SshPrnamt)
	assert.Equal(t, int64(1000), h.VotingAuthSole)

	h = folder.Holdings[1]
	assert.Equal(t, "02079K305", h.CUSIP)
	assert.Equal(t, "CAP STK CL A", h.TitleOfClass)
	assert.Equal(t, "Call", h.PutCall)
	assert.Equal(t, int64(10), h.VotingAuthSole)
	assert.Zero(t, h.VotingAuthNone, "unparseable numbers default to zero")
}

func TestBulkReader_OtherManagersOptional(t *testing.T) {
	dir := writeBulkFolder(t, false)

	folder, err := NewBulkReader().Parse(dir)
	require.NoError(t, err)
	assert.Empty(t, folder.Filings[0].OtherManagers)
}

func TestBulkReader_MissingRequiredTable(t *testing.T) {
	dir := writeBulkFolder(t, true)
	require.NoError(t, os.Remove(filepath.Join(dir, InfoTableFile)))

	_, err := NewBulkReader().Parse(dir)
	require.ErrorIs(t, err, ErrMissingFile)
}

func TestBulkReader_MissingAccessionColumn(t *testing.T) {
	dir := writeBulkFolder(t, true)
	writeTSV(t, dir, SubmissionFile, []string{"CIK"}, []string{"1"})

	_, err := NewBulkReader().Parse(dir)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestCoercion(t *testing.T) {
	assert.Equal(t, time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC), parseDate(bulkDateLayout, "31-MAR-2023"))
	assert.True(t, parseDate(bulkDateLayout, "not a date").IsZero())
	assert.True(t, parseDate(documentDateLayout, "").IsZero())
	assert.Equal(t, int64(12), parseInt("12.0"))
	assert.Equal(t, int64(1200), parseInt("1,200"))
	assert.Zero(t, parseInt(""))
	assert.Equal(t, 0.5, parseFloat(" .5 "))
	assert.Zero(t, parseFloat("n/a"))
}

package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/thirteenf/core"
)

// Bulk table file names.
const (
	SubmissionFile   = "SUBMISSION.tsv"
	CoverPageFile    = "COVERPAGE.tsv"
	SummaryPageFile  = "SUMMARYPAGE.tsv"
	OtherManagerFile = "OTHERMANAGER2.tsv"
	InfoTableFile    = "INFOTABLE.tsv"
)

const accessionColumn = "ACCESSION_NUMBER"

// BulkFolder is the parsed content of one bulk folder.
type BulkFolder struct {
	Filings  []*core.Filing
	Holdings []*core.Holding // FilingID unset; resolve by AccessionNumber
}

// BulkReader parses bulk tabular folders.
type BulkReader struct{}

// NewBulkReader creates a BulkReader.
func NewBulkReader() *BulkReader {
	return &BulkReader{}
}

// table is a header-indexed tab-separated file.
type table struct {
	name string
	cols map[string]int
	rows [][]string
}

func (t *table) get(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.cols[c]; !ok {
			return fmt.Errorf("%w: %s in %s", ErrMissingColumn, c, t.name)
		}
	}
	return nil
}

// byAccession indexes rows by accession number, keeping the first row.
func (t *table) byAccession() map[string][]string {
	idx := make(map[string][]string, len(t.rows))
	for _, row := range t.rows {
		key := t.get(row, accessionColumn)
		if _, ok := idx[key]; !ok {
			idx[key] = row
		}
	}
	return idx
}

func readTable(dir, name string, optional bool) (*table, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		if optional {
			return &table{name: name, cols: map[string]int{}}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, filepath.Join(dir, name))
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeTable(name, f)
}

func decodeTable(name string, r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &table{name: name, cols: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}

	t := &table{name: name, cols: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		t.cols[h] = i
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// Parse reads the tables of one bulk folder, left-joins the per-filing
// tables onto SUBMISSION and converts the rows to records.
func (r *BulkReader) Parse(dir string) (*BulkFolder, error) {
	submissions, err := readTable(dir, SubmissionFile, false)
	if err != nil {
		return nil, err
	}
	if err := submissions.require(accessionColumn); err != nil {
		return nil, err
	}
	cover, err := readTable(dir, CoverPageFile, false)
	if err != nil {
		return nil, err
	}
	summary, err := readTable(dir, SummaryPageFile, false)
	if err != nil {
		return nil, err
	}
	managers, err := readTable(dir, OtherManagerFile, true)
	if err != nil {
		return nil, err
	}
	info, err := readTable(dir, InfoTableFile, false)
	if err != nil {
		return nil, err
	}
	if err := info.require(accessionColumn); err != nil {
		return nil, err
	}

	return joinBulk(submissions, cover, summary, managers, info)
}

func joinBulk(submissions, cover, summary, managers, info *table) (*BulkFolder, error) {
	coverRows := cover.byAccession()
	summaryRows := summary.byAccession()

	others := make(map[string][]core.OtherManager)
	for _, row := range managers.rows {
		key := managers.get(row, accessionColumn)
		others[key] = append(others[key], core.OtherManager{
			SequenceNumber:    int(parseInt(managers.get(row, "SEQUENCENUMBER"))),
			CIK:               managers.get(row, "CIK"),
			Form13FFileNumber: managers.get(row, "FORM13FFILENUMBER"),
			CRDNumber:         managers.get(row, "CRDNUMBER"),
			SECFileNumber:     managers.get(row, "SECFILENUMBER"),
			Name:              managers.get(row, "NAME"),
		})
	}

	out := &BulkFolder{Filings: make([]*core.Filing, 0, len(submissions.rows))}
	seen := make(map[string]struct{}, len(submissions.rows))
	for _, row := range submissions.rows {
		accession := submissions.get(row, accessionColumn)
		if _, dup := seen[accession]; dup {
			continue
		}
		seen[accession] = struct{}{}

		f := &core.Filing{
			AccessionNumber: accession,
			CIK:             core.PadCIK(submissions.get(row, "CIK")),
			SubmissionType:  submissions.get(row, "SUBMISSIONTYPE"),
			FilingDate:      parseDate(bulkDateLayout, submissions.get(row, "FILING_DATE")),
			PeriodOfReport:  parseDate(bulkDateLayout, submissions.get(row, "PERIODOFREPORT")),
			OtherManagers:   others[accession],
		}
		if c, ok := coverRows[accession]; ok {
			applyCoverPage(f, cover, c)
		}
		if s, ok := summaryRows[accession]; ok {
			f.OtherIncludedManagersCount = int(parseInt(summary.get(s, "OTHERINCLUDEDMANAGERSCOUNT")))
			f.TableEntryTotal = int(parseInt(summary.get(s, "TABLEENTRYTOTAL")))
			f.TableValueTotal = parseFloat(summary.get(s, "TABLEVALUETOTAL"))
			f.IsConfidentialOmitted = summary.get(s, "ISCONFIDENTIALOMITTED") == "Y"
		}
		if err := core.ValidateFiling(f); err != nil {
			return nil, err
		}
		out.Filings = append(out.Filings, f)
	}

	out.Holdings = make([]*core.Holding, 0, len(info.rows))
	for _, row := range info.rows {
		h := &core.Holding{
			AccessionNumber:      info.get(row, accessionColumn),
			NameOfIssuer:         info.get(row, "NAMEOFISSUER"),
			TitleOfClass:         info.get(row, "TITLEOFCLASS"),
			CUSIP:                info.get(row, "CUSIP"),
			Value:                parseFloat(info.get(row, "VALUE")),
			SshPrnamt:            parseFloat(info.get(row, "SSHPRNAMT")),
			SshPrnamtType:        info.get(row, "SSHPRNAMTTYPE"),
			PutCall:              info.get(row, "PUTCALL"),
			InvestmentDiscretion: info.get(row, "INVESTMENTDISCRETION"),
			OtherManager:         info.get(row, "OTHERMANAGER"),
			VotingAuthSole:       parseInt(info.get(row, "VOTING_AUTH_SOLE")),
			VotingAuthShared:     parseInt(info.get(row, "VOTING_AUTH_SHARED")),
			VotingAuthNone:       parseInt(info.get(row, "VOTING_AUTH_NONE")),
		}
		h.NormalizeIdentity()
		out.Holdings = append(out.Holdings, h)
	}
	return out, nil
}

func applyCoverPage(f *core.Filing, t *table, row []string) {
	f.ReportCalendarOrQuarter = parseDate(bulkDateLayout, t.get(row, "REPORTCALENDARORQUARTER"))
	f.IsAmendment = t.get(row, "ISAMENDMENT") == "Y"
	f.AmendmentNo = int(parseInt(t.get(row, "AMENDMENTNO")))
	f.AmendmentType = t.get(row, "AMENDMENTTYPE")
	f.ConfDeniedExpired = t.get(row, "CONFDENIEDEXPIRED") == "Y"
	f.DateDeniedExpired = parseDate(bulkDateLayout, t.get(row, "DATEDENIEDEXPIRED"))
	f.DateReported = parseDate(bulkDateLayout, t.get(row, "DATEREPORTED"))
	f.ReasonForNonConfidentiality = t.get(row, "REASONFORNONCONFIDENTIALITY")
	f.FilingManagerName = t.get(row, "FILINGMANAGER_NAME")
	f.FilingManagerStreet1 = t.get(row, "FILINGMANAGER_STREET1")
	f.FilingManagerStreet2 = t.get(row, "FILINGMANAGER_STREET2")
	f.FilingManagerCity = t.get(row, "FILINGMANAGER_CITY")
	f.FilingManagerStateOrCountry = t.get(row, "FILINGMANAGER_STATEORCOUNTRY")
	f.FilingManagerZipCode = t.get(row, "FILINGMANAGER_ZIPCODE")
	f.ReportType = t.get(row, "REPORTTYPE")
	f.Form13FFileNumber = t.get(row, "FORM13FFILENUMBER")
	f.CRDNumber = t.get(row, "CRDNUMBER")
	f.SECFileNumber = t.get(row, "SECFILENUMBER")
	f.ProvideInfoForInstruction5 = t.get(row, "PROVIDEINFOFORINSTRUCTION5") == "Y"
	f.AdditionalInformation = t.get(row, "ADDITIONALINFORMATION")
}

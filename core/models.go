package core

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// CIKWidth is the fixed width of a filer identifier after zero padding.
const CIKWidth = 10

// Fingerprint returns a short deterministic hex digest of the given parts.
// It is used to correlate log lines belonging to one run.
func Fingerprint(parts ...string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PadCIK trims a filer identifier and left-pads it with zeros to CIKWidth.
// Identifiers that are already CIKWidth or wider are returned trimmed.
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if cik == "" || len(cik) >= CIKWidth {
		return cik
	}
	return strings.Repeat("0", CIKWidth-len(cik)) + cik
}

// OtherManager is one "other included manager" entry of a filing's cover page.
// Filings carry these as a serialized list rather than a normalized table.
type OtherManager struct {
	SequenceNumber    int    `json:"sequenceNumber,omitempty"`
	CIK               string `json:"cik,omitempty"`
	Form13FFileNumber string `json:"form13FFileNumber,omitempty"`
	CRDNumber         string `json:"crdNumber,omitempty"`
	SECFileNumber     string `json:"secFileNumber,omitempty"`
	Name              string `json:"name,omitempty"`
}

// Filing is one regulatory holdings submission.
//
// Optional text fields use the empty string for "absent" and optional dates
// use the zero time. Both are persisted as NULL.
type Filing struct {
	ID                          int64 // Surrogate id assigned by the store
	AccessionNumber             string
	CIK                         string
	FilingManagerName           string
	SubmissionType              string
	FilingDate                  time.Time
	PeriodOfReport              time.Time
	ReportCalendarOrQuarter     time.Time
	IsAmendment                 bool
	AmendmentNo                 int
	AmendmentType               string
	ConfDeniedExpired           bool
	DateDeniedExpired           time.Time
	DateReported                time.Time
	ReasonForNonConfidentiality string
	FilingManagerStreet1        string
	FilingManagerStreet2        string
	FilingManagerCity           string
	FilingManagerStateOrCountry string
	FilingManagerZipCode        string
	OtherIncludedManagersCount  int
	TableEntryTotal             int
	TableValueTotal             float64
	IsConfidentialOmitted       bool
	ReportType                  string
	Form13FFileNumber           string
	CRDNumber                   string
	SECFileNumber               string
	ProvideInfoForInstruction5  bool
	AdditionalInformation       string
	OtherManagers               []OtherManager
}

// Holding is one position line of a Filing.
type Holding struct {
	ID                   int64
	FilingID             int64
	AccessionNumber      string // Used to resolve FilingID; not persisted
	NameOfIssuer         string
	TitleOfClass         string
	CUSIP                string
	Value                float64
	SshPrnamt            float64
	SshPrnamtType        string
	PutCall              string
	InvestmentDiscretion string
	OtherManager         string
	VotingAuthSole       int64
	VotingAuthShared     int64
	VotingAuthNone       int64
}

// NormalizeIdentity trims and upper-cases the issuer name, class title and
// identifier code, the three fields identifier reconciliation compares.
func (h *Holding) NormalizeIdentity() {
	h.NameOfIssuer = strings.ToUpper(strings.TrimSpace(h.NameOfIssuer))
	h.TitleOfClass = strings.ToUpper(strings.TrimSpace(h.TitleOfClass))
	h.CUSIP = strings.ToUpper(strings.TrimSpace(h.CUSIP))
}

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

package source

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/thirteenf/core"
)

var (
	fragmentPattern   = regexp.MustCompile(`(?s)<XML>(.*?)</XML>`)
	accessionPattern  = regexp.MustCompile(`ACCESSION NUMBER:\s+(\S+)`)
	acceptancePattern = regexp.MustCompile(`<ACCEPTANCE-DATETIME>(\d+)`)
)

// Document is one parsed per-document filing.
type Document struct {
	Filing   *core.Filing
	Holdings []*core.Holding
}

// DocumentReader parses individual filing documents. Element lookups
// match local names so namespace prefixes in the source do not matter.
type DocumentReader struct{}

// NewDocumentReader creates a DocumentReader.
func NewDocumentReader() *DocumentReader {
	return &DocumentReader{}
}

// Parse reads and parses the document at path.
func (r *DocumentReader) Parse(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := r.ParseBytes(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// ParseBytes parses document content. The first <XML> fragment is the
// primary filing and the second is the holdings table.
func (r *DocumentReader) ParseBytes(content []byte) (*Document, error) {
	fragments := fragmentPattern.FindAllSubmatch(content, -1)
	if len(fragments) < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrMissingFragments, len(fragments))
	}

	accession := accessionPattern.FindSubmatch(content)
	if accession == nil {
		return nil, fmt.Errorf("%w: accession number", ErrMissingHeaderField)
	}
	acceptance := acceptancePattern.FindSubmatch(content)
	if acceptance == nil {
		return nil, fmt.Errorf("%w: acceptance datetime", ErrMissingHeaderField)
	}
	accepted, err := time.Parse(acceptanceLayout, string(acceptance[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: acceptance datetime %q", ErrMissingHeaderField, acceptance[1])
	}

	primary, err := parseNode(fragments[0][1])
	if err != nil {
		return nil, fmt.Errorf("primary fragment: %w", err)
	}
	infoTable, err := parseNode(fragments[1][1])
	if err != nil {
		return nil, fmt.Errorf("information table fragment: %w", err)
	}

	filing := primaryFiling(primary)
	filing.AccessionNumber = string(accession[1])
	filing.FilingDate = time.Date(accepted.Year(), accepted.Month(), accepted.Day(), 0, 0, 0, 0, time.UTC)
	if err := core.ValidateFiling(filing); err != nil {
		return nil, err
	}

	var holdings []*core.Holding
	for _, entry := range infoTable.findAll("infoTable") {
		h := infoTableHolding(entry)
		h.AccessionNumber = filing.AccessionNumber
		holdings = append(holdings, h)
	}
	return &Document{Filing: filing, Holdings: holdings}, nil
}

func primaryFiling(doc *node) *core.Filing {
	f := &core.Filing{
		CIK:                         core.PadCIK(doc.findText("cik")),
		SubmissionType:              doc.findText("submissionType"),
		PeriodOfReport:              parseDate(documentDateLayout, doc.findText("periodOfReport")),
		ReportCalendarOrQuarter:     parseDate(documentDateLayout, doc.findText("reportCalendarOrQuarter")),
		IsAmendment:                 isTrue(doc.findText("isAmendment")),
		AmendmentNo:                 int(parseInt(doc.findText("amendmentNumber"))),
		AmendmentType:               doc.findText("amendmentType"),
		ConfDeniedExpired:           isTrue(doc.findText("confDeniedExpired")),
		DateDeniedExpired:           parseDate(documentDateLayout, doc.findText("dateDeniedExpired")),
		DateReported:                parseDate(documentDateLayout, doc.findText("dateReported")),
		ReasonForNonConfidentiality: doc.findText("reasonForNonConfidentiality"),
		OtherIncludedManagersCount:  int(parseInt(doc.findText("otherIncludedManagersCount"))),
		TableEntryTotal:             int(parseInt(doc.findText("tableEntryTotal"))),
		TableValueTotal:             parseFloat(doc.findText("tableValueTotal")),
		IsConfidentialOmitted:       isTrue(doc.findText("isConfidentialOmitted")),
		ReportType:                  doc.findText("reportType"),
		Form13FFileNumber:           doc.findText("form13FFileNumber"),
		CRDNumber:                   doc.findText("crdNumber"),
		SECFileNumber:               doc.findText("secFileNumber"),
		ProvideInfoForInstruction5:  isTrue(doc.findText("provideInfoForInstruction5")),
		AdditionalInformation:       doc.findText("additionalInformation"),
	}

	// Manager identity lives under filingManager; fall back to the first
	// matching element anywhere in the fragment.
	manager := doc.find("filingManager")
	if manager == nil {
		manager = doc
	}
	f.FilingManagerName = manager.findText("name")
	f.FilingManagerStreet1 = manager.findText("street1")
	f.FilingManagerStreet2 = manager.findText("street2")
	f.FilingManagerCity = manager.findText("city")
	f.FilingManagerStateOrCountry = manager.findText("stateOrCountry")
	f.FilingManagerZipCode = manager.findText("zipCode")

	f.OtherManagers = otherManagers(doc)
	return f
}

// otherManagers reads the numbered summary-page list, falling back to the
// cover-page list when the summary page has none.
func otherManagers(doc *node) []core.OtherManager {
	var out []core.OtherManager
	for _, entry := range doc.findAll("otherManager2") {
		om := managerFields(entry.child("otherManager"))
		om.SequenceNumber = int(parseInt(entry.childText("sequenceNumber")))
		out = append(out, om)
	}
	if len(out) > 0 {
		return out
	}
	if info := doc.find("otherManagersInfo"); info != nil {
		for _, entry := range info.children {
			if entry.name == "otherManager" {
				out = append(out, managerFields(entry))
			}
		}
	}
	return out
}

func managerFields(n *node) core.OtherManager {
	return core.OtherManager{
		CIK:               n.childText("cik"),
		Form13FFileNumber: n.childText("form13FFileNumber"),
		CRDNumber:         n.childText("crdNumber"),
		SECFileNumber:     n.childText("secFileNumber"),
		Name:              n.childText("name"),
	}
}

func infoTableHolding(entry *node) *core.Holding {
	h := &core.Holding{
		NameOfIssuer:         entry.childText("nameOfIssuer"),
		TitleOfClass:         entry.childText("titleOfClass"),
		CUSIP:                entry.childText("cusip"),
		Value:                parseFloat(entry.childText("value")),
		SshPrnamt:            parseFloat(entry.childText("shrsOrPrnAmt", "sshPrnamt")),
		SshPrnamtType:        entry.childText("shrsOrPrnAmt", "sshPrnamtType"),
		PutCall:              entry.childText("putCall"),
		InvestmentDiscretion: entry.childText("investmentDiscretion"),
		OtherManager:         entry.childText("otherManager"),
		VotingAuthSole:       parseInt(entry.childText("votingAuthority", "Sole")),
		VotingAuthShared:     parseInt(entry.childText("votingAuthority", "Shared")),
		VotingAuthNone:       parseInt(entry.childText("votingAuthority", "None")),
	}
	h.NormalizeIdentity()
	return h
}

func isTrue(s string) bool {
	return strings.EqualFold(s, "true")
}

// node is a minimal element tree keyed by local name.
type node struct {
	name     string
	text     string
	children []*node
}

func parseNode(fragment []byte) (*node, error) {
	d := xml.NewDecoder(bytes.NewReader(bytes.TrimSpace(fragment)))
	d.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var root *node
	var stack []*node
	var text strings.Builder
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			n := stack[len(stack)-1]
			if len(n.children) == 0 {
				n.text = strings.TrimSpace(text.String())
			}
			stack = stack[:len(stack)-1]
			text.Reset()
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedXML)
	}
	return root, nil
}

// find returns the first descendant named name in document order.
func (n *node) find(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

func (n *node) findAll(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
		out = append(out, c.findAll(name)...)
	}
	return out
}

func (n *node) findText(name string) string {
	if found := n.find(name); found != nil {
		return found.text
	}
	return ""
}

// child follows a path of direct children.
func (n *node) child(path ...string) *node {
	cur := n
	for _, name := range path {
		if cur == nil {
			return nil
		}
		var next *node
		for _, c := range cur.children {
			if c.name == name {
				next = c
				break
			}
		}
		cur = next
	}
	return cur
}

func (n *node) childText(path ...string) string {
	if n == nil {
		return ""
	}
	if c := n.child(path...); c != nil {
		return c.text
	}
	return ""
}

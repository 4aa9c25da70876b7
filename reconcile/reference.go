package reconcile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultIdentifierColumn is the reference file column holding codes.
const DefaultIdentifierColumn = "cusip"

// ReferenceSet is an immutable set of known-valid 9-character codes.
type ReferenceSet map[string]struct{}

// NewReferenceSet builds a set from codes, trimming and upper-casing each.
// Empty codes are ignored.
func NewReferenceSet(codes ...string) ReferenceSet {
	set := make(ReferenceSet, len(codes))
	for _, c := range codes {
		set.add(c)
	}
	return set
}

func (r ReferenceSet) add(code string) {
	code = normalize(code)
	if code != "" {
		r[code] = struct{}{}
	}
}

// Contains reports whether code is in the set.
func (r ReferenceSet) Contains(code string) bool {
	_, ok := r[code]
	return ok
}

// Len returns the number of codes.
func (r ReferenceSet) Len() int {
	return len(r)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ReferenceSource loads the trusted reference codes.
type ReferenceSource interface {
	LoadValidIdentifiers(ctx context.Context) (ReferenceSet, error)
}

// FileReferenceSource reads codes from one column of a delimited file with
// a header row.
type FileReferenceSource struct {
	path   string
	comma  rune
	column string
}

// FileOption configures a FileReferenceSource.
type FileOption func(*FileReferenceSource)

// WithComma sets the field delimiter. Default is ','.
func WithComma(comma rune) FileOption {
	return func(s *FileReferenceSource) {
		if comma != 0 {
			s.comma = comma
		}
	}
}

// WithColumn sets the identifier column name, matched case-insensitively.
func WithColumn(column string) FileOption {
	return func(s *FileReferenceSource) {
		if column != "" {
			s.column = column
		}
	}
}

// NewFileReferenceSource creates a source reading path.
func NewFileReferenceSource(path string, opts ...FileOption) *FileReferenceSource {
	s := &FileReferenceSource{path: path, comma: ',', column: DefaultIdentifierColumn}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadValidIdentifiers reads the file and returns its distinct codes.
func (s *FileReferenceSource) LoadValidIdentifiers(ctx context.Context) (ReferenceSet, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open reference file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrEmptyReferenceSet, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read reference header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), s.column) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrMissingIdentifierColumn, s.column, s.path)
	}

	set := make(ReferenceSet)
	for line := 2; ; line++ {
		if line%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read reference line %d: %w", line, err)
		}
		if col < len(record) {
			set.add(record[col])
		}
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyReferenceSet, s.path)
	}
	return set, nil
}

package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Category partitions work items by source format.
// The string values double as the progress document's top-level keys.
type Category string

const (
	// CategoryBulk identifies bulk tabular folders, one per period.
	CategoryBulk Category = "structured_data"
	// CategoryDocument identifies individual filing documents.
	CategoryDocument Category = "individual_filings"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryBulk || c == CategoryDocument
}

// Period is a calendar (year, quarter) pair.
type Period struct {
	Year    int
	Quarter int
}

// Key returns the period's folder and progress key, e.g. "2024_Q1".
func (p Period) Key() string {
	return fmt.Sprintf("%d_Q%d", p.Year, p.Quarter)
}

// String returns the period in command-line form, e.g. "2024Q1".
func (p Period) String() string {
	return fmt.Sprintf("%dQ%d", p.Year, p.Quarter)
}

// Validate checks the quarter is 1-4 and the year is plausible.
func (p Period) Validate() error {
	if p.Quarter < 1 || p.Quarter > 4 {
		return fmt.Errorf("%w: quarter %d", ErrInvalidPeriod, p.Quarter)
	}
	if p.Year < 1900 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// Next returns the following quarter.
func (p Period) Next() Period {
	if p.Quarter == 4 {
		return Period{Year: p.Year + 1, Quarter: 1}
	}
	return Period{Year: p.Year, Quarter: p.Quarter + 1}
}

// Before reports whether p precedes other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Quarter < other.Quarter
}

// ParsePeriod parses "2024Q1", "2024_Q1" or "2024-q1".
func ParsePeriod(s string) (Period, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "", "-", "").Replace(norm)
	year, quarter, ok := strings.Cut(norm, "Q")
	if !ok {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	q, err := strconv.Atoi(quarter)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	p := Period{Year: y, Quarter: q}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// QuarterRange returns every period from start to end inclusive.
func QuarterRange(start, end Period) ([]Period, error) {
	if err := start.Validate(); err != nil {
		return nil, err
	}
	if err := end.Validate(); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidPeriod, start, end)
	}

	var periods []Period
	for p := start; !end.Before(p); p = p.Next() {
		periods = append(periods, p)
	}
	return periods, nil
}

// WorkItem identifies one unit of ingestion work.
type WorkItem struct {
	Category Category
	Period   Period
	ID       string // Folder key for bulk items, file name for documents
	Path     string
}

// PeriodKey returns the progress key of the item's period.
func (w WorkItem) PeriodKey() string {
	return w.Period.Key()
}

// String returns a compact description for logs.
func (w WorkItem) String() string {
	return string(w.Category) + "/" + w.Period.Key() + "/" + w.ID
}

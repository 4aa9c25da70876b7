package source

import (
	"strconv"
	"strings"
	"time"
)

const (
	// bulkDateLayout is the date format of bulk tables, e.g. 31-DEC-2023.
	bulkDateLayout = "02-Jan-2006"
	// documentDateLayout is the date format inside documents, e.g. 12-31-2023.
	documentDateLayout = "01-02-2006"
	// acceptanceLayout is the header acceptance timestamp format.
	acceptanceLayout = "20060102150405"
)

// parseDate returns the zero time for empty or unparseable values.
func parseDate(layout, s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func cleanNumber(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

// parseInt returns 0 for empty or unparseable values. Integral floats such
// as "12.0" are accepted.
func parseInt(s string) int64 {
	s = cleanNumber(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// parseFloat returns 0 for empty or unparseable values.
func parseFloat(s string) float64 {
	s = cleanNumber(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

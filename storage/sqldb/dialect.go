package sqldb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/thirteenf/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// dateLayout is how SQLite stores dates. ISO dates compare correctly as text.
const dateLayout = "2006-01-02"

// dialect captures the differences between the supported databases.
type dialect struct {
	name       string
	driverName string
	// idColumn is the surrogate key column definition.
	idColumn string
	// padCIK is an expression left-padding cik to ten characters.
	padCIK string
	// dollarParams switches placeholders from ? to $n.
	dollarParams bool
	// nativeDates binds time.Time directly instead of ISO text.
	nativeDates bool
	// singleConn limits the pool to one connection.
	singleConn bool
}

var (
	sqliteDialect = dialect{
		name:       "sqlite",
		driverName: "sqlite",
		idColumn:   "id INTEGER PRIMARY KEY",
		padCIK:     "substr('0000000000' || cik, -10, 10)",
		singleConn: true,
	}
	postgresDialect = dialect{
		name:         "postgres",
		driverName:   "pgx",
		idColumn:     "id BIGSERIAL PRIMARY KEY",
		padCIK:       "LPAD(cik, 10, '0')",
		dollarParams: true,
		nativeDates:  true,
	}
)

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3", "":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("%w: %q", storage.ErrUnsupportedDriver, driver)
	}
}

// dataSource turns a user supplied DSN into the driver's form. SQLite paths
// get pragmas for foreign keys, a busy timeout and WAL journaling.
func (d dialect) dataSource(dsn string) string {
	if d.name != "sqlite" || strings.Contains(dsn, "?") {
		return dsn
	}
	if dsn == "" || dsn == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.dollarParams {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// date converts an optional date to a bind argument. The zero time is NULL.
func (d dialect) date(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if d.nativeDates {
		return day
	}
	return day.Format(dateLayout)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// placeholders returns "(?, ?, ?), (?, ?, ?)" for rows tuples of cols values.
func placeholders(rows, cols int) string {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	return strings.TrimSuffix(strings.Repeat(tuple+", ", rows), ", ")
}

// inList returns "?, ?, ?" for n values.
func inList(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// chunks splits items into consecutive slices of at most size elements.
func chunks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

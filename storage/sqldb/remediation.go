package sqldb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/thirteenf/storage"
)

// remapBatchSize bounds the WHEN arms of one CASE update.
const remapBatchSize = 200

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// IdentifierTriples returns distinct normalized identifier triples.
func (t *tx) IdentifierTriples(ctx context.Context) ([]storage.IdentifierTriple, error) {
	rows, err := t.query(ctx, `SELECT DISTINCT
	UPPER(TRIM(COALESCE(cusip, ''))),
	UPPER(TRIM(COALESCE(titleofclass, ''))),
	UPPER(TRIM(COALESCE(nameofissuer, '')))
FROM holdings`)
	if err != nil {
		return nil, fmt.Errorf("identifier triples: %w", err)
	}
	defer rows.Close()

	var triples []storage.IdentifierTriple
	for rows.Next() {
		var tr storage.IdentifierTriple
		if err := rows.Scan(&tr.CUSIP, &tr.TitleOfClass, &tr.NameOfIssuer); err != nil {
			return nil, err
		}
		triples = append(triples, tr)
	}
	return triples, rows.Err()
}

// SwapTitleIntoIdentifier exchanges cusip and titleofclass. Both engines
// evaluate SET expressions against the pre-update row.
func (t *tx) SwapTitleIntoIdentifier(ctx context.Context, titles []string) (int64, error) {
	var total int64
	for _, batch := range chunks(titles, lookupBatchSize) {
		n, err := t.exec(ctx, `UPDATE holdings
SET cusip = titleofclass, titleofclass = cusip
WHERE titleofclass IN (`+inList(len(batch))+`)`, stringArgs(batch)...)
		if err != nil {
			return total, fmt.Errorf("swap class title into identifier: %w", err)
		}
		total += n
	}
	return total, nil
}

// RotateIssuerIntoIdentifier rotates issuer name, class title and identifier.
func (t *tx) RotateIssuerIntoIdentifier(ctx context.Context, issuers []string) (int64, error) {
	var total int64
	for _, batch := range chunks(issuers, lookupBatchSize) {
		n, err := t.exec(ctx, `UPDATE holdings
SET cusip = nameofissuer, nameofissuer = titleofclass, titleofclass = cusip
WHERE nameofissuer IN (`+inList(len(batch))+`)`, stringArgs(batch)...)
		if err != nil {
			return total, fmt.Errorf("rotate issuer into identifier: %w", err)
		}
		total += n
	}
	return total, nil
}

// RemapIdentifiers applies mapping as chunked CASE updates.
func (t *tx) RemapIdentifiers(ctx context.Context, mapping map[string]string) (int64, error) {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var total int64
	for _, batch := range chunks(keys, remapBatchSize) {
		var b strings.Builder
		args := make([]any, 0, len(batch)*3)
		b.WriteString("UPDATE holdings SET cusip = CASE cusip")
		for _, k := range batch {
			b.WriteString(" WHEN ? THEN ?")
			args = append(args, k, mapping[k])
		}
		b.WriteString(" ELSE cusip END WHERE cusip IN (")
		b.WriteString(inList(len(batch)))
		b.WriteString(")")
		args = append(args, stringArgs(batch)...)

		n, err := t.exec(ctx, b.String(), args...)
		if err != nil {
			return total, fmt.Errorf("remap identifiers: %w", err)
		}
		total += n
	}
	return total, nil
}

// deleteFilingsWhere removes holdings and then filings matching cond.
// Holdings are deleted explicitly so the result does not depend on
// foreign key enforcement being enabled.
func (t *tx) deleteFilingsWhere(ctx context.Context, cond string, args ...any) (int64, error) {
	if _, err := t.exec(ctx, `DELETE FROM holdings WHERE filing_id IN (SELECT id FROM filings WHERE `+cond+`)`, args...); err != nil {
		return 0, err
	}
	return t.exec(ctx, `DELETE FROM filings WHERE `+cond, args...)
}

// DeleteFilingsBefore deletes filings reported before cutoff.
func (t *tx) DeleteFilingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := t.deleteFilingsWhere(ctx, `periodofreport < ?`, t.dialect.date(cutoff))
	if err != nil {
		return n, fmt.Errorf("delete filings before %s: %w", cutoff.Format(dateLayout), err)
	}
	return n, nil
}

// DeleteFilingsBySubmissionType deletes filings of the given types.
func (t *tx) DeleteFilingsBySubmissionType(ctx context.Context, types []string) (int64, error) {
	if len(types) == 0 {
		return 0, nil
	}
	n, err := t.deleteFilingsWhere(ctx, `submissiontype IN (`+inList(len(types))+`)`, stringArgs(types)...)
	if err != nil {
		return n, fmt.Errorf("delete filings by submission type: %w", err)
	}
	return n, nil
}

// PadCIKs left-pads short filer identifiers.
func (t *tx) PadCIKs(ctx context.Context) (int64, error) {
	n, err := t.exec(ctx, `UPDATE filings SET cik = `+t.dialect.padCIK+` WHERE LENGTH(cik) < 10`)
	if err != nil {
		return n, fmt.Errorf("pad ciks: %w", err)
	}
	return n, nil
}

// SetAmendmentType overrides the amendment type of the given filings.
func (t *tx) SetAmendmentType(ctx context.Context, accessions []string, amendmentType string) (int64, error) {
	var total int64
	for _, batch := range chunks(accessions, lookupBatchSize) {
		args := append([]any{nullString(amendmentType)}, stringArgs(batch)...)
		n, err := t.exec(ctx, `UPDATE filings SET amendmenttype = ? WHERE accession_number IN (`+inList(len(batch))+`)`, args...)
		if err != nil {
			return total, fmt.Errorf("set amendment type: %w", err)
		}
		total += n
	}
	return total, nil
}

// DeleteFilingsForPeriod deletes one filer's filings for a report period.
func (t *tx) DeleteFilingsForPeriod(ctx context.Context, cik string, period time.Time) (int64, error) {
	n, err := t.deleteFilingsWhere(ctx, `cik = ? AND periodofreport = ?`, cik, t.dialect.date(period))
	if err != nil {
		return n, fmt.Errorf("delete filings for %s %s: %w", cik, period.Format(dateLayout), err)
	}
	return n, nil
}

// SupersededFilingIDs finds filings replaced by a later one for the same
// filer and period.
func (t *tx) SupersededFilingIDs(ctx context.Context) ([]int64, error) {
	rows, err := t.query(ctx, `WITH summary AS (
	SELECT cik, periodofreport,
		MAX(CASE WHEN amendmenttype = 'RESTATEMENT' THEN filing_date END) AS latest_restatement,
		MAX(CASE WHEN amendmenttype IS NULL THEN filing_date END) AS latest_original
	FROM filings
	GROUP BY cik, periodofreport
)
SELECT f.id
FROM filings f
JOIN summary s ON f.cik = s.cik AND f.periodofreport = s.periodofreport
WHERE (f.amendmenttype = 'RESTATEMENT' AND f.filing_date < s.latest_restatement)
	OR (f.amendmenttype IS NULL AND s.latest_restatement IS NOT NULL)
	OR (f.amendmenttype IS NULL AND f.filing_date < s.latest_original)
ORDER BY f.id`)
	if err != nil {
		return nil, fmt.Errorf("superseded filings: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteFilings deletes filings and their holdings by id.
func (t *tx) DeleteFilings(ctx context.Context, ids []int64) (int64, error) {
	var total int64
	for _, batch := range chunks(ids, lookupBatchSize) {
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		n, err := t.deleteFilingsWhere(ctx, `id IN (`+inList(len(batch))+`)`, args...)
		if err != nil {
			return total, fmt.Errorf("delete filings: %w", err)
		}
		total += n
	}
	return total, nil
}

// DeleteOptionHoldings deletes holdings with a put/call flag.
func (t *tx) DeleteOptionHoldings(ctx context.Context) (int64, error) {
	n, err := t.exec(ctx, `DELETE FROM holdings WHERE putcall IS NOT NULL`)
	if err != nil {
		return n, fmt.Errorf("delete option holdings: %w", err)
	}
	return n, nil
}

// CountOrphanFilings counts filings declaring entries but holding none.
func (t *tx) CountOrphanFilings(ctx context.Context) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM filings f
WHERE f.tableentrytotal > 0
	AND NOT EXISTS (SELECT 1 FROM holdings h WHERE h.filing_id = f.id)`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orphan filings: %w", err)
	}
	return n, nil
}

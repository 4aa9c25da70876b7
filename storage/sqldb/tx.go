package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/storage"
)

const (
	// Row counts per multi-row statement, chosen to stay well under the
	// bind parameter limits of both SQLite and PostgreSQL.
	filingBatchSize  = 500
	holdingBatchSize = 1000
	lookupBatchSize  = 500
)

// tx implements storage.Tx on a database/sql transaction.
type tx struct {
	tx      *sql.Tx
	dialect dialect
}

var _ storage.Tx = (*tx)(nil)

func (t *tx) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.rebind(query), args...)
}

func (t *tx) filingArgs(f *core.Filing) ([]any, error) {
	managers := f.OtherManagers
	if managers == nil {
		managers = []core.OtherManager{}
	}
	encoded, err := json.Marshal(managers)
	if err != nil {
		return nil, fmt.Errorf("encode other managers for %s: %w", f.AccessionNumber, err)
	}

	d := t.dialect
	return []any{
		f.AccessionNumber,
		nullString(f.CIK),
		nullString(f.FilingManagerName),
		nullString(f.SubmissionType),
		d.date(f.FilingDate),
		d.date(f.PeriodOfReport),
		d.date(f.ReportCalendarOrQuarter),
		f.IsAmendment,
		f.AmendmentNo,
		nullString(f.AmendmentType),
		f.ConfDeniedExpired,
		d.date(f.DateDeniedExpired),
		d.date(f.DateReported),
		nullString(f.ReasonForNonConfidentiality),
		nullString(f.FilingManagerStreet1),
		nullString(f.FilingManagerStreet2),
		nullString(f.FilingManagerCity),
		nullString(f.FilingManagerStateOrCountry),
		nullString(f.FilingManagerZipCode),
		f.OtherIncludedManagersCount,
		f.TableEntryTotal,
		f.TableValueTotal,
		f.IsConfidentialOmitted,
		nullString(f.ReportType),
		nullString(f.Form13FFileNumber),
		nullString(f.CRDNumber),
		nullString(f.SECFileNumber),
		f.ProvideInfoForInstruction5,
		nullString(f.AdditionalInformation),
		string(encoded),
	}, nil
}

func holdingArgs(h *core.Holding) []any {
	return []any{
		h.FilingID,
		nullString(h.NameOfIssuer),
		nullString(h.TitleOfClass),
		nullString(h.CUSIP),
		h.Value,
		h.SshPrnamt,
		nullString(h.SshPrnamtType),
		nullString(h.PutCall),
		nullString(h.InvestmentDiscretion),
		nullString(h.OtherManager),
		h.VotingAuthSole,
		h.VotingAuthShared,
		h.VotingAuthNone,
	}
}

// InsertFilings inserts filings in multi-row batches with insert-or-ignore
// on the accession number.
func (t *tx) InsertFilings(ctx context.Context, filings []*core.Filing) (int64, error) {
	var inserted int64
	for _, batch := range chunks(filings, filingBatchSize) {
		args := make([]any, 0, len(batch)*len(filingColumns))
		for _, f := range batch {
			fa, err := t.filingArgs(f)
			if err != nil {
				return inserted, err
			}
			args = append(args, fa...)
		}
		query := fmt.Sprintf(`INSERT INTO filings (%s) VALUES %s ON CONFLICT (accession_number) DO NOTHING`,
			strings.Join(filingColumns, ", "), placeholders(len(batch), len(filingColumns)))
		n, err := t.exec(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("insert filings: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

// InsertFiling inserts one filing and returns its id, or inserted=false if
// the accession number already exists.
func (t *tx) InsertFiling(ctx context.Context, filing *core.Filing) (int64, bool, error) {
	args, err := t.filingArgs(filing)
	if err != nil {
		return 0, false, err
	}
	query := fmt.Sprintf(`INSERT INTO filings (%s) VALUES %s ON CONFLICT (accession_number) DO NOTHING RETURNING id`,
		strings.Join(filingColumns, ", "), placeholders(1, len(filingColumns)))

	var id int64
	err = t.tx.QueryRowContext(ctx, t.dialect.rebind(query), args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert filing %s: %w", filing.AccessionNumber, err)
	}
	return id, true, nil
}

// ResolveFilingIDs looks up surrogate ids in batches.
func (t *tx) ResolveFilingIDs(ctx context.Context, accessions []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(accessions))
	for _, batch := range chunks(accessions, lookupBatchSize) {
		args := make([]any, len(batch))
		for i, a := range batch {
			args[i] = a
		}
		rows, err := t.query(ctx,
			`SELECT accession_number, id FROM filings WHERE accession_number IN (`+inList(len(batch))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("resolve filing ids: %w", err)
		}
		for rows.Next() {
			var accession string
			var id int64
			if err := rows.Scan(&accession, &id); err != nil {
				rows.Close()
				return nil, err
			}
			ids[accession] = id
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// InsertHoldings inserts holdings in multi-row batches.
func (t *tx) InsertHoldings(ctx context.Context, holdings []*core.Holding) (int64, error) {
	var inserted int64
	for _, batch := range chunks(holdings, holdingBatchSize) {
		args := make([]any, 0, len(batch)*len(holdingColumns))
		for _, h := range batch {
			if h.FilingID == 0 {
				return inserted, fmt.Errorf("%w: holding %q has no filing id", core.ErrInvalidHolding, h.CUSIP)
			}
			args = append(args, holdingArgs(h)...)
		}
		query := fmt.Sprintf(`INSERT INTO holdings (%s) VALUES %s`,
			strings.Join(holdingColumns, ", "), placeholders(len(batch), len(holdingColumns)))
		n, err := t.exec(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("insert holdings: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

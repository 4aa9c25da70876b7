package sqldb

import (
	"context"
	"fmt"
)

var filingColumns = []string{
	"accession_number",
	"cik",
	"filingmanager_name",
	"submissiontype",
	"filing_date",
	"periodofreport",
	"reportcalendarorquarter",
	"isamendment",
	"amendmentno",
	"amendmenttype",
	"confdeniedexpired",
	"datedeniedexpired",
	"datereported",
	"reasonfornonconfidentiality",
	"filingmanager_street1",
	"filingmanager_street2",
	"filingmanager_city",
	"filingmanager_stateorcountry",
	"filingmanager_zipcode",
	"otherincludedmanagerscount",
	"tableentrytotal",
	"tablevaluetotal",
	"isconfidentialomitted",
	"reporttype",
	"form13ffilenumber",
	"crdnumber",
	"secfilenumber",
	"provideinfoforinstruction5",
	"additionalinformation",
	"other_managers",
}

var holdingColumns = []string{
	"filing_id",
	"nameofissuer",
	"titleofclass",
	"cusip",
	"value",
	"sshprnamt",
	"sshprnamttype",
	"putcall",
	"investmentdiscretion",
	"othermanager",
	"voting_auth_sole",
	"voting_auth_shared",
	"voting_auth_none",
}

func (d dialect) schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS filings (
	%s,
	accession_number TEXT NOT NULL UNIQUE,
	cik TEXT,
	filingmanager_name TEXT,
	submissiontype TEXT,
	filing_date DATE,
	periodofreport DATE,
	reportcalendarorquarter DATE,
	isamendment BOOLEAN NOT NULL DEFAULT FALSE,
	amendmentno INTEGER NOT NULL DEFAULT 0,
	amendmenttype TEXT,
	confdeniedexpired BOOLEAN NOT NULL DEFAULT FALSE,
	datedeniedexpired DATE,
	datereported DATE,
	reasonfornonconfidentiality TEXT,
	filingmanager_street1 TEXT,
	filingmanager_street2 TEXT,
	filingmanager_city TEXT,
	filingmanager_stateorcountry TEXT,
	filingmanager_zipcode TEXT,
	otherincludedmanagerscount INTEGER NOT NULL DEFAULT 0,
	tableentrytotal INTEGER NOT NULL DEFAULT 0,
	tablevaluetotal DOUBLE PRECISION NOT NULL DEFAULT 0,
	isconfidentialomitted BOOLEAN NOT NULL DEFAULT FALSE,
	reporttype TEXT,
	form13ffilenumber TEXT,
	crdnumber TEXT,
	secfilenumber TEXT,
	provideinfoforinstruction5 BOOLEAN NOT NULL DEFAULT FALSE,
	additionalinformation TEXT,
	other_managers TEXT
)`, d.idColumn),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS holdings (
	%s,
	filing_id BIGINT NOT NULL REFERENCES filings(id) ON DELETE CASCADE,
	nameofissuer TEXT,
	titleofclass TEXT,
	cusip TEXT,
	value DOUBLE PRECISION,
	sshprnamt DOUBLE PRECISION,
	sshprnamttype TEXT,
	putcall TEXT,
	investmentdiscretion TEXT,
	othermanager TEXT,
	voting_auth_sole BIGINT,
	voting_auth_shared BIGINT,
	voting_auth_none BIGINT
)`, d.idColumn),
		`CREATE INDEX IF NOT EXISTS filings_cik_period_idx ON filings (cik, periodofreport)`,
		`CREATE INDEX IF NOT EXISTS holdings_filing_id_idx ON holdings (filing_id)`,
		`CREATE INDEX IF NOT EXISTS holdings_cusip_idx ON holdings (cusip)`,
	}
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range r.dialect.schema() {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/thirteenf"
	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/ingestion"
	"github.com/poiesic/thirteenf/reconcile"
	"github.com/poiesic/thirteenf/remediate"
)

var (
	header  = color.New(color.Bold)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed, color.Bold)
	muted   = color.New(color.Faint)
)

func printIngestResult(w io.Writer, result *ingestion.Result) {
	fmt.Fprintln(w)
	total := result.Total()
	if total.Planned == 0 {
		header.Fprintln(w, "Nothing to ingest")
		muted.Fprintln(w, "Every item in range is already processed.")
		return
	}

	header.Fprintf(w, "Ingestion run %s\n", result.RunID)
	printCategory(w, "Bulk folders", result.Bulk)
	printCategory(w, "Documents", result.Documents)
	fmt.Fprintf(w, "  Filings inserted:  %d\n", result.FilingsInserted)
	fmt.Fprintf(w, "  Holdings inserted: %d\n", result.HoldingsInserted)
	if result.HoldingsDropped > 0 {
		failure.Fprintf(w, "  Holdings dropped:  %d\n", result.HoldingsDropped)
	}
	fmt.Fprintf(w, "  Duration:          %s\n", result.Duration.Round(time.Millisecond))
}

func printCategory(w io.Writer, label string, c ingestion.CategoryResult) {
	fmt.Fprintf(w, "  %-18s ", label+":")
	success.Fprintf(w, "%d succeeded", c.Succeeded)
	fmt.Fprint(w, ", ")
	if c.Failed > 0 {
		failure.Fprintf(w, "%d failed", c.Failed)
	} else {
		fmt.Fprint(w, "0 failed")
	}
	fmt.Fprintf(w, " of %d\n", c.Planned)
}

func printRemediateReport(w io.Writer, report *remediate.Report) {
	fmt.Fprintln(w)
	header.Fprintf(w, "Remediation run %s\n", report.RunID)
	for _, s := range report.Steps {
		if s.Skipped {
			muted.Fprintf(w, "  %-22s skipped\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "  %-22s %d rows (%s)\n", s.Name, s.Rows, s.Duration.Round(time.Millisecond))
	}
	if rec := report.Reconcile; rec != nil {
		fmt.Fprintf(w, "  Reference codes:       %d\n", rec.ReferenceCodes)
		fmt.Fprintf(w, "  Column swaps:          %d title, %d issuer\n", rec.TitleSwaps, rec.IssuerRotations)
		fmt.Fprintf(w, "  Short codes repaired:  %d", rec.ShortCodes)
		for _, m := range reconcile.Methods {
			fmt.Fprintf(w, " %s=%d", m, rec.ByMethod[m])
		}
		fmt.Fprintln(w)
	}
	if report.OrphanFilings > 0 {
		failure.Fprintf(w, "  Orphan filings:        %d\n", report.OrphanFilings)
	}
	if report.Duration > 0 {
		success.Fprintf(w, "  Completed in %s\n", report.Duration.Round(time.Millisecond))
	}
}

func printStatus(w io.Writer, status *thirteenf.Status) {
	header.Fprintln(w, "Progress")
	if len(status.Progress.Entries) == 0 {
		muted.Fprintln(w, "  nothing processed yet")
	}
	for _, e := range status.Progress.Entries {
		period := e.PeriodKey
		if period == "" {
			period = "all"
		}
		fmt.Fprintf(w, "  %-20s %-8s %6d processed", e.Category, period, e.Processed)
		if e.Failed > 0 {
			failure.Fprintf(w, " %d failed", e.Failed)
		}
		fmt.Fprintln(w)
	}
	for _, c := range []core.Category{core.CategoryBulk, core.CategoryDocument} {
		processed, failed := status.Progress.Totals(c)
		fmt.Fprintf(w, "  total %-14s %6d processed, %d failed\n", c, processed, failed)
	}
	if !status.Progress.LastUpdated.IsZero() {
		muted.Fprintf(w, "  last updated %s\n", status.Progress.LastUpdated.Format(time.RFC3339))
	}

	fmt.Fprintln(w)
	header.Fprintln(w, "Warehouse")
	fmt.Fprintf(w, "  filings:  %d\n", status.Counts.Filings)
	fmt.Fprintf(w, "  holdings: %d\n", status.Counts.Holdings)
}

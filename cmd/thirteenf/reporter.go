package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/ingestion"
	"github.com/schollz/progressbar/v3"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newReporter returns a progress bar on a terminal and periodic progress
// lines otherwise.
func newReporter(w io.Writer, tty bool) ingestion.Reporter {
	if tty {
		return &barReporter{writer: w}
	}
	return &lineReporter{writer: w, reportInterval: 100}
}

// barReporter draws one progress bar across both categories.
type barReporter struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	failed int
}

func (r *barReporter) Start(plan *ingestion.Plan) {
	r.bar = progressbar.NewOptions(plan.Remaining(),
		progressbar.OptionSetWriter(r.writer),
		progressbar.OptionSetDescription("Ingesting"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *barReporter) ItemDone(item core.WorkItem, err error) {
	if err != nil {
		r.failed++
		r.bar.Describe(fmt.Sprintf("Ingesting (%d failed)", r.failed))
	}
	_ = r.bar.Add(1)
}

func (r *barReporter) Finish(*ingestion.Result) {
	_ = r.bar.Finish()
}

// lineReporter writes a progress line every reportInterval items.
type lineReporter struct {
	writer         io.Writer
	total          int
	current        int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
}

func (r *lineReporter) Start(plan *ingestion.Plan) {
	r.total = plan.Remaining()
	r.startTime = time.Now()
	fmt.Fprintf(r.writer, "Planned: %d bulk folders (%d done), %d documents (%d done)\n",
		plan.Bulk.Remaining(), plan.Bulk.Done, plan.Documents.Remaining(), plan.Documents.Done)
}

func (r *lineReporter) ItemDone(item core.WorkItem, err error) {
	r.current++
	if err != nil {
		r.failed++
	}
	// Report if we've crossed a report interval
	if r.current-r.lastReported >= r.reportInterval {
		r.report()
		r.lastReported = r.current
	}
}

func (r *lineReporter) Finish(*ingestion.Result) {
	if r.current != r.lastReported || r.total == 0 {
		r.report()
	}
}

func (r *lineReporter) report() {
	elapsed := time.Since(r.startTime)
	rate := float64(r.current) / elapsed.Seconds()

	percentage := 100.0
	if r.total > 0 {
		percentage = float64(r.current) / float64(r.total) * 100.0
	}

	fmt.Fprintf(r.writer, "Progress: %d/%d (%.1f%%) - %d failed - %.1f items/s\n",
		r.current, r.total, percentage, r.failed, rate)
}

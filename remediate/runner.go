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

package remediate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/reconcile"
	"github.com/poiesic/thirteenf/storage"
)

// Step names.
const (
	StepPruneEarlyFilings    = "prune-early-filings"
	StepDropNoticeFilings    = "drop-notice-filings"
	StepPadCIK               = "pad-cik"
	StepApplyOverrides       = "apply-overrides"
	StepResolveAmendments    = "resolve-amendments"
	StepDropOptions          = "drop-options"
	StepReconcileIdentifiers = "reconcile-identifiers"
)

// NoticeSubmissionTypes are the notice filings, which carry no holdings of
// their own.
var NoticeSubmissionTypes = []string{"13F-NT", "13F-NT/A"}

// Config selects the steps to run.
type Config struct {
	// MinReportYear prunes filings reported before Jan 1 of this year.
	// Zero disables the step.
	MinReportYear     int
	DropNoticeFilings bool
	ResolveAmendments bool
	DropOptions       bool
}

// DefaultConfig enables every step.
func DefaultConfig() Config {
	return Config{
		MinReportYear:     2014,
		DropNoticeFilings: true,
		ResolveAmendments: true,
		DropOptions:       true,
	}
}

// StepResult reports one step.
type StepResult struct {
	Name     string
	Rows     int64
	Skipped  bool
	Duration time.Duration
}

// Report summarizes a remediation run.
type Report struct {
	RunID         string
	Steps         []StepResult
	Reconcile     *reconcile.Report // nil when reconciliation was skipped
	OrphanFilings int64
	Duration      time.Duration
}

// Rows returns the rows affected by the named step.
func (r *Report) Rows(step string) int64 {
	for _, s := range r.Steps {
		if s.Name == step {
			return s.Rows
		}
	}
	return 0
}

// Recorder receives per-step measurements.
type Recorder interface {
	ObserveStep(step string, rows int64, elapsed time.Duration)
}

// Runner executes the remediation steps.
type Runner struct {
	repo      storage.Repository
	engine    *reconcile.Engine
	overrides *Overrides
	config    Config
	logger    *slog.Logger
	recorder  Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithConfig sets the step configuration. Default is DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(r *Runner) {
		r.config = cfg
	}
}

// WithOverrides sets the manual-correction table.
func WithOverrides(o *Overrides) Option {
	return func(r *Runner) {
		if o != nil {
			r.overrides = o
		}
	}
}

// WithEngine sets the identifier reconciliation engine. Without one the
// reconcile-identifiers step is skipped.
func WithEngine(engine *reconcile.Engine) Option {
	return func(r *Runner) {
		r.engine = engine
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder sets a step recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// NewRunner creates a Runner.
func NewRunner(repo storage.Repository, opts ...Option) (*Runner, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	r := &Runner{
		repo:      repo,
		overrides: &Overrides{},
		config:    DefaultConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "remediate")
	return r, nil
}

type step struct {
	name    string
	enabled bool
	run     func(ctx context.Context, tx storage.Tx) (int64, error)
}

func (r *Runner) steps() []step {
	return []step{
		{StepPruneEarlyFilings, r.config.MinReportYear > 0, r.pruneEarlyFilings},
		{StepDropNoticeFilings, r.config.DropNoticeFilings, func(ctx context.Context, tx storage.Tx) (int64, error) {
			return tx.DeleteFilingsBySubmissionType(ctx, NoticeSubmissionTypes)
		}},
		{StepPadCIK, true, func(ctx context.Context, tx storage.Tx) (int64, error) {
			return tx.PadCIKs(ctx)
		}},
		{StepApplyOverrides, !r.overrides.Empty(), r.applyOverrides},
		{StepResolveAmendments, r.config.ResolveAmendments, resolveAmendments},
		{StepDropOptions, r.config.DropOptions, func(ctx context.Context, tx storage.Tx) (int64, error) {
			return tx.DeleteOptionHoldings(ctx)
		}},
	}
}

// Run executes every enabled step in order and stops at the first failure.
// The returned report covers the steps completed so far.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: core.Fingerprint("remediate", strconv.FormatInt(start.UnixNano(), 10))}
	logger := r.logger.With("run", report.RunID)

	for _, s := range r.steps() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !s.enabled {
			report.Steps = append(report.Steps, StepResult{Name: s.name, Skipped: true})
			logger.Debug("step skipped", "step", s.name)
			continue
		}
		stepStart := time.Now()
		var rows int64
		err := r.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			var err error
			rows, err = s.run(ctx, tx)
			return err
		})
		if err != nil {
			logger.Error("step failed", "step", s.name, "err", err)
			return report, fmt.Errorf("%w: %s: %w", ErrStepFailed, s.name, err)
		}
		r.record(report, StepResult{Name: s.name, Rows: rows, Duration: time.Since(stepStart)})
	}

	if err := r.reconcile(ctx, report); err != nil {
		return report, err
	}

	err := r.repo.WithTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		report.OrphanFilings, err = tx.CountOrphanFilings(ctx)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("count orphan filings: %w", err)
	}
	if report.OrphanFilings > 0 {
		logger.Warn("filings declare table entries but have no holdings", "filings", report.OrphanFilings)
	}

	report.Duration = time.Since(start)
	logger.Info("remediation complete", "steps", len(report.Steps), "orphan_filings", report.OrphanFilings,
		"duration", report.Duration)
	return report, nil
}

func (r *Runner) reconcile(ctx context.Context, report *Report) error {
	if r.engine == nil {
		r.logger.Warn("no reference source configured, identifiers not reconciled")
		report.Steps = append(report.Steps, StepResult{Name: StepReconcileIdentifiers, Skipped: true})
		return nil
	}
	start := time.Now()
	rec, err := r.engine.Run(ctx)
	if err != nil {
		r.logger.Error("step failed", "step", StepReconcileIdentifiers, "err", err)
		return fmt.Errorf("%w: %s: %w", ErrStepFailed, StepReconcileIdentifiers, err)
	}
	report.Reconcile = rec
	rows := rec.TitleSwaps + rec.IssuerRotations + rec.RowsRemapped
	r.record(report, StepResult{Name: StepReconcileIdentifiers, Rows: rows, Duration: time.Since(start)})
	return nil
}

func (r *Runner) record(report *Report, res StepResult) {
	report.Steps = append(report.Steps, res)
	r.logger.Info("step complete", "step", res.Name, "rows", res.Rows, "duration", res.Duration)
	if r.recorder != nil {
		r.recorder.ObserveStep(res.Name, res.Rows, res.Duration)
	}
}

func (r *Runner) pruneEarlyFilings(ctx context.Context, tx storage.Tx) (int64, error) {
	cutoff := time.Date(r.config.MinReportYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	return tx.DeleteFilingsBefore(ctx, cutoff)
}

func (r *Runner) applyOverrides(ctx context.Context, tx storage.Tx) (int64, error) {
	var total int64
	for _, a := range r.overrides.SetAmendmentType {
		n, err := tx.SetAmendmentType(ctx, a.Accessions, a.Type)
		if err != nil {
			return total, err
		}
		if n < int64(len(a.Accessions)) {
			r.logger.Warn("override matched fewer filings than listed", "type", a.Type,
				"listed", len(a.Accessions), "matched", n)
		}
		total += n
	}
	for _, d := range r.overrides.Delete {
		period, err := d.PeriodOfReport()
		if err != nil {
			return total, err
		}
		n, err := tx.DeleteFilingsForPeriod(ctx, d.CIK, period)
		if err != nil {
			return total, err
		}
		r.logger.Debug("override deleted filings", "cik", d.CIK, "period", d.Period, "reason", d.Reason, "rows", n)
		total += n
	}
	return total, nil
}

func resolveAmendments(ctx context.Context, tx storage.Tx) (int64, error) {
	ids, err := tx.SupersededFilingIDs(ctx)
	if err != nil {
		return 0, err
	}
	return tx.DeleteFilings(ctx, ids)
}

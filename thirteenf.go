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

// Package thirteenf loads institutional holdings filings into a relational
// warehouse and cleans them after loading.
//
// A Warehouse owns the relational repository and the progress store and
// builds the two batch jobs that use them:
//
//	w, err := thirteenf.Open(ctx, cfg)
//	defer w.Close()
//
//	pipeline, err := w.NewPipeline()
//	defer pipeline.Release()
//	result, err := pipeline.Run(ctx, periods)
//
//	runner, err := w.NewRemediator()
//	report, err := runner.Run(ctx)
package thirteenf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/poiesic/thirteenf/config"
	"github.com/poiesic/thirteenf/ingestion"
	"github.com/poiesic/thirteenf/metrics"
	"github.com/poiesic/thirteenf/progress"
	"github.com/poiesic/thirteenf/reconcile"
	"github.com/poiesic/thirteenf/remediate"
	"github.com/poiesic/thirteenf/storage"
	"github.com/poiesic/thirteenf/storage/sqldb"
)

// Warehouse wires the stores and jobs described by a Config.
type Warehouse struct {
	cfg      *config.Config
	repo     *sqldb.Repository
	progress progress.Store
	recorder *metrics.Recorder
	workers  int
	logger   *slog.Logger
}

// WarehouseOption configures a Warehouse.
type WarehouseOption func(*warehouseOptions)

type warehouseOptions struct {
	logger   *slog.Logger
	recorder *metrics.Recorder
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) WarehouseOption {
	return func(o *warehouseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches a recorder to every job the Warehouse builds.
func WithMetrics(recorder *metrics.Recorder) WarehouseOption {
	return func(o *warehouseOptions) {
		o.recorder = recorder
	}
}

// Open validates cfg, connects to the relational store and opens the
// progress store.
func Open(ctx context.Context, cfg *config.Config, opts ...WarehouseOption) (*Warehouse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &warehouseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	workers := cfg.Ingestion.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	maxConns := cfg.Database.MaxOpenConns
	if maxConns == 0 {
		maxConns = workers
	}

	repo, err := sqldb.Open(ctx, cfg.Database.Driver, cfg.Database.DSN,
		sqldb.WithMaxOpenConns(maxConns),
		sqldb.WithConnectRetry(cfg.Database.ConnectAttempts, cfg.Database.ConnectDelay),
		sqldb.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}

	store, err := progress.Open(cfg.Ingestion.ProgressBackend, cfg.Paths.ProgressFile)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("open progress store: %w", err)
	}

	return &Warehouse{
		cfg:      cfg,
		repo:     repo,
		progress: store,
		recorder: options.recorder,
		workers:  workers,
		logger:   options.logger,
	}, nil
}

// Close closes the progress store and the repository.
func (w *Warehouse) Close() error {
	var errs []error
	if err := w.progress.Close(); err != nil {
		w.logger.Error("error closing progress store", "err", err)
		errs = append(errs, err)
	}
	if err := w.repo.Close(); err != nil {
		w.logger.Error("error closing repository", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Repository returns the relational repository.
func (w *Warehouse) Repository() storage.Repository {
	return w.repo
}

// Progress returns the progress store.
func (w *Warehouse) Progress() progress.Store {
	return w.progress
}

// NewEnumerator builds the work enumerator for the configured input roots.
func (w *Warehouse) NewEnumerator() *ingestion.Enumerator {
	return ingestion.NewEnumerator(w.cfg.Paths.BulkDir, w.cfg.Paths.DocumentDir, w.progress,
		ingestion.WithBoundaryYear(w.cfg.Ingestion.BoundaryYear),
		ingestion.WithDocumentExt(w.cfg.Ingestion.DocumentExt),
		ingestion.WithEnumeratorLogger(w.logger),
	)
}

// NewPipeline builds an ingestion pipeline. opts are applied after the
// configured ones. The caller must Release it.
func (w *Warehouse) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithPoolSize(w.workers),
		ingestion.WithLogger(w.logger),
	}
	if w.recorder != nil {
		base = append(base, ingestion.WithRecorder(w.recorder))
	}
	return ingestion.NewPipeline(w.repo, w.progress, w.NewEnumerator(), append(base, opts...)...)
}

// NewRemediator builds a remediation runner. Reconciliation is enabled when
// a reference file is configured.
func (w *Warehouse) NewRemediator(opts ...remediate.Option) (*remediate.Runner, error) {
	overrides, err := remediate.LoadOverrides(w.cfg.Paths.OverridesFile)
	if err != nil {
		return nil, err
	}
	base := []remediate.Option{
		remediate.WithConfig(w.cfg.Remediation.Steps()),
		remediate.WithOverrides(overrides),
		remediate.WithLogger(w.logger),
	}
	if w.recorder != nil {
		base = append(base, remediate.WithRecorder(w.recorder))
	}
	if path := w.cfg.Paths.ReferenceFile; path != "" {
		src := reconcile.NewFileReferenceSource(path, reconcile.WithComma(w.cfg.Remediation.Comma()))
		engine, err := reconcile.NewEngine(w.repo, src, reconcile.WithLogger(w.logger))
		if err != nil {
			return nil, err
		}
		base = append(base, remediate.WithEngine(engine))
	}
	return remediate.NewRunner(w.repo, append(base, opts...)...)
}

// Status is a snapshot of both stores.
type Status struct {
	Progress progress.Summary
	Counts   storage.Counts
}

// Status reads the progress summary and the relational row counts.
func (w *Warehouse) Status(ctx context.Context) (*Status, error) {
	counts, err := w.repo.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Progress: w.progress.Summary(), Counts: counts}, nil
}

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

// Package metrics records ingestion and remediation counters with
// Prometheus. Runs are batch jobs, so the counters are written to a
// node-exporter textfile at the end of a run instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/poiesic/thirteenf/core"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "thirteenf"

// Outcome label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Recorder implements ingestion.Recorder and remediate.Recorder.
// It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	items        *prometheus.CounterVec
	itemSeconds  *prometheus.HistogramVec
	filings      *prometheus.CounterVec
	holdings     *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	stepRows     *prometheus.CounterVec
	stepSeconds  *prometheus.GaugeVec
	lastComplete prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "items_total",
			Help:      "Work items processed, by category and outcome.",
		}, []string{"category", "outcome"}),
		itemSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "item_duration_seconds",
			Help:      "Time to process one work item.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"category"}),
		filings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "filings_inserted_total",
			Help:      "Filings inserted.",
		}, []string{"category"}),
		holdings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "holdings_inserted_total",
			Help:      "Holdings inserted.",
		}, []string{"category"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "holdings_dropped_total",
			Help:      "Holdings dropped because their filing could not be resolved.",
		}, []string{"category"}),
		stepRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remediate",
			Name:      "rows_total",
			Help:      "Rows affected by each remediation step.",
		}, []string{"step"}),
		stepSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "remediate",
			Name:      "step_duration_seconds",
			Help:      "Duration of the last run of each remediation step.",
		}, []string{"step"}),
		lastComplete: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_completion_timestamp_seconds",
			Help:      "Unix time the last run completed.",
		}),
	}
	r.registry.MustRegister(r.items, r.itemSeconds, r.filings, r.holdings, r.dropped,
		r.stepRows, r.stepSeconds, r.lastComplete)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveItem counts one work item outcome.
func (r *Recorder) ObserveItem(category core.Category, err error, elapsed time.Duration) {
	outcome := OutcomeSucceeded
	if err != nil {
		outcome = OutcomeFailed
	}
	r.items.WithLabelValues(string(category), outcome).Inc()
	r.itemSeconds.WithLabelValues(string(category)).Observe(elapsed.Seconds())
}

// ObserveRows counts rows written by one work item.
func (r *Recorder) ObserveRows(category core.Category, filings, holdings, dropped int64) {
	r.filings.WithLabelValues(string(category)).Add(float64(filings))
	r.holdings.WithLabelValues(string(category)).Add(float64(holdings))
	r.dropped.WithLabelValues(string(category)).Add(float64(dropped))
}

// ObserveStep records one remediation step.
func (r *Recorder) ObserveStep(step string, rows int64, elapsed time.Duration) {
	r.stepRows.WithLabelValues(step).Add(float64(rows))
	r.stepSeconds.WithLabelValues(step).Set(elapsed.Seconds())
}

// WriteTextfile stamps the completion time and writes every metric to path
// in the text exposition format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	r.lastComplete.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

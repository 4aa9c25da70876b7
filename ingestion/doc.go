// Package ingestion loads filings into the relational store.
//
// An Enumerator turns a range of reporting periods into work items: one bulk
// folder per period before the boundary year and one document per file from
// the boundary year on. Items already marked processed in the progress store
// are skipped.
//
// The Pipeline runs the remaining items on a worker pool. Every item is
// processed in its own transaction, and a failing item never affects its
// siblings. Outcomes flow through one channel to a single aggregator, which
// is the only writer to the progress store.
package ingestion

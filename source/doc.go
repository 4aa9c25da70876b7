// Package source reads the two filing source formats.
//
// Bulk folders hold tab-separated tables (SUBMISSION, COVERPAGE,
// SUMMARYPAGE, OTHERMANAGER2, INFOTABLE) joined on ACCESSION_NUMBER.
// Documents are full submission text files carrying a primary XML fragment
// and an information table fragment between <XML> markers.
//
// Both readers produce core.Filing and core.Holding records with the same
// coercions: absent counts are zero, flags are false unless explicitly set,
// unparseable dates are absent, and filer identifiers are zero-padded.
package source

package mlib

// SummaryStore holds the catalog's cached statistics.
type SummaryStore interface {
	// Summary returns a copy of the current summary.
	Summary() Summary

	// UpdateSummary applies fn to the summary and persists the result.
	UpdateSummary(fn func(*Summary)) error
}

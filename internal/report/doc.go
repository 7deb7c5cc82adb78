// Package report folds individual migration results into a batch-level
// summary used for operator output and exit-code decisions.
package report

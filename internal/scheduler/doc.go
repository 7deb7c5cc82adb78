// Package scheduler fans a batch of migration jobs out to a bounded pool of
// workers while preserving the submission order of their results.
package scheduler

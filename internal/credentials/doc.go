// Package credentials acquires per-job credential bundles from the
// environment and redacts secret material from captured output.
package credentials

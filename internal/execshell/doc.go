// Package execshell provides structured wrappers around external tool
// execution with logging and typed error reporting.
package execshell

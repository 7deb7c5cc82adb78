// Package cli assembles the ghmigrate root command, its configuration
// loading, and structured logging.
package cli

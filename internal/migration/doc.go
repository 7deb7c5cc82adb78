// Package migration runs a single repository migration end-to-end through
// the GitHub bbs2gh extension and classifies the outcome from its output.
package migration

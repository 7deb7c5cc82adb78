// Package batch defines migration job descriptors, batch manifests, and
// the up-front validation applied before any job is scheduled.
package batch

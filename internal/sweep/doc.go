// Package sweep runs the periodic housekeeping pass: retiring jobs that
// stalled before processing, expiring finished ephemeral records, and folding
// best-effort counters into the durable store. Everything here is off the hot
// path and tolerant of partial failure.
package sweep

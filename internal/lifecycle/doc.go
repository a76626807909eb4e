// Package lifecycle owns every job-record mutation.
//
// The Controller is the single transition funnel: the HTTP layer, the worker
// pool, and the sweep all go through it, and it serializes per-job mutation
// against the ephemeral store, applies the checkpoint policy for durable
// writes, and broadcasts a full snapshot after every visible change. Nothing
// else in the system writes a job.
package lifecycle

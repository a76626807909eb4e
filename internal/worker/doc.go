// Package worker runs the bounded conversion pool. Each slot polls the queue,
// claims exactly one job at a time, drives the external converter with a
// deadline, and reports progress and the terminal outcome back through the
// lifecycle controller. Cancellation is cooperative: slots poll for it at
// safe points and abort the running conversion when asked.
package worker

// Package daemon assembles and coordinates the engine: stores, lifecycle
// controller, worker pool, sweep, broadcast hub, and the HTTP API. It also
// enforces single-instance execution through a lock file.
package daemon

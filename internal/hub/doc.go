// Package hub fans job state changes out to observers.
//
// Every message is a full snapshot of one job, never a delta, so a client
// that reconnects or drops messages converges by applying the latest snapshot
// per job. Subscribing always yields a fresh snapshot of all active jobs
// before any live events. Slow subscribers lose their oldest undelivered
// events rather than stalling the publisher.
package hub

// Package jobs defines the conversion job model and its lifecycle semantics.
//
// A Job carries everything the engine knows about one conversion: input
// metadata, the current status, per-status timestamps, upload byte counters,
// processing anchors, and the output artifact once conversion finishes. The
// six-value Status enum and the transition table are the single source of
// truth for which state changes are legal; every mutation elsewhere in the
// codebase funnels through lifecycle.Controller, which consults this package.
//
// Treat this package as the canonical description of job semantics: new
// statuses or fields start here, then ripple into store scan columns and the
// API payloads.
package jobs

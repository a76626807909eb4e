// Package store persists conversion jobs across two tiers.
//
// The ephemeral tier (MemStore) holds every live job and absorbs the
// high-frequency progress churn; entries for finished jobs expire after a
// configurable TTL. The durable tier (Store, backed by SQLite) receives
// checkpoint writes only: queue entry, terminal states, and dismissal. The
// Repository front combines both so readers see ephemeral state first and
// fall back to durable history.
package store

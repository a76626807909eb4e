// Package notify delivers push notifications for terminal job events via
// ntfy. When no topic is configured every publisher is a no-op, so callers
// never need to guard notification calls.
package notify

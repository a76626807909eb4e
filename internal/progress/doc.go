// Package progress turns raw signals into stable progress and ETA values.
//
// Upload estimation smooths bursty byte counters through a small rolling
// window of instantaneous speed samples and publishes the median, which a
// single network spike cannot move. Processing estimation is anchor-based:
// the start time and projected completion time are fixed once, and every
// later percentage is pure arithmetic over the wall clock against them.
package progress

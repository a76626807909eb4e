// Package preflight provides readiness checks for the filesystem paths and
// external tools Bindery depends on.
//
// The daemon runs RunAll once at startup and logs the outcome of each check.
// A failed check does not abort startup: a missing converter binary only
// dooms conversions, not uploads, and the operator may install it while the
// daemon keeps accepting work.
package preflight

// Package convert wraps the external e-reader conversion tool.
//
// The engine treats conversion as an opaque, slow, synchronous call: a file
// path and options go in, an output path comes out or a user-safe failure.
// The package also owns the duration estimate used to fix the processing ETA
// anchor before a conversion starts.
package convert

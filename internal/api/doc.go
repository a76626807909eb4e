// Package api defines the transport payloads shared by the HTTP server and
// the CLI client, plus the conversions from the engine's job records into
// their wire shape.
package api

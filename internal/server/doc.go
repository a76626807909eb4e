// Package server exposes the engine over HTTP: job submission, streamed
// uploads, queue and history views, artifact download, and a websocket feed
// of full job snapshots. Handlers translate between the wire payloads in
// package api and the lifecycle controller; no engine logic lives here.
package server

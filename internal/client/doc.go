// Package client provides HTTP access to a running daemon for the CLI.
package client

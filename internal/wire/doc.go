// Package wire holds the line-delimited JSON-RPC envelopes the harness
// exchanges with the server, the stdout line classifier, and decoding of
// the nested control payload returned by tools/call.
package wire

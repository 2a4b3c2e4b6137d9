// Package harness drives a single request/response probe cycle against an
// MCP server subprocess: readiness detection, one correlated tools/call,
// diagnosis of the returned controls, and deterministic teardown.
package harness

// Package subprocess spawns the MCP server process and exchanges
// newline-delimited messages over its stdio pipes.
package subprocess

package config

import "context"

// Transport defines the interface for server communication.
// Implement this to probe over something other than a spawned subprocess
// (tests inject channel-backed fakes).
//
// The default implementation is subprocess.ServerTransport.
type Transport interface {
	// Start launches the server and prepares it for communication.
	Start(ctx context.Context) error

	// ReadLines returns channels yielding raw stdout lines and read errors.
	// Lines are delivered undecoded: classification (log record, response
	// candidate, unparseable) is the consumer's job. Both channels are
	// closed when reading completes.
	ReadLines(ctx context.Context) (<-chan string, <-chan error)

	// SendMessage writes one message to the server's stdin. A trailing
	// newline is appended if missing. Safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the server process and waits for it. Every exit path
	// of a probe cycle must reach Close; it is safe to call repeatedly.
	Close() error
}

package wire

import (
	"encoding/json"
	"strings"
)

// LineKind tags what a stdout line turned out to be. Only ResponseCandidate
// lines carry a decoded envelope; everything else is skipped by the caller.
type LineKind int

const (
	// LineLog marks a structured log record, detected heuristically before
	// any JSON decode is attempted.
	LineLog LineKind = iota

	// LineUnparseable marks a line that failed JSON decoding. Tolerated:
	// servers interleave banners and progress output on the same stream.
	LineUnparseable

	// LineResponseCandidate marks a decoded JSON-RPC envelope.
	LineResponseCandidate
)

// String returns a short tag for logging.
func (k LineKind) String() string {
	switch k {
	case LineLog:
		return "log"
	case LineUnparseable:
		return "unparseable"
	case LineResponseCandidate:
		return "response_candidate"
	default:
		return "unknown"
	}
}

// Classify inspects one stdout line. Lines that look like structured log
// records (containing both a "level" and a "message" token) are never
// handed to the JSON decoder; lines that fail to decode are tagged
// unparseable rather than raising.
func Classify(line string) (LineKind, *Response) {
	if strings.Contains(line, "level") && strings.Contains(line, "message") {
		return LineLog, nil
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return LineUnparseable, nil
	}

	var resp Response
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return LineUnparseable, nil
	}

	return LineResponseCandidate, &resp
}

// Matches reports whether a decoded envelope is the awaited response: same
// correlation id and a result payload present. Envelopes carrying an error
// member or another id are not the awaited response.
func Matches(resp *Response, id int64) bool {
	return resp != nil && resp.ID == id && resp.HasResult() && resp.Error == nil
}

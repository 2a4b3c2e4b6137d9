package wire

import (
	"encoding/json"
	"fmt"

	"github.com/probekit/mcpprobe/internal/errors"
)

// Version is the JSON-RPC protocol version tag carried by every envelope.
const Version = "2.0"

// Request is a single outbound JSON-RPC request. Immutable once constructed;
// serialize with Encode.
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  RequestParams `json:"params"`
	ID      int64         `json:"id"`
}

// RequestParams is the parameter bundle for a tools/call request.
type RequestParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// NewToolCall builds a tools/call request for the named tool with empty
// arguments and the given correlation id.
func NewToolCall(tool string, id int64) *Request {
	return &Request{
		JSONRPC: Version,
		Method:  "tools/call",
		Params: RequestParams{
			Name:      tool,
			Arguments: map[string]any{},
		},
		ID: id,
	}
}

// Encode serializes the request as a single newline-terminated JSON line.
func (r *Request) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	return append(data, '\n'), nil
}

// Response is an inbound JSON-RPC envelope keyed by correlation id.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the JSON-RPC error member.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HasResult reports whether the envelope carries a result payload.
func (r *Response) HasResult() bool {
	return len(r.Result) > 0
}

// toolResult mirrors the MCP tools/call result shape: a content list whose
// first text item holds the JSON-encoded control collection.
type toolResult struct {
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Control is an application-level record describing a controllable
// parameter. Only presence is checked by the harness; component diversity
// across the collection is the property under test.
type Control struct {
	Name      string `json:"name"`
	Component string `json:"component"`
	Type      string `json:"type"`
	Value     any    `json:"value"`

	// raw keeps the decoded object so callers can distinguish an absent
	// component from an empty one.
	raw map[string]json.RawMessage
}

// HasComponent reports whether the record carried a component field at all.
func (c *Control) HasComponent() bool {
	_, ok := c.raw["component"]

	return ok
}

// UnmarshalJSON decodes the record and remembers which fields were present.
func (c *Control) UnmarshalJSON(data []byte) error {
	type plain Control

	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Control(p)
	c.raw = raw

	return nil
}

// DecodeControls extracts the control collection from a tools/call result.
// The result's content[0].text member is itself a JSON-encoded string
// holding an ordered sequence of control records.
func DecodeControls(result json.RawMessage) ([]Control, error) {
	var tr toolResult
	if err := json.Unmarshal(result, &tr); err != nil {
		return nil, &errors.PayloadDecodeError{RawData: string(result), Err: err}
	}

	if len(tr.Content) == 0 {
		return nil, &errors.PayloadDecodeError{
			RawData: string(result),
			Err:     fmt.Errorf("result has no content items"),
		}
	}

	text := tr.Content[0].Text

	var controls []Control
	if err := json.Unmarshal([]byte(text), &controls); err != nil {
		return nil, &errors.PayloadDecodeError{RawData: text, Err: err}
	}

	return controls, nil
}

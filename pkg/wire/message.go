package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Top-level "type" values.
const (
	TypeFeed        = "feed"
	TypeDescription = "description"
	TypeResponse    = "response"
	TypeRequest     = "request"
)

// Method identifies a request method on the wire.
type Method string

const (
	// MethodStructure requests the device's full configuration schema.
	MethodStructure Method = "structure"

	// MethodGet reads the value of a single schema leaf.
	MethodGet Method = "get"

	// MethodSet writes the value of a single schema leaf.
	MethodSet Method = "set"
)

// IsValid returns true if the method is a known request method.
func (m Method) IsValid() bool {
	switch m {
	case MethodStructure, MethodGet, MethodSet:
		return true
	default:
		return false
	}
}

// String returns the method name.
func (m Method) String() string {
	return string(m)
}

// Request represents an outbound request message.
//
// CBOR encoding:
//
//	{
//	  "type": "request",
//	  "method": "structure" | "get" | "set",
//	  "id": <uint32>,
//	  "path": [elem, ...],   // get/set only; strings (names) or uints (indexes)
//	  "value": <any>         // set only
//	}
type Request struct {
	Type   string `cbor:"type"`
	Method Method `cbor:"method"`
	ID     uint32 `cbor:"id"`
	Path   []any  `cbor:"path,omitempty"`
	Value  any    `cbor:"value,omitempty"`
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if r.Type != TypeRequest {
		return fmt.Errorf("invalid request type %q", r.Type)
	}
	if !r.Method.IsValid() {
		return fmt.Errorf("invalid method %q", r.Method)
	}
	return nil
}

// EncodeRequest encodes a request message to CBOR bytes.
//
// The map shape follows the method: a structure request carries no path,
// a get carries a path, a set carries a path and a value. Wire structs
// are used per method so an empty path still encodes as [] rather than
// being omitted (the empty path addresses the schema root).
func EncodeRequest(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	switch req.Method {
	case MethodStructure:
		return Marshal(struct {
			Type   string `cbor:"type"`
			Method Method `cbor:"method"`
			ID     uint32 `cbor:"id"`
		}{req.Type, req.Method, req.ID})

	case MethodGet:
		path := req.Path
		if path == nil {
			path = []any{}
		}
		return Marshal(struct {
			Type   string `cbor:"type"`
			Method Method `cbor:"method"`
			ID     uint32 `cbor:"id"`
			Path   []any  `cbor:"path"`
		}{req.Type, req.Method, req.ID, path})

	case MethodSet:
		path := req.Path
		if path == nil {
			path = []any{}
		}
		return Marshal(struct {
			Type   string `cbor:"type"`
			Method Method `cbor:"method"`
			ID     uint32 `cbor:"id"`
			Path   []any  `cbor:"path"`
			Value  any    `cbor:"value"`
		}{req.Type, req.Method, req.ID, path, req.Value})

	default:
		return nil, fmt.Errorf("invalid method %q", req.Method)
	}
}

// DecodeRequest decodes CBOR bytes into a request message.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return &req, nil
}

// Response represents an inbound response message correlated to a
// request by id. The payload shape is method-dependent and is kept raw
// here; the protocol layer decodes it per the pending request's kind.
type Response struct {
	Type     string          `cbor:"type"`
	ID       uint32          `cbor:"id"`
	Response cbor.RawMessage `cbor:"response"`
}

// EncodeResponse encodes a response message to CBOR bytes.
func EncodeResponse(resp *Response) ([]byte, error) {
	return Marshal(resp)
}

// DecodeResponse decodes CBOR bytes into a response message.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// Feed represents an unsolicited telemetry sample. Values are kept raw;
// each element must be an unsigned integer or a single-precision float,
// positionally indexed against the most recent description.
type Feed struct {
	Type   string            `cbor:"type"`
	Values []cbor.RawMessage `cbor:"values"`
}

// EncodeFeed encodes a feed message to CBOR bytes. Values must be
// unsigned integers (uint, uint32, uint64) or float32 scalars.
func EncodeFeed(values []any) ([]byte, error) {
	for i, v := range values {
		switch v.(type) {
		case uint32, uint64, uint, float32:
		default:
			return nil, fmt.Errorf("feed value %d has unsupported type %T", i, v)
		}
	}
	return Marshal(struct {
		Type   string `cbor:"type"`
		Values []any  `cbor:"values"`
	}{TypeFeed, values})
}

// DecodeFeed decodes CBOR bytes into a feed message.
func DecodeFeed(data []byte) (*Feed, error) {
	var feed Feed
	if err := Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return &feed, nil
}

// Description represents a message declaring the positional schema of
// subsequent feeds.
type Description struct {
	Type string   `cbor:"type"`
	Keys []string `cbor:"keys"`
}

// EncodeDescription encodes a description message to CBOR bytes.
func EncodeDescription(keys []string) ([]byte, error) {
	return Marshal(Description{Type: TypeDescription, Keys: keys})
}

// DecodeDescription decodes CBOR bytes into a description message.
func DecodeDescription(data []byte) (*Description, error) {
	var desc Description
	if err := Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to decode description: %w", err)
	}
	return &desc, nil
}

// MessageType represents the type of a decoded message.
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeFeed
	MessageTypeDescription
	MessageTypeResponse
	MessageTypeRequest
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageTypeFeed:
		return TypeFeed
	case MessageTypeDescription:
		return TypeDescription
	case MessageTypeResponse:
		return TypeResponse
	case MessageTypeRequest:
		return TypeRequest
	default:
		return "unknown"
	}
}

// MessageTypeOf examines CBOR data to determine the message type from
// the top-level "type" key without fully decoding the message. A missing
// or non-string "type" yields MessageTypeUnknown.
func MessageTypeOf(data []byte) (MessageType, error) {
	if !IsMap(data) {
		return MessageTypeUnknown, ErrNotMap
	}

	var peek struct {
		Type string `cbor:"type"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return MessageTypeUnknown, fmt.Errorf("failed to peek message: %w", err)
	}

	switch peek.Type {
	case TypeFeed:
		return MessageTypeFeed, nil
	case TypeDescription:
		return MessageTypeDescription, nil
	case TypeResponse:
		return MessageTypeResponse, nil
	case TypeRequest:
		return MessageTypeRequest, nil
	default:
		return MessageTypeUnknown, nil
	}
}

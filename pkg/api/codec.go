// Package api defines the SplitSquad wire messages and the Connect
// handlers and clients that carry them.
//
// Messages are plain Go structs serialized as JSON. Every handler and client
// built here is configured with Codec, so both the Connect protocol and plain
// HTTP clients can talk to the server with Content-Type application/json.
package api

import (
	"encoding/json"
	"fmt"
)

// CodecName is the Connect codec name; it maps to application/json.
const CodecName = "json"

// Codec is a connect.Codec using encoding/json on plain structs.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	// An empty body is an empty message.
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

package ledgerapi

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Codec encodes the plain message structs of this package as JSON. It
// registers under connect's "json" name, replacing the protobuf-only default.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string {
	return "json"
}

func (Codec) Marshal(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", msg, err)
	}
	return b, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", msg, err)
	}
	return nil
}

// WithCodec is the option both clients and handlers must be built with
func WithCodec() connect.Option {
	return connect.WithCodec(Codec{})
}

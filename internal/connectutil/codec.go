package connectutil

import (
	"fmt"

	"connectrpc.com/connect"
	"github.com/bytedance/sonic"
)

// jsonCodec marshals plain Go structs. Connect's built-in JSON codec only
// accepts protobuf messages.
type jsonCodec struct{}

// NewJSONCodec returns a Connect codec named "json" backed by sonic.
func NewJSONCodec() connect.Codec { return jsonCodec{} }

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

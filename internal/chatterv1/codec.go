// Package chatterv1 defines the chatter.v1 gRPC services. Messages are plain
// Go structs carried by a JSON codec registered under content-subtype "json".
package chatterv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype every chatter.v1 call uses.
const CodecName = "json"

type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return b, nil
}

func (codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

func (codec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(codec{})
}

// CallOption selects the JSON codec for a call. Clients built by this
// package add it to every call.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}

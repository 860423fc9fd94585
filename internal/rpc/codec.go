package rpc

import (
	"fmt"

	"connectrpc.com/connect"
	jsoniter "github.com/json-iterator/go"
)

// codecNameJSON replaces Connect's protojson codec so plain Go structs can be
// exchanged with the admin server's JSON endpoints.
const codecNameJSON = "json"

type jsonCodec struct {
	api jsoniter.API
}

// NewJSONCodec returns the Connect codec used by every admin client and by
// test handlers.
func NewJSONCodec() connect.Codec {
	return jsonCodec{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

func (c jsonCodec) Name() string {
	return codecNameJSON
}

func (c jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := c.api.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not marshal %T: %w", v, err)
	}
	return data, nil
}

func (c jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := c.api.Unmarshal(data, v); err != nil {
		return fmt.Errorf("could not unmarshal %T: %w", v, err)
	}
	return nil
}

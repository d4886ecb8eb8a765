package codec

import (
	"encoding/json"
)

// NewJSONCodec creates a codec using json encoding
func NewJSONCodec[T any]() Codec[T] {
	return &jsonCodecImpl[T]{}
}

// jsonCodecImpl implements Codec using json encoding
type jsonCodecImpl[T any] struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.Codec)
// --------------------------------------------------------------------------

func (j jsonCodecImpl[T]) Name() string { return "json" }

func (j jsonCodecImpl[T]) Encode(items []T) ([]byte, error) {
	return json.Marshal(items)
}

func (j jsonCodecImpl[T]) Decode(b []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, err
	}
	return items, nil
}

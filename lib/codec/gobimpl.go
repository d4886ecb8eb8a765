package codec

import (
	"bytes"
	"encoding/gob"
)

// NewGOBCodec creates a codec using Go's binary gob format
func NewGOBCodec[T any]() Codec[T] {
	return &gobCodecImpl[T]{}
}

// gobCodecImpl implements Codec using gob encoding
type gobCodecImpl[T any] struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.Codec)
// --------------------------------------------------------------------------

func (g gobCodecImpl[T]) Name() string { return "gob" }

func (g gobCodecImpl[T]) Encode(items []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobCodecImpl[T]) Decode(b []byte) ([]T, error) {
	var items []T
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

package codec

import (
	"encoding/binary"
	"fmt"
)

// NewBinaryCodec creates a codec for raw byte items using a length prefixed format
// optimized for speed and size:
//
//	count uint32 | (len uint32 | data)*
func NewBinaryCodec() Codec[[]byte] {
	return &binaryCodecImpl{}
}

// binaryCodecImpl implements Codec[[]byte] using a custom binary format
type binaryCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.Codec)
// --------------------------------------------------------------------------

func (b binaryCodecImpl) Name() string { return "binary" }

func (b binaryCodecImpl) Encode(items [][]byte) ([]byte, error) {
	result := make([]byte, b.sizeBytes(items))

	binary.BigEndian.PutUint32(result[0:4], uint32(len(items)))
	pos := 4

	for _, item := range items {
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(item)))
		pos += 4
		copy(result[pos:pos+len(item)], item)
		pos += len(item)
	}

	return result, nil
}

func (b binaryCodecImpl) Decode(data []byte) ([][]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short for item count")
	}

	count := binary.BigEndian.Uint32(data[0:4])
	pos := 4

	// every item needs at least its 4 byte length prefix
	if uint64(count)*4 > uint64(len(data)-pos) {
		return nil, fmt.Errorf("item count %d exceeds data length %d", count, len(data))
	}

	items := make([][]byte, count)
	for i := range items {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("data too short for length of item %d", i)
		}
		itemLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		if pos+itemLen > len(data) {
			return nil, fmt.Errorf("data too short for item %d", i)
		}

		// copy so items do not keep the whole shard buffer alive
		item := make([]byte, itemLen)
		copy(item, data[pos:pos+itemLen])
		items[i] = item
		pos += itemLen
	}

	if pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after %d items", len(data)-pos, count)
	}

	return items, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binaryCodecImpl) sizeBytes(items [][]byte) int {
	size := 4
	for _, item := range items {
		size += 4 + len(item)
	}
	return size
}

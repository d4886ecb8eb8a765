package shardstore

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/ValentinKolb/loadit/lib/common"
)

// --------------------------------------------------------------------------
// Shard file format
// --------------------------------------------------------------------------
//
//	magic        [8]byte  "LOADIT\x00\x01"
//	version      uint8
//	compression  uint8 length + name bytes
//	item count   uint32
//	crc32        uint32   IEEE checksum of the payload
//	payload len  uint64
//	payload      compressed codec output
//
// All integers are little endian.

var shardMagic = [8]byte{'L', 'O', 'A', 'D', 'I', 'T', 0x00, 0x01}

const shardFormatVersion uint8 = 1

// shardHeader is the decoded fixed part of a shard file
type shardHeader struct {
	version     uint8
	compression string
	count       uint32
	checksum    uint32
}

// encodeShardFile frames payload with the shard header
func encodeShardFile(compression string, count int, payload []byte) ([]byte, error) {
	if len(compression) > 255 {
		return nil, fmt.Errorf("compression name too long: %q", compression)
	}

	size := len(shardMagic) + 1 + 1 + len(compression) + 4 + 4 + 8 + len(payload)
	buf := make([]byte, 0, size)

	buf = append(buf, shardMagic[:]...)
	buf = append(buf, shardFormatVersion)
	buf = append(buf, uint8(len(compression)))
	buf = append(buf, compression...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(count))
	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(payload))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(payload)))
	buf = append(buf, payload...)

	return buf, nil
}

// decodeShardFile validates the header and checksum and returns the payload
func decodeShardFile(data []byte) (shardHeader, []byte, error) {
	var h shardHeader
	corrupt := func(format string, args ...interface{}) (shardHeader, []byte, error) {
		return h, nil, common.NewError(common.ErrCCorrupt, format, args...)
	}

	if len(data) < len(shardMagic)+2 {
		return corrupt("shard file too short (%d bytes)", len(data))
	}
	if [8]byte(data[:8]) != shardMagic {
		return corrupt("invalid magic number")
	}
	pos := len(shardMagic)

	h.version = data[pos]
	pos++
	if h.version != shardFormatVersion {
		return corrupt("unsupported shard format version %d", h.version)
	}

	nameLen := int(data[pos])
	pos++
	if len(data) < pos+nameLen+16 {
		return corrupt("truncated shard header")
	}
	h.compression = string(data[pos : pos+nameLen])
	pos += nameLen

	h.count = binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	h.checksum = binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	payloadLen := binary.LittleEndian.Uint64(data[pos:])
	pos += 8

	if uint64(len(data)-pos) != payloadLen {
		return corrupt("payload length mismatch: header says %d, file has %d", payloadLen, len(data)-pos)
	}
	payload := data[pos:]
	if crc32.ChecksumIEEE(payload) != h.checksum {
		return corrupt("checksum mismatch")
	}

	return h, payload, nil
}

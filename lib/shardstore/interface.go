package shardstore

import (
	"encoding/json"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IShardStore is the persistent store of fixed-capacity shards keyed by their start offset.
// All methods are safe for concurrent use.
type IShardStore[T any] interface {

	// Write persists the shard starting at start. start must be a multiple of
	// MaxShardLength() and the shard must hold between 1 and MaxShardLength() items.
	// Rewriting a shard replaces it (last write wins).
	Write(start int, items []T) (err error)

	// Read returns a previously written shard. ok is false if the shard does not exist.
	// Read never triggers production.
	Read(start int) (items []T, ok bool, err error)

	// Has reports whether the shard starting at start exists.
	Has(start int) (ok bool)

	// Length returns the finalized dataset length if it is known.
	Length() (length int, known bool)

	// FinalizeLength fixes the dataset length. Calling it again with the same value
	// is a no-op, a different value fails with common.ErrLengthConflict.
	FinalizeLength(length int) (err error)

	// AllPresent reports whether every shard up to Length() exists.
	// Fails with common.ErrOutOfRange semantics if the length is not known yet.
	AllPresent() (ok bool, err error)

	// Info decodes the user metadata into dst. dst is left untouched if none was set.
	Info(dst any) (err error)

	// SetInfo replaces the user metadata with the JSON encoding of v.
	SetInfo(v any) (err error)

	// MaxShardLength returns the number of items of every shard except the last.
	MaxShardLength() (n int)

	// Meta returns a snapshot of the persisted store metadata.
	Meta() (meta Meta)

	// Close releases the resources held by the store.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

// Meta is the store wide metadata persisted in meta.json
type Meta struct {
	Version        int             `json:"version"`
	MaxShardLength int             `json:"max_shard_length"`
	Length         *int            `json:"length"`
	Codec          string          `json:"codec"`
	Compression    string          `json:"compression"`
	CreatedAt      time.Time       `json:"created_at"`
	Info           json.RawMessage `json:"info,omitempty"`
}

// LengthKnown returns the finalized length and whether it is set
func (m Meta) LengthKnown() (int, bool) {
	if m.Length == nil {
		return 0, false
	}
	return *m.Length, true
}

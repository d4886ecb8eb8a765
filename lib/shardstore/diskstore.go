package shardstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/loadit/lib/codec"
	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/util"
	"github.com/VictoriaMetrics/metrics"
	"github.com/gofrs/flock"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("shardstore")

const shardFileSuffix = ".shard"

// diskStore implements IShardStore with one file per shard below <root>/shards
type diskStore[T any] struct {
	rootDir   string
	shardsDir string
	mode      os.FileMode

	codec      codec.Codec[T]
	compressor codec.Compressor

	// guards meta, the flock additionally serializes metadata writes across processes
	metaMu   sync.RWMutex
	meta     Meta
	metaLock *flock.Flock

	// shard starts known to exist on disk
	present *xsync.MapOf[int, struct{}]

	// decompressors for shards written with another compression than the current one
	decompressors *xsync.MapOf[string, codec.Compressor]

	memory *byteLRU[T]

	reads        *metrics.Counter
	readMisses   *metrics.Counter
	writes       *metrics.Counter
	bytesWritten *metrics.Counter
}

// Open opens the store at rootDir, creating it if it does not exist.
// For an existing store the persisted shard length and compression win over opts.
func Open[T any](rootDir string, opts Options[T]) (IShardStore[T], error) {
	if opts.Codec == nil {
		opts.Codec = codec.NewJSONCodec[T]()
	}
	if opts.Mode == 0 {
		opts.Mode = defaultFileMode
	}

	s := &diskStore[T]{
		rootDir:       rootDir,
		shardsDir:     filepath.Join(rootDir, shardsDirName),
		mode:          opts.Mode,
		codec:         opts.Codec,
		present:       xsync.NewMapOf[int, struct{}](),
		decompressors: xsync.NewMapOf[string, codec.Compressor](),
		memory:        newByteLRU[T](opts.MemoryLimit),
	}

	if err := os.MkdirAll(s.shardsDir, dirMode(opts.Mode)); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s.metaLock = flock.New(filepath.Join(rootDir, metaLockFileName))
	if err := s.metaLock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock metadata: %w", err)
	}
	err := s.initMeta(opts)
	s.metaLock.Unlock()
	if err != nil {
		return nil, err
	}

	if s.compressor, err = codec.NewCompressor(s.meta.Compression); err != nil {
		return nil, common.WrapError(common.ErrCConfiguration, err, "store %s", rootDir)
	}
	s.decompressors.Store(s.compressor.Name(), s.compressor)

	if err := s.scanShards(); err != nil {
		return nil, err
	}

	label := fmt.Sprintf(`{store="%x"}`, util.HashString(rootDir, 0))
	s.reads = metrics.GetOrCreateCounter("loadit_store_reads_total" + label)
	s.readMisses = metrics.GetOrCreateCounter("loadit_store_read_misses_total" + label)
	s.writes = metrics.GetOrCreateCounter("loadit_store_writes_total" + label)
	s.bytesWritten = metrics.GetOrCreateCounter("loadit_store_written_bytes_total" + label)

	log.Infof("opened store %s (max shard length %d, %d shards present)", rootDir, s.meta.MaxShardLength, s.present.Size())
	return s, nil
}

// initMeta loads meta.json or creates it from opts. Callers must hold metaLock.
func (s *diskStore[T]) initMeta(opts Options[T]) error {
	meta, exists, err := readMetaFile(s.rootDir)
	if err != nil {
		return err
	}

	if !exists {
		if opts.MaxShardLength < 1 {
			return common.NewError(common.ErrCConfiguration, "max shard length must be at least 1, got %d", opts.MaxShardLength)
		}
		compressor, err := codec.NewCompressor(opts.Compression)
		if err != nil {
			return common.WrapError(common.ErrCConfiguration, err, "invalid compression")
		}
		s.meta = Meta{
			Version:        metaFormatVersion,
			MaxShardLength: opts.MaxShardLength,
			Codec:          opts.Codec.Name(),
			Compression:    compressor.Name(),
			CreatedAt:      time.Now().UTC(),
		}
		return writeMetaFile(s.rootDir, s.meta, s.mode)
	}

	if meta.Version != metaFormatVersion {
		return common.NewError(common.ErrCConfiguration, "unsupported store version %d", meta.Version)
	}
	if meta.MaxShardLength < 1 {
		return common.NewError(common.ErrCCorrupt, "invalid max shard length %d in %s", meta.MaxShardLength, metaFileName)
	}
	if meta.Codec != opts.Codec.Name() {
		return common.NewError(common.ErrCConfiguration, "store was written with codec %q, got %q", meta.Codec, opts.Codec.Name())
	}
	if opts.MaxShardLength > 0 && opts.MaxShardLength != meta.MaxShardLength {
		log.Warningf("store %s exists with max shard length %d, ignoring configured %d", s.rootDir, meta.MaxShardLength, opts.MaxShardLength)
	}
	if opts.Compression != "" && !strings.EqualFold(opts.Compression, meta.Compression) {
		log.Warningf("store %s exists with compression %q, ignoring configured %q", s.rootDir, meta.Compression, opts.Compression)
	}

	s.meta = meta
	return nil
}

// scanShards fills the presence index from the shards directory
func (s *diskStore[T]) scanShards() error {
	entries, err := os.ReadDir(s.shardsDir)
	if err != nil {
		return fmt.Errorf("failed to list shards: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, shardFileSuffix) {
			continue
		}
		start, err := strconv.Atoi(strings.TrimSuffix(name, shardFileSuffix))
		if err != nil {
			log.Debugf("skipping foreign file %s", name)
			continue
		}
		s.present.Store(start, struct{}{})
	}
	return nil
}

func (s *diskStore[T]) shardPath(start int) string {
	return filepath.Join(s.shardsDir, fmt.Sprintf("%016d%s", start, shardFileSuffix))
}

// ---- Shards ----

func (s *diskStore[T]) Write(start int, items []T) error {
	msl := s.MaxShardLength()

	if start < 0 || start%msl != 0 {
		return common.NewError(common.ErrCMisaligned, "shard start %d is not a multiple of %d", start, msl)
	}
	if len(items) == 0 || len(items) > msl {
		return common.NewError(common.ErrCInternal, "shard at %d must hold 1 to %d items, got %d", start, msl, len(items))
	}
	if length, known := s.Length(); known && start >= length {
		return common.OutOfRange(start)
	}

	encoded, err := s.codec.Encode(items)
	if err != nil {
		return fmt.Errorf("failed to encode shard %d: %w", start, err)
	}
	payload, err := s.compressor.Compress(encoded)
	if err != nil {
		return fmt.Errorf("failed to compress shard %d: %w", start, err)
	}
	data, err := encodeShardFile(s.compressor.Name(), len(items), payload)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(s.shardsDir, s.shardPath(start), data, s.mode); err != nil {
		return fmt.Errorf("failed to write shard %d: %w", start, err)
	}

	s.present.Store(start, struct{}{})
	s.memory.add(start, items, int64(len(encoded)))
	s.writes.Inc()
	s.bytesWritten.Add(len(data))

	log.Debugf("wrote shard %d (%d items, %d bytes)", start, len(items), len(data))
	return nil
}

func (s *diskStore[T]) Read(start int) ([]T, bool, error) {
	s.reads.Inc()

	if items, ok := s.memory.get(start); ok {
		return items, true, nil
	}

	data, err := os.ReadFile(s.shardPath(start))
	if errors.Is(err, fs.ErrNotExist) {
		s.readMisses.Inc()
		s.present.Delete(start)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read shard %d: %w", start, err)
	}

	header, payload, err := decodeShardFile(data)
	if err != nil {
		return nil, false, fmt.Errorf("shard %d: %w", start, err)
	}

	decompressor, err := s.decompressor(header.compression)
	if err != nil {
		return nil, false, common.WrapError(common.ErrCCorrupt, err, "shard %d", start)
	}
	encoded, err := decompressor.Decompress(payload)
	if err != nil {
		return nil, false, common.WrapError(common.ErrCCorrupt, err, "failed to decompress shard %d", start)
	}
	items, err := s.codec.Decode(encoded)
	if err != nil {
		return nil, false, common.WrapError(common.ErrCCorrupt, err, "failed to decode shard %d", start)
	}
	if len(items) != int(header.count) {
		return nil, false, common.NewError(common.ErrCCorrupt, "shard %d holds %d items, header says %d", start, len(items), header.count)
	}

	s.present.Store(start, struct{}{})
	s.memory.add(start, items, int64(len(encoded)))
	return items, true, nil
}

func (s *diskStore[T]) decompressor(name string) (codec.Compressor, error) {
	if c, ok := s.decompressors.Load(name); ok {
		return c, nil
	}
	c, err := codec.NewCompressor(name)
	if err != nil {
		return nil, err
	}
	s.decompressors.Store(name, c)
	return c, nil
}

func (s *diskStore[T]) Has(start int) bool {
	if _, ok := s.present.Load(start); ok {
		return true
	}
	if _, err := os.Stat(s.shardPath(start)); err == nil {
		s.present.Store(start, struct{}{})
		return true
	}
	return false
}

func (s *diskStore[T]) AllPresent() (bool, error) {
	length, known := s.Length()
	if !known {
		return false, common.NewError(common.ErrCUnbounded, "length of store %s is not known yet", s.rootDir)
	}
	msl := s.MaxShardLength()
	for start := 0; start < length; start += msl {
		if !s.Has(start) {
			return false, nil
		}
	}
	return true, nil
}

// ---- Metadata ----

func (s *diskStore[T]) Length() (int, bool) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	return s.meta.LengthKnown()
}

func (s *diskStore[T]) FinalizeLength(length int) error {
	if length < 0 {
		return common.NewError(common.ErrCInternal, "negative length %d", length)
	}
	return s.updateMeta(func(meta *Meta) error {
		if current, known := meta.LengthKnown(); known {
			if current == length {
				return errUnchanged
			}
			return common.NewError(common.ErrCLengthConflict, "length is already finalized as %d, got %d", current, length)
		}
		meta.Length = &length
		log.Infof("finalized length of store %s: %d", s.rootDir, length)
		return nil
	})
}

func (s *diskStore[T]) Info(dst any) error {
	s.metaMu.RLock()
	info := s.meta.Info
	s.metaMu.RUnlock()

	if len(info) == 0 {
		return nil
	}
	return json.Unmarshal(info, dst)
}

func (s *diskStore[T]) SetInfo(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode info: %w", err)
	}
	return s.updateMeta(func(meta *Meta) error {
		meta.Info = raw
		return nil
	})
}

func (s *diskStore[T]) MaxShardLength() int {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	return s.meta.MaxShardLength
}

func (s *diskStore[T]) Meta() Meta {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()

	meta := s.meta
	if meta.Length != nil {
		length := *meta.Length
		meta.Length = &length
	}
	meta.Info = append(json.RawMessage(nil), meta.Info...)
	return meta
}

func (s *diskStore[T]) Close() error {
	s.memory.purge()
	return s.metaLock.Close()
}

// errUnchanged lets an update function skip the write
var errUnchanged = errors.New("unchanged")

// updateMeta applies fn to the newest on-disk metadata and persists the result.
// Another process may have finalized the length in the meantime, so the file is
// re-read under the flock instead of trusting the in-memory copy.
func (s *diskStore[T]) updateMeta(fn func(meta *Meta) error) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	if err := s.metaLock.Lock(); err != nil {
		return fmt.Errorf("failed to lock metadata: %w", err)
	}
	defer s.metaLock.Unlock()

	meta, exists, err := readMetaFile(s.rootDir)
	if err != nil {
		return err
	}
	if !exists {
		meta = s.meta
	}

	if err := fn(&meta); err != nil {
		if errors.Is(err, errUnchanged) {
			s.meta = meta
			return nil
		}
		return err
	}

	if err := writeMetaFile(s.rootDir, meta, s.mode); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	s.meta = meta
	return nil
}

package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"

	"github.com/arjunbhat/seekarchive/buffer"
	"github.com/arjunbhat/seekarchive/cache"
	"github.com/arjunbhat/seekarchive/codec"
	"github.com/arjunbhat/seekarchive/codec/lz4codec"
	"github.com/arjunbhat/seekarchive/codec/zstdcodec"
	"github.com/arjunbhat/seekarchive/ioadapter"
	"github.com/arjunbhat/seekarchive/seektable"
)

// derivedEntrySize is the in-memory footprint of one parsed seek-table
// entry, used for the reader's memory-usage stat.
const derivedEntrySize = int(unsafe.Sizeof(seektable.DerivedEntry{}))

// registry lists the frame codecs a Reader can auto-detect by magic number.
var registry = []codec.Codec{zstdcodec.New(), lz4codec.New()}

// ReaderStats reports observable counters about an open Reader.
type ReaderStats struct {
	SeekTableMemory  int
	Frames           int64
	DecompressedSize uint64
	CacheMemory      int64
	CachedFrames     int
	BufferSize       int
}

// Reader provides random-access decompressed reads over an archive written
// by a Writer. A Reader is shareable: Pread may be called concurrently from
// multiple goroutines, each served by a single read/write lock guarding the
// frame cache and the codec's decompression context. Read, which advances
// an internal cursor, is not safe to call concurrently with itself.
type Reader struct {
	src   ioadapter.ReadSource
	table *seektable.Table
	kind  codec.Kind
	dec   codec.FrameDecoder

	cache *cache.Cache

	lock    sync.RWMutex
	workBuf *buffer.Buffer

	pos int64

	o readerOptions

	closed atomic.Bool
}

// ReaderOpen reads the trailer from src and returns a Reader ready to serve
// random-access reads. The frame codec is auto-detected from the magic
// number of the first compressed frame unless WithCodecHint overrides it.
func ReaderOpen(src ioadapter.ReadSource, opts ...ROption) (*Reader, error) {
	if src == nil {
		return nil, newError(InvalidArgument, fmt.Errorf("reader: nil source"))
	}

	var o readerOptions
	o.setDefault()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	size, err := src.Size()
	if err != nil {
		return nil, newError(IoFailure, fmt.Errorf("reader: failed to get source size: %w", err))
	}

	table, err := seektable.Parse(src, size)
	if err != nil {
		kind := IoFailure
		switch {
		case errors.Is(err, seektable.ErrMalformedTrailer):
			kind = MalformedTrailer
		case errors.Is(err, ioadapter.ErrShortRead):
			kind = ShortRead
		}
		return nil, newError(kind, fmt.Errorf("reader: failed to parse trailer: %w", err))
	}

	c, err := detectCodec(src, table, o)
	if err != nil {
		return nil, err
	}

	dec, err := c.NewDecoder(codec.DecoderOptions{Checksum: o.checksum})
	if err != nil {
		return nil, newError(CodecFailure, fmt.Errorf("reader: failed to create decoder: %w", err))
	}

	r := &Reader{
		src:     src,
		table:   table,
		kind:    c.Kind(),
		dec:     dec,
		cache:   cache.New(o.cacheCapacity),
		workBuf: buffer.New(0, nil),
		o:       o,
	}
	return r, nil
}

func detectCodec(src ioadapter.ReadSource, table *seektable.Table, o readerOptions) (codec.Codec, error) {
	if o.hintSet {
		c, ok := codec.ByMagic(magicFor(o.codecHint), registry)
		if !ok {
			return nil, newError(InvalidArgument, fmt.Errorf("reader: unknown codec hint: %v", o.codecHint))
		}
		return c, nil
	}

	if table.CompressedSize() == 0 {
		// Empty archive: no frame to sniff, and the codec is never
		// exercised, so any registered codec is a valid placeholder.
		return registry[0], nil
	}

	var magicBuf [4]byte
	if _, err := src.Pread(magicBuf[:], 0); err != nil {
		return nil, newError(ShortRead, fmt.Errorf("reader: failed to read codec magic: %w", err))
	}
	magic := binary.LittleEndian.Uint32(magicBuf[:])
	c, ok := codec.ByMagic(magic, registry)
	if !ok {
		return nil, newError(MalformedTrailer, fmt.Errorf("reader: unrecognized frame magic: %#x", magic))
	}
	return c, nil
}

func magicFor(k codec.Kind) uint32 {
	if k == codec.LZ4 {
		return codec.LZ4FrameMagic
	}
	return codec.ZSTDFrameMagic
}

// Pread reads up to len(buf) decompressed bytes starting at offset into
// buf, returning the number of bytes produced. An offset at or past the end
// of the decompressed archive is not an error; it returns 0, nil. Pread is
// safe to call concurrently from multiple goroutines.
func (r *Reader) Pread(buf []byte, offset int64) (int, error) {
	if r.closed.Load() {
		return 0, newError(InvalidArgument, fmt.Errorf("reader: read after close"))
	}
	if offset < 0 {
		return 0, newError(InvalidArgument, fmt.Errorf("reader: negative offset: %d", offset))
	}
	if len(buf) == 0 {
		return 0, nil
	}

	entry, offInFrame, ok := r.table.Locate(uint64(offset))
	if !ok {
		return 0, nil
	}

	return r.fetch(entry, offInFrame, buf)
}

// Read reads from the reader's internal cursor and advances it by the
// number of bytes returned. Not safe to call concurrently with itself.
func (r *Reader) Read(buf []byte) (int, error) {
	n, err := r.Pread(buf, r.pos)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	r.pos += int64(n)
	return n, nil
}

// fetch implements the shared/exclusive double-check: try a cache hit under
// the shared lock; on miss release it, acquire the exclusive lock, and
// re-check before fetching and decompressing, since another goroutine may
// have filled the cache while the lock was briefly released. When the cache
// is disabled the exclusive lock is held for the whole fetch, decoding
// directly into a reused work buffer.
func (r *Reader) fetch(entry seektable.DerivedEntry, offInFrame uint64, dst []byte) (int, error) {
	if r.cache.Enabled() {
		r.lock.RLock()
		if data, ok := r.cache.Find(uint32(entry.Index)); ok {
			n := copy(dst, data[offInFrame:])
			r.lock.RUnlock()
			return n, nil
		}
		r.lock.RUnlock()

		r.lock.Lock()
		defer r.lock.Unlock()

		if data, ok := r.cache.Find(uint32(entry.Index)); ok {
			return copy(dst, data[offInFrame:]), nil
		}

		data := make([]byte, entry.DecompressedSize)
		if err := r.decodeEntry(entry, data); err != nil {
			return 0, err
		}
		r.cache.Insert(cache.Frame{Index: uint32(entry.Index), Data: data})
		return copy(dst, data[offInFrame:]), nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.workBuf.Resize(int(entry.DecompressedSize))
	if err := r.decodeEntry(entry, r.workBuf.Data()); err != nil {
		return 0, err
	}
	return copy(dst, r.workBuf.Data()[offInFrame:]), nil
}

// decodeEntry fetches the compressed bytes for one seek-table entry and
// decompresses them into dst, which must have length entry.DecompressedSize.
// When the entry coalesces multiple frames (frames_per_ste > 1), the whole
// compressed range is handed to the codec in one call; the codec's own
// streaming decoder walks the internal frame boundaries, so no discard loop
// is needed here.
func (r *Reader) decodeEntry(entry seektable.DerivedEntry, dst []byte) error {
	if entry.CompressedSize > seektable.MaxDecoderFrameSize {
		return newError(InvalidArgument, fmt.Errorf("reader: compressed entry too large: %d", entry.CompressedSize))
	}

	compressed := make([]byte, entry.CompressedSize)
	if _, err := r.src.Pread(compressed, int64(entry.CompOffset)); err != nil {
		kind := IoFailure
		if errors.Is(err, ioadapter.ErrShortRead) {
			kind = ShortRead
		}
		return newError(kind, fmt.Errorf("reader: failed to read compressed frame at %d: %w", entry.CompOffset, err))
	}

	if err := r.dec.DecodeInto(dst, compressed); err != nil {
		r.dec.Reset()
		return newError(CodecFailure, fmt.Errorf("reader: failed to decompress frame at %d: %w", entry.CompOffset, err))
	}

	if r.table.ChecksumsValid && r.o.checksum {
		if got := uint32(xxhash.Sum64(dst)); got != entry.Checksum {
			return newError(MalformedTrailer, fmt.Errorf("reader: checksum mismatch at entry %d: got %#x want %#x", entry.Index, got, entry.Checksum))
		}
	}
	return nil
}

// Close marks the reader closed. Idempotent; safe to call on an
// already-closed reader.
func (r *Reader) Close() error {
	if r.closed.CAS(false, true) {
		r.lock.Lock()
		r.dec.Reset()
		r.lock.Unlock()
	}
	return nil
}

// Stats reports observable counters about the reader and its cache.
func (r *Reader) Stats() ReaderStats {
	return ReaderStats{
		SeekTableMemory:  len(r.table.Entries) * derivedEntrySize,
		Frames:           r.table.NumFrames(),
		DecompressedSize: r.table.DecompressedSize(),
		CacheMemory:      r.cache.MemoryUsage(),
		CachedFrames:     r.cache.Entries(),
		BufferSize:       r.workBuf.Capacity(),
	}
}

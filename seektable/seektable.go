// Package seektable implements the wire-exact seek-table trailer used to
// index frames in a seekable archive: encoding (resumable, for a chunked
// writer), parsing, and the offset-to-frame binary search.
//
// Wire format (little-endian throughout), matching the upstream ZSTD
// seekable-format skippable frame:
//
//	skippable header (8 bytes): magic=0x184D2A5E, payload size
//	N entries (8 or 12 bytes each): cSize, dSize, [checksum]
//	footer (9 bytes): N, descriptor (bit7=checksum flag), magic=0x8F92EAB1
package seektable

import (
	"encoding/binary"
	"fmt"

	"github.com/arjunbhat/seekarchive/ioadapter"
)

const (
	// SkippableMagic is the ZSTD skippable-frame magic with the seekable
	// format's reserved tag (0xE) baked into the low nibble.
	SkippableMagic uint32 = 0x184D2A5E
	// Magic is the seek-table footer's own magic number.
	Magic uint32 = 0x8F92EAB1

	headerSize       = 8 // magic + payload size
	footerSize       = 9 // N + descriptor + magic
	entrySizeNoCksum = 8
	entrySizeCksum   = 12

	// MaxDecoderFrameSize bounds any single skippable-frame read, guarding
	// against OOM from untrusted input.
	MaxDecoderFrameSize = 128 << 20
)

// Entry is one (cSize, dSize, checksum?) tuple, in emission order, as logged
// by the writer. Checksum is only meaningful when the log carries checksums.
type Entry struct {
	CompressedSize   uint32
	DecompressedSize uint32
	Checksum         uint32
}

func (e Entry) marshal(dst []byte, withChecksum bool) {
	binary.LittleEndian.PutUint32(dst[0:], e.CompressedSize)
	binary.LittleEndian.PutUint32(dst[4:], e.DecompressedSize)
	if withChecksum {
		binary.LittleEndian.PutUint32(dst[8:], e.Checksum)
	}
}

// DerivedEntry is the reader-side, post-processed form: cumulative offsets
// plus the frame's own sizes, suitable for binary search and for fetching
// the frame's compressed bytes. Index N (one past the last real frame) is
// the sentinel holding the archive totals.
type DerivedEntry struct {
	Index            int64
	CompOffset       uint64
	DecompOffset     uint64
	CompressedSize   uint32
	DecompressedSize uint32
	Checksum         uint32
}

// Table is the parsed, searchable seek table.
type Table struct {
	// Entries has NumFrames()+1 elements; the last is the sentinel carrying
	// totals (CompOffset/DecompOffset equal to the archive's compressed and
	// decompressed length).
	Entries        []DerivedEntry
	ChecksumsValid bool
}

// NumFrames returns the number of real (non-sentinel) entries.
func (t *Table) NumFrames() int64 {
	if len(t.Entries) == 0 {
		return 0
	}
	return int64(len(t.Entries) - 1)
}

// DecompressedSize returns the total decompressed length of the archive.
func (t *Table) DecompressedSize() uint64 {
	if len(t.Entries) == 0 {
		return 0
	}
	return t.Entries[len(t.Entries)-1].DecompOffset
}

// CompressedSize returns the length of the compressed data prefix (i.e.
// excluding the trailer itself).
func (t *Table) CompressedSize() uint64 {
	if len(t.Entries) == 0 {
		return 0
	}
	return t.Entries[len(t.Entries)-1].CompOffset
}

// Locate runs a classical binary search: find the greatest entry i with
// Entries[i].DecompOffset <= offset. Returns ok=false when offset is at or
// past the end of the decompressed archive.
func (t *Table) Locate(offset uint64) (entry DerivedEntry, offsetInFrame uint64, ok bool) {
	n := len(t.Entries)
	if n < 2 || offset >= t.Entries[n-1].DecompOffset {
		return DerivedEntry{}, 0, false
	}

	lo, hi := 0, n-1 // entries[lo].DecompOffset <= offset invariant once lo advances past 0
	// lo starts as a candidate (index 0 always has DecompOffset == 0 <= offset),
	// hi starts one past the last real frame (the sentinel, always > offset here).
	for lo+1 < hi {
		mid := lo + (hi-lo)/2
		if t.Entries[mid].DecompOffset <= offset {
			lo = mid
		} else {
			hi = mid
		}
	}

	e := t.Entries[lo]
	return e, offset - e.DecompOffset, true
}

// Log accumulates frame tuples in emission order during writing. Appending
// is its only mutation.
type Log struct {
	entries      []Entry
	withChecksum bool
}

// NewLog creates an empty frame log. withChecksum controls whether encoded
// entries carry a 4-byte checksum (12 bytes/entry) or not (8 bytes/entry).
func NewLog(withChecksum bool) *Log {
	return &Log{withChecksum: withChecksum}
}

// Append records one more (cSize, dSize, checksum) tuple.
func (l *Log) Append(e Entry) {
	l.entries = append(l.entries, e)
}

// Len returns the number of frames logged so far.
func (l *Log) Len() int {
	return len(l.entries)
}

// Entries exposes the raw backing slice; callers must not mutate it.
func (l *Log) Entries() []Entry {
	return l.entries
}

// WithChecksum reports whether this log's entries carry checksums.
func (l *Log) WithChecksum() bool {
	return l.withChecksum
}

func (l *Log) entrySize() int {
	if l.withChecksum {
		return entrySizeCksum
	}
	return entrySizeNoCksum
}

// EncodedLen returns the exact byte length of the trailer this log encodes
// to: 8 + (8 or 12)*N + 9.
func (l *Log) EncodedLen() int {
	return headerSize + len(l.entries)*l.entrySize() + footerSize
}

// Encoder streams the trailer out in caller-sized chunks, resuming across
// short writes the same way a chunked sink might only accept part of a
// buffer at a time. Call WriteTo repeatedly until it reports done=true.
type Encoder struct {
	log      *Log
	pos      int // byte position within the logical trailer
	entryIdx int // index of the next entry whose bytes may still be pending
}

// NewEncoder returns a resumable encoder over the given log. The log must
// not be mutated for the lifetime of the encoder.
func NewEncoder(log *Log) *Encoder {
	return &Encoder{log: log}
}

// WriteTo fills as much of dst as it can with the next slice of the trailer,
// returning the number of bytes written and whether the trailer is now
// fully emitted. The encoder tracks (seekTablePos, seekTableIndex)
// internally so a caller can call it again with a fresh buffer after a
// short write.
func (e *Encoder) WriteTo(dst []byte) (n int, done bool) {
	total := e.log.EncodedLen()
	entrySize := e.log.entrySize()

	for n < len(dst) && e.pos < total {
		switch {
		case e.pos < headerSize:
			var hdr [headerSize]byte
			binary.LittleEndian.PutUint32(hdr[0:], SkippableMagic)
			binary.LittleEndian.PutUint32(hdr[4:], uint32(total-headerSize))
			n += e.copyFrom(hdr[:], dst[n:], &e.pos, e.pos)

		case e.pos < headerSize+len(e.log.entries)*entrySize:
			offsetIntoEntries := e.pos - headerSize
			e.entryIdx = offsetIntoEntries / entrySize
			entryOff := offsetIntoEntries % entrySize

			var buf [entrySizeCksum]byte
			e.log.entries[e.entryIdx].marshal(buf[:], e.log.withChecksum)
			n += e.copyFrom(buf[:entrySize], dst[n:], &e.pos, entryOff)

		default:
			footerOff := e.pos - headerSize - len(e.log.entries)*entrySize
			var ftr [footerSize]byte
			binary.LittleEndian.PutUint32(ftr[0:], uint32(len(e.log.entries)))
			if e.log.withChecksum {
				ftr[4] |= 1 << 7
			}
			binary.LittleEndian.PutUint32(ftr[5:], Magic)
			n += e.copyFrom(ftr[:], dst[n:], &e.pos, footerOff)
		}
	}

	return n, e.pos >= total
}

// copyFrom copies from src[srcOff:] into dst, advancing *pos by the number
// of bytes copied, and returns that count.
func (e *Encoder) copyFrom(src, dst []byte, pos *int, srcOff int) int {
	n := copy(dst, src[srcOff:])
	*pos += n
	return n
}

// ErrMalformedTrailer is returned by Parse for any magic/size/reserved-bit
// mismatch in the trailer.
var ErrMalformedTrailer = fmt.Errorf("seektable: malformed trailer")

// Parse reads the trailer from the end of a ReadSource whose total size is
// fsize, returning the searchable Table. Any short read is surfaced as
// ioadapter.ErrShortRead; any magic/size/reserved-bit mismatch is wrapped in
// ErrMalformedTrailer.
func Parse(src ioadapter.ReadSource, fsize int64) (*Table, error) {
	if fsize < footerSize {
		return nil, fmt.Errorf("%w: file too small for footer: %d bytes", ErrMalformedTrailer, fsize)
	}

	footerBuf := make([]byte, footerSize)
	if _, err := src.Pread(footerBuf, fsize-footerSize); err != nil {
		return nil, fmt.Errorf("failed to read trailer footer: %w", err)
	}

	numFrames := binary.LittleEndian.Uint32(footerBuf[0:4])
	descriptor := footerBuf[4]
	if descriptor&0x7f != 0 {
		return nil, fmt.Errorf("%w: reserved descriptor bits set: %#x", ErrMalformedTrailer, descriptor)
	}
	withChecksum := descriptor&(1<<7) != 0
	magic := binary.LittleEndian.Uint32(footerBuf[5:9])
	if magic != Magic {
		return nil, fmt.Errorf("%w: footer magic mismatch: got %#x want %#x", ErrMalformedTrailer, magic, Magic)
	}

	entrySize := int64(entrySizeNoCksum)
	if withChecksum {
		entrySize = entrySizeCksum
	}
	trailerSize := int64(headerSize) + int64(numFrames)*entrySize + footerSize
	if trailerSize > MaxDecoderFrameSize {
		return nil, fmt.Errorf("%w: trailer too large: %d bytes", ErrMalformedTrailer, trailerSize)
	}
	if trailerSize > fsize {
		return nil, fmt.Errorf("%w: trailer larger than file: %d > %d", ErrMalformedTrailer, trailerSize, fsize)
	}

	hdrBuf := make([]byte, headerSize)
	if _, err := src.Pread(hdrBuf, fsize-trailerSize); err != nil {
		return nil, fmt.Errorf("failed to read skippable header: %w", err)
	}
	skipMagic := binary.LittleEndian.Uint32(hdrBuf[0:4])
	if skipMagic != SkippableMagic {
		return nil, fmt.Errorf("%w: skippable magic mismatch: got %#x want %#x", ErrMalformedTrailer, skipMagic, SkippableMagic)
	}
	payloadSize := binary.LittleEndian.Uint32(hdrBuf[4:8])
	if int64(payloadSize) != trailerSize-headerSize {
		return nil, fmt.Errorf("%w: payload size mismatch: got %d want %d", ErrMalformedTrailer, payloadSize, trailerSize-headerSize)
	}

	entries := make([]DerivedEntry, 0, numFrames+1)
	var compOffset, decompOffset uint64

	const chunkEntries = 4096 / entrySizeCksum
	chunkBuf := make([]byte, 0, chunkEntries*int(entrySize))
	remaining := int64(numFrames)
	pos := fsize - trailerSize + headerSize
	var idx int64
	for remaining > 0 {
		n := remaining
		if n > chunkEntries {
			n = chunkEntries
		}
		need := int(n) * int(entrySize)
		if cap(chunkBuf) < need {
			chunkBuf = make([]byte, need)
		}
		buf := chunkBuf[:need]
		if _, err := src.Pread(buf, pos); err != nil {
			return nil, fmt.Errorf("failed to read seek table entries: %w", err)
		}
		pos += int64(need)

		for off := 0; off < need; off += int(entrySize) {
			cSize := binary.LittleEndian.Uint32(buf[off:])
			dSize := binary.LittleEndian.Uint32(buf[off+4:])
			var checksum uint32
			if withChecksum {
				checksum = binary.LittleEndian.Uint32(buf[off+8:])
			}

			entries = append(entries, DerivedEntry{
				Index:            idx,
				CompOffset:       compOffset,
				DecompOffset:     decompOffset,
				CompressedSize:   cSize,
				DecompressedSize: dSize,
				Checksum:         checksum,
			})
			compOffset += uint64(cSize)
			decompOffset += uint64(dSize)
			idx++
		}
		remaining -= n
	}

	// Sentinel carrying the totals.
	entries = append(entries, DerivedEntry{
		Index:        idx,
		CompOffset:   compOffset,
		DecompOffset: decompOffset,
	})

	return &Table{Entries: entries, ChecksumsValid: withChecksum}, nil
}

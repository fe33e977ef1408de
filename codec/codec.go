// Package codec defines the abstraction over frame compressors: a small
// interface per variant instead of a tagged union with a switch, with
// auto-detection by magic number choosing the variant at reader-open time.
package codec

import "fmt"

// Kind identifies which frame codec an archive uses.
type Kind int

const (
	ZSTD Kind = iota
	LZ4
)

func (k Kind) String() string {
	switch k {
	case ZSTD:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("codec.Kind(%d)", int(k))
	}
}

// Frame magic numbers used for auto-detection.
const (
	ZSTDFrameMagic uint32 = 0xFD2FB528
	LZ4FrameMagic  uint32 = 0x184D2204
)

// FrameEncoder compresses independent, self-delimiting frames. One
// FrameEncoder instance may be reused across many frames.
type FrameEncoder interface {
	// CompressFrame compresses src into a single complete frame. It never
	// reuses memory from a previous call's return value, so the returned
	// buffer is safe to retain.
	CompressFrame(src []byte) ([]byte, error)
	// CompressBound returns the codec's worst-case output size for an
	// n-byte input, used to size single-shot output buffers.
	CompressBound(n int) int
	Close() error
}

// FrameDecoder decompresses one or more concatenated, self-delimiting
// frames. Compressed bytes are never pre-split by frame; the codec's own
// streaming decoder walks frame boundaries internally as it is asked for
// more output.
type FrameDecoder interface {
	// DecodeInto decompresses src (which may contain one frame, or several
	// frames concatenated back-to-back when multiple frames are coalesced
	// into one seek-table entry) into dst, filling it exactly. The codec is
	// responsible for advancing across internal frame boundaries
	// transparently. dst is caller-owned and may be a reusable work buffer.
	DecodeInto(dst, src []byte) error
	// Reset clears any mid-stream state, e.g. after a prior DecodeInto
	// returned an error and left internal buffers dirty.
	Reset()
}

// Codec constructs encoders/decoders for one frame format and reports the
// magic number used to auto-detect it.
type Codec interface {
	Kind() Kind
	Magic() uint32
	NewEncoder(opts EncoderOptions) (FrameEncoder, error)
	NewDecoder(opts DecoderOptions) (FrameDecoder, error)
}

// EncoderOptions configures a FrameEncoder. Not all fields apply to all
// codecs; unused fields are ignored by the codec that doesn't support them.
type EncoderOptions struct {
	// CompressionLevel is codec-specific (e.g. zstd.EncoderLevel or an LZ4
	// compression level); 0 means "use the codec's default".
	CompressionLevel int
	// Checksum requests that the codec embed its own per-frame integrity
	// check, independent of the seek table's optional checksum field.
	Checksum bool

	// ZSTD-specific.
	NBWorkers int
	// CPUSet, if non-empty, is a set of logical CPU indices the encoder's
	// worker bring-up should be pinned to while spinning up. Linux-only;
	// ignored elsewhere.
	CPUSet []int

	// LZ4-specific.
	BlockSize int
	AutoFlush bool
}

// DecoderOptions configures a FrameDecoder.
type DecoderOptions struct {
	Checksum bool
}

// ByMagic returns the registered Codec whose Magic() matches the first four
// little-endian bytes of an archive, or ok=false if none match.
func ByMagic(magic uint32, registry []Codec) (Codec, bool) {
	for _, c := range registry {
		if c.Magic() == magic {
			return c, true
		}
	}
	return nil, false
}

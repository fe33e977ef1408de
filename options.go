package archive

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arjunbhat/seekarchive/codec"
)

// ZSTDParams configures the ZSTD frame codec.
type ZSTDParams struct {
	// NBWorkers requests concurrent ZSTD compression. 0 or 1 means
	// single-threaded.
	NBWorkers int
	// CompressionLevel is a zstd.EncoderLevel value; 0 selects the codec's
	// default.
	CompressionLevel int
	// CPUSet, if non-empty, pins the calling thread to these logical CPUs
	// while the multi-worker pool spins up. Linux-only; ignored elsewhere.
	CPUSet []int
}

// LZ4Params configures the LZ4 frame codec.
type LZ4Params struct {
	// CompressionLevel is on a 1..9 scale (9 slowest/smallest), mapped
	// internally onto pierrec/lz4's named levels. 0 selects lz4's fast mode.
	CompressionLevel int
	AutoFlush        bool
	BlockSize        int
}

type writerOptions struct {
	logger       *zap.Logger
	minFrameSize int
	framesPerSTE int
	checksum     bool
	kind         codec.Kind
	zstd         ZSTDParams
	lz4          LZ4Params
}

func (o *writerOptions) setDefault() {
	*o = writerOptions{
		logger:       zap.NewNop(),
		minFrameSize: 1 << 20,
		framesPerSTE: 10,
		checksum:     true,
		kind:         codec.ZSTD,
		lz4:          LZ4Params{AutoFlush: true, BlockSize: 64 << 10},
	}
}

// WOption configures a Writer at open time.
type WOption func(*writerOptions) error

// WithMinFrameSize sets the uncompressed-byte threshold at which the
// current frame is closed and compressed.
func WithMinFrameSize(n int) WOption {
	return func(o *writerOptions) error {
		if n <= 0 {
			return newError(InvalidArgument, fmt.Errorf("min frame size must be positive: %d", n))
		}
		o.minFrameSize = n
		return nil
	}
}

// WithFramesPerSTE sets how many compressed frames collapse into one
// seek-table entry. Larger values shrink the trailer at the cost of
// decoding up to framesPerSTE-1 extra frames on a lookup miss.
func WithFramesPerSTE(n int) WOption {
	return func(o *writerOptions) error {
		if n <= 0 {
			return newError(InvalidArgument, fmt.Errorf("frames per seek-table entry must be positive: %d", n))
		}
		o.framesPerSTE = n
		return nil
	}
}

// WithZSTD selects the ZSTD frame codec with the given parameters.
func WithZSTD(p ZSTDParams) WOption {
	return func(o *writerOptions) error {
		o.kind = codec.ZSTD
		o.zstd = p
		return nil
	}
}

// WithLZ4 selects the LZ4 frame codec with the given parameters.
func WithLZ4(p LZ4Params) WOption {
	return func(o *writerOptions) error {
		o.kind = codec.LZ4
		o.lz4 = p
		return nil
	}
}

// WithChecksum controls whether seek-table entries carry a per-STE content
// checksum. Enabled by default.
func WithChecksum(enabled bool) WOption {
	return func(o *writerOptions) error { o.checksum = enabled; return nil }
}

// WithWLogger installs a structured logger. The default is a no-op logger.
func WithWLogger(l *zap.Logger) WOption {
	return func(o *writerOptions) error { o.logger = l; return nil }
}

type readerOptions struct {
	logger        *zap.Logger
	cacheCapacity int
	checksum      bool
	codecHint     codec.Kind
	hintSet       bool
}

func (o *readerOptions) setDefault() {
	*o = readerOptions{
		logger:   zap.NewNop(),
		checksum: true,
	}
}

// ROption configures a Reader at open time.
type ROption func(*readerOptions) error

// WithCacheCapacity sets the number of decompressed frames the reader's LRU
// retains. 0 disables caching entirely.
func WithCacheCapacity(n int) ROption {
	return func(o *readerOptions) error {
		if n < 0 {
			return newError(InvalidArgument, fmt.Errorf("cache capacity must be >= 0: %d", n))
		}
		o.cacheCapacity = n
		return nil
	}
}

// WithCodecHint overrides magic-number auto-detection with an explicit
// codec kind.
func WithCodecHint(k codec.Kind) ROption {
	return func(o *readerOptions) error {
		o.codecHint = k
		o.hintSet = true
		return nil
	}
}

// WithRChecksum controls whether a per-STE checksum mismatch is reported as
// an error. Enabled by default; has no effect on archives written without
// checksums.
func WithRChecksum(enabled bool) ROption {
	return func(o *readerOptions) error { o.checksum = enabled; return nil }
}

// WithRLogger installs a structured logger. The default is a no-op logger.
func WithRLogger(l *zap.Logger) ROption {
	return func(o *readerOptions) error { o.logger = l; return nil }
}

// Package lz4codec adapts github.com/pierrec/lz4/v4 to the codec.Codec
// interface. pierrec/lz4's frame reader documents that its header "may
// change between Read() calls in case of concatenated frames" — i.e. it
// already walks multiple back-to-back LZ4 frames transparently, so a
// coalesced compressed range can be handed to it whole without pre-splitting
// by frame.
package lz4codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/arjunbhat/seekarchive/codec"
)

type lz4Codec struct{}

// New returns the LZ4 codec.Codec implementation.
func New() codec.Codec { return lz4Codec{} }

func (lz4Codec) Kind() codec.Kind { return codec.LZ4 }
func (lz4Codec) Magic() uint32    { return codec.LZ4FrameMagic }

func blockSizeOf(n int) lz4.BlockSize {
	switch {
	case n <= 0:
		return lz4.Block64Kb
	case n <= 64<<10:
		return lz4.Block64Kb
	case n <= 256<<10:
		return lz4.Block256Kb
	case n <= 1<<20:
		return lz4.Block1Mb
	default:
		return lz4.Block4Mb
	}
}

// namedLevels maps the 1..9 scale LZ4Params.CompressionLevel takes to
// pierrec/lz4's own named compression levels, whose underlying values are
// not 1..9 (Fast is 0, Level1..Level9 are spaced further apart) and which
// lz4.CompressionLevelOption rejects anything outside of.
var namedLevels = [...]lz4.CompressionLevel{
	1: lz4.Level1,
	2: lz4.Level2,
	3: lz4.Level3,
	4: lz4.Level4,
	5: lz4.Level5,
	6: lz4.Level6,
	7: lz4.Level7,
	8: lz4.Level8,
	9: lz4.Level9,
}

func (lz4Codec) NewEncoder(opts codec.EncoderOptions) (codec.FrameEncoder, error) {
	w := lz4.NewWriter(nil)
	applyOpts := []lz4.Option{
		lz4.BlockSizeOption(blockSizeOf(opts.BlockSize)),
		lz4.ChecksumOption(opts.Checksum),
	}
	if opts.CompressionLevel > 0 {
		level := lz4.Fast
		if opts.CompressionLevel >= 1 && opts.CompressionLevel <= 9 {
			level = namedLevels[opts.CompressionLevel]
		}
		applyOpts = append(applyOpts, lz4.CompressionLevelOption(level))
	}
	if err := w.Apply(applyOpts...); err != nil {
		return nil, fmt.Errorf("lz4codec: failed to configure encoder: %w", err)
	}
	return &frameEncoder{w: w, autoFlush: opts.AutoFlush}, nil
}

func (lz4Codec) NewDecoder(opts codec.DecoderOptions) (codec.FrameDecoder, error) {
	r := lz4.NewReader(nil)
	return &frameDecoder{r: r}, nil
}

type frameEncoder struct {
	w         *lz4.Writer
	autoFlush bool
}

func (f *frameEncoder) CompressFrame(src []byte) ([]byte, error) {
	var out bytes.Buffer
	f.w.Reset(&out)
	if _, err := f.w.Write(src); err != nil {
		return nil, fmt.Errorf("lz4codec: failed to write frame: %w", err)
	}
	if f.autoFlush {
		if err := f.w.Flush(); err != nil {
			return nil, fmt.Errorf("lz4codec: failed to flush frame: %w", err)
		}
	}
	if err := f.w.Close(); err != nil {
		return nil, fmt.Errorf("lz4codec: failed to close frame: %w", err)
	}
	return out.Bytes(), nil
}

// CompressBound mirrors LZ4_COMPRESSBOUND: worst case the input is
// incompressible and gets a small per-block expansion.
func (f *frameEncoder) CompressBound(n int) int {
	return n + n/255 + 16
}

func (f *frameEncoder) Close() error {
	return nil
}

type frameDecoder struct {
	r *lz4.Reader
}

func (f *frameDecoder) DecodeInto(dst, src []byte) error {
	f.r.Reset(bytes.NewReader(src))
	if _, err := io.ReadFull(f.r, dst); err != nil {
		return fmt.Errorf("lz4codec: failed to decode frame: %w", err)
	}
	return nil
}

func (f *frameDecoder) Reset() {
	f.r.Reset(nil)
}

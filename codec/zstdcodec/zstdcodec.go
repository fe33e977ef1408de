// Package zstdcodec adapts github.com/klauspost/compress/zstd to the
// codec.Codec interface: EncodeAll for one-shot frame compression, and a
// reset-per-call streaming Decoder for frame fetch.
package zstdcodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/arjunbhat/seekarchive/codec"
)

type zstdCodec struct{}

// New returns the ZSTD codec.Codec implementation.
func New() codec.Codec { return zstdCodec{} }

func (zstdCodec) Kind() codec.Kind { return codec.ZSTD }
func (zstdCodec) Magic() uint32    { return codec.ZSTDFrameMagic }

func (zstdCodec) NewEncoder(opts codec.EncoderOptions) (codec.FrameEncoder, error) {
	var eopts []zstd.EOption
	if opts.CompressionLevel > 0 {
		eopts = append(eopts, zstd.WithEncoderLevel(zstd.EncoderLevel(opts.CompressionLevel)))
	}
	if opts.NBWorkers > 0 {
		eopts = append(eopts, zstd.WithEncoderConcurrency(opts.NBWorkers))
	}
	if opts.Checksum {
		eopts = append(eopts, zstd.WithEncoderCRC(true))
	}

	enc, err := zstd.NewWriter(nil, eopts...)
	if err != nil {
		return nil, fmt.Errorf("zstdcodec: failed to create encoder: %w", err)
	}
	return &frameEncoder{enc: enc}, nil
}

func (zstdCodec) NewDecoder(opts codec.DecoderOptions) (codec.FrameDecoder, error) {
	dopts := []zstd.DOption{
		zstd.IgnoreChecksum(!opts.Checksum),
	}
	dec, err := zstd.NewReader(nil, dopts...)
	if err != nil {
		return nil, fmt.Errorf("zstdcodec: failed to create decoder: %w", err)
	}
	return &frameDecoder{dec: dec}, nil
}

type frameEncoder struct {
	enc *zstd.Encoder
}

func (f *frameEncoder) CompressFrame(src []byte) ([]byte, error) {
	return f.enc.EncodeAll(src, nil), nil
}

// CompressBound mirrors ZSTD_compressBound's conservative worst case; it is
// used only to presize scratch buffers, since EncodeAll grows its own
// destination slice as needed.
func (f *frameEncoder) CompressBound(n int) int {
	return n + n/128 + 64
}

func (f *frameEncoder) Close() error {
	return f.enc.Close()
}

type frameDecoder struct {
	dec *zstd.Decoder
}

func (f *frameDecoder) DecodeInto(dst, src []byte) error {
	if err := f.dec.Reset(bytes.NewReader(src)); err != nil {
		return fmt.Errorf("zstdcodec: failed to reset decoder: %w", err)
	}
	if _, err := io.ReadFull(f.dec, dst); err != nil {
		return fmt.Errorf("zstdcodec: failed to decode frame: %w", err)
	}
	return nil
}

func (f *frameDecoder) Reset() {
	_ = f.dec.Reset(nil)
}

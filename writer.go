package archive

import (
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arjunbhat/seekarchive/buffer"
	"github.com/arjunbhat/seekarchive/codec"
	"github.com/arjunbhat/seekarchive/codec/lz4codec"
	"github.com/arjunbhat/seekarchive/codec/zstdcodec"
	"github.com/arjunbhat/seekarchive/ioadapter"
	"github.com/arjunbhat/seekarchive/seektable"
)

// WriterStats reports observable counters about an open Writer.
type WriterStats struct {
	SeekTableSize          int
	SeekTableMemory        int
	Frames                 int64
	CompressedSizeEstimate uint64
	BufferSize             int
}

// Writer accepts a sequential byte stream, splits it into independently
// compressed frames once MinFrameSize uncompressed bytes have accumulated,
// and emits a seek-table trailer on Close.
//
// Write is not safe to call concurrently; the writer has no internal lock
// and callers must serialize their own access.
type Writer struct {
	sink ioadapter.WriteSink
	enc  codec.FrameEncoder

	inBuf *buffer.Buffer

	o writerOptions

	log *seektable.Log

	steFrames int
	steUC     uint64
	steCM     uint64
	hasher    *xxhash.Digest

	totalCompressed uint64

	closed atomic.Bool
	once   sync.Once
}

// WriterOpen creates a Writer that streams compressed frames and a seek
// table trailer into sink.
func WriterOpen(sink ioadapter.WriteSink, opts ...WOption) (*Writer, error) {
	if sink == nil {
		return nil, newError(InvalidArgument, fmt.Errorf("writer: nil sink"))
	}

	var o writerOptions
	o.setDefault()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	var c codec.Codec
	switch o.kind {
	case codec.ZSTD:
		c = zstdcodec.New()
	case codec.LZ4:
		c = lz4codec.New()
	default:
		return nil, newError(InvalidArgument, fmt.Errorf("writer: unknown codec kind %v", o.kind))
	}

	encOpts := codec.EncoderOptions{Checksum: o.checksum}
	switch o.kind {
	case codec.ZSTD:
		encOpts.CompressionLevel = o.zstd.CompressionLevel
		encOpts.NBWorkers = o.zstd.NBWorkers
		encOpts.CPUSet = o.zstd.CPUSet
	case codec.LZ4:
		encOpts.CompressionLevel = o.lz4.CompressionLevel
		encOpts.AutoFlush = o.lz4.AutoFlush
		encOpts.BlockSize = o.lz4.BlockSize
	}

	enc, err := c.NewEncoder(encOpts)
	if err != nil {
		return nil, newError(CodecFailure, fmt.Errorf("writer: failed to create encoder: %w", err))
	}

	if o.kind == codec.ZSTD && o.zstd.NBWorkers > 1 && len(o.zstd.CPUSet) > 0 {
		primeCodecWorkers(o.logger, o.zstd.CPUSet, func() {
			if _, werr := enc.CompressFrame(nil); werr != nil {
				o.logger.Warn("worker warm-up compression failed", zap.Error(werr))
			}
		})
	}

	w := &Writer{
		sink:  sink,
		enc:   enc,
		inBuf: buffer.New(o.minFrameSize, nil),
		o:     o,
		log:   seektable.NewLog(o.checksum),
	}
	if o.checksum {
		w.hasher = xxhash.New()
	}
	return w, nil
}

// Write appends src to the stream, compressing and emitting a frame once
// the accumulated uncompressed bytes reach the configured minimum. When the
// current frame is empty and src alone already meets the threshold, it is
// compressed directly with no intermediate copy.
func (w *Writer) Write(src []byte) (int, error) {
	if w.closed.Load() {
		return 0, newError(InvalidArgument, fmt.Errorf("writer: write after close"))
	}
	if len(src) > math.MaxUint32 {
		return 0, newError(InvalidArgument, fmt.Errorf("writer: chunk too large for seekable format: %d", len(src)))
	}

	if w.inBuf.Size() == 0 && len(src) >= w.o.minFrameSize {
		if err := w.emitFrame(src); err != nil {
			return 0, err
		}
		return len(src), nil
	}

	w.inBuf.Push(src)
	if w.inBuf.Size() >= w.o.minFrameSize {
		if err := w.emitFrame(w.inBuf.Data()); err != nil {
			return 0, err
		}
		w.inBuf.Reset()
	}
	return len(src), nil
}

func (w *Writer) emitFrame(src []byte) error {
	dst, err := w.enc.CompressFrame(src)
	if err != nil {
		w.closed.Store(true)
		return newError(CodecFailure, fmt.Errorf("writer: failed to compress frame: %w", err))
	}
	if len(dst) > math.MaxUint32 {
		w.closed.Store(true)
		return newError(InvalidArgument, fmt.Errorf("writer: compressed frame too large for seekable format: %d", len(dst)))
	}

	if _, err := w.sink.Write(dst); err != nil {
		w.closed.Store(true)
		return newError(IoFailure, fmt.Errorf("writer: failed to write frame: %w", err))
	}

	w.o.logger.Debug("wrote frame",
		zap.Int("compressed", len(dst)),
		zap.Int("decompressed", len(src)),
		zap.Int("steFrames", w.steFrames+1))

	w.totalCompressed += uint64(len(dst))
	w.steFrames++
	w.steUC += uint64(len(src))
	w.steCM += uint64(len(dst))
	if w.hasher != nil {
		w.hasher.Write(src)
	}

	if w.steFrames >= w.o.framesPerSTE {
		w.flushSTE()
	}
	return nil
}

// flushSTE logs the seek-table entry accumulated for the current run of
// frames and resets the running counters. A no-op if no frame has completed
// since the last flush.
func (w *Writer) flushSTE() {
	if w.steFrames == 0 {
		return
	}

	var checksum uint32
	if w.hasher != nil {
		checksum = uint32(w.hasher.Sum64())
		w.hasher.Reset()
	}

	w.log.Append(seektable.Entry{
		CompressedSize:   uint32(w.steCM),
		DecompressedSize: uint32(w.steUC),
		Checksum:         checksum,
	})

	w.steFrames = 0
	w.steUC = 0
	w.steCM = 0
}

// Close force-flushes any buffered bytes as a final frame, force-flushes the
// in-progress seek-table entry, writes the trailer, and releases codec
// resources. Close is idempotent: the first call performs the work and
// reports every failure it hit, combined into one error in the order they
// occurred; subsequent calls are no-ops.
func (w *Writer) Close() (err error) {
	w.once.Do(func() {
		defer w.closed.Store(true)

		if w.inBuf.Size() > 0 {
			if ferr := w.emitFrame(w.inBuf.Data()); ferr != nil {
				err = multierr.Append(err, ferr)
			}
			w.inBuf.Reset()
		}
		w.flushSTE()

		if terr := w.writeTrailer(); terr != nil {
			err = multierr.Append(err, terr)
		}

		if cerr := w.enc.Close(); cerr != nil {
			err = multierr.Append(err, newError(CodecFailure, fmt.Errorf("writer: failed to close encoder: %w", cerr)))
		}
	})
	return err
}

func (w *Writer) writeTrailer() error {
	enc := seektable.NewEncoder(w.log)
	chunk := make([]byte, 4096)
	for {
		n, done := enc.WriteTo(chunk)
		if n > 0 {
			if _, err := w.sink.Write(chunk[:n]); err != nil {
				return newError(IoFailure, fmt.Errorf("writer: failed to write trailer: %w", err))
			}
		}
		if done {
			return nil
		}
	}
}

// Stats reports observable counters about the writer's progress so far.
func (w *Writer) Stats() WriterStats {
	return WriterStats{
		SeekTableSize:          w.log.Len(),
		SeekTableMemory:        w.log.EncodedLen(),
		Frames:                 int64(w.log.Len()),
		CompressedSizeEstimate: w.totalCompressed,
		BufferSize:             w.inBuf.Capacity(),
	}
}

// Package ioadapter defines the capability interfaces the writer and reader
// consume for file I/O, plus default implementations backed by *os.File.
// Consumers can install their own (e.g. to read from a network blob store,
// or chunk writes a particular way) by implementing these interfaces
// directly instead of depending on *os.File.
package ioadapter

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrShortRead is returned by a ReadSource whose underlying medium produced
// fewer bytes than requested before hitting EOF.
var ErrShortRead = errors.New("ioadapter: short read")

// WriteSink is the append-only sink the writer emits frames and the trailer
// into. No seek capability is required or used.
type WriteSink interface {
	Write(p []byte) (n int, err error)
}

// ReadSource is the positional-read capability the reader uses. It never
// mutates the underlying medium.
type ReadSource interface {
	// Pread reads exactly len(buf) bytes starting at offset, or returns
	// ErrShortRead if the source is exhausted first.
	Pread(buf []byte, offset int64) (n int, err error)
	// Size returns the total number of bytes available from the source.
	Size() (int64, error)
}

// fileReadSource adapts an io.ReaderAt (most commonly *os.File) to ReadSource.
type fileReadSource struct {
	r    io.ReaderAt
	size func() (int64, error)
}

// NewFileReadSource wraps an *os.File as a ReadSource, using Stat for the
// size. For other io.ReaderAt implementations use NewReaderAtSource.
func NewFileReadSource(f *os.File) ReadSource {
	return &fileReadSource{
		r: f,
		size: func() (int64, error) {
			fi, err := f.Stat()
			if err != nil {
				return 0, err
			}
			return fi.Size(), nil
		},
	}
}

// NewReaderAtSource wraps an arbitrary io.ReaderAt with an explicit size,
// for callers that don't have an *os.File (e.g. an in-memory blob, or a
// network range-read client).
func NewReaderAtSource(r io.ReaderAt, size int64) ReadSource {
	return &fileReadSource{r: r, size: func() (int64, error) { return size, nil }}
}

func (f *fileReadSource) Pread(buf []byte, offset int64) (int, error) {
	n, err := f.r.ReadAt(buf, offset)
	if err != nil && errors.Is(err, io.EOF) {
		if n == len(buf) {
			// ReadAt is allowed to return (n, io.EOF) when it read exactly
			// enough bytes to fill buf and hit EOF simultaneously.
			return n, nil
		}
		return n, fmt.Errorf("%w: got %d of %d bytes: %v", ErrShortRead, n, len(buf), err)
	}
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, len(buf))
	}
	return n, nil
}

func (f *fileReadSource) Size() (int64, error) {
	return f.size()
}

// NewFileWriteSink wraps an *os.File (or any io.Writer) as a WriteSink.
func NewFileWriteSink(w io.Writer) WriteSink {
	return w
}

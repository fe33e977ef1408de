// Package archive implements a seekable compressed archive: a caller writes
// an arbitrarily long byte stream sequentially with a Writer, and the
// resulting output can later be opened with a Reader for random-access
// decompression at any byte offset, as if the data were never compressed.
//
// Compression happens in independent frames whose boundaries the Writer
// chooses; a trailing seek table (package seektable) maps decompressed
// offsets back to frame locations. Two frame codecs are supported, chosen
// per-archive and auto-detected on open: ZSTD (package codec/zstdcodec) and
// LZ4 (package codec/lz4codec).
package archive

package seektable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunbhat/seekarchive/ioadapter"
)

type memSource []byte

func (m memSource) Pread(buf []byte, offset int64) (int, error) {
	if offset < 0 || offset+int64(len(buf)) > int64(len(m)) {
		return 0, ioadapter.ErrShortRead
	}
	copy(buf, m[offset:offset+int64(len(buf))])
	return len(buf), nil
}

func (m memSource) Size() (int64, error) { return int64(len(m)), nil }

func encodeAll(t *testing.T, log *Log) []byte {
	t.Helper()
	enc := NewEncoder(log)
	out := make([]byte, 0, log.EncodedLen())
	buf := make([]byte, 3) // deliberately tiny to exercise resumability
	for {
		chunk := make([]byte, len(buf))
		n, done := enc.WriteTo(chunk)
		out = append(out, chunk[:n]...)
		if done {
			break
		}
		require.NotZero(t, n, "encoder made no progress")
	}
	require.Len(t, out, log.EncodedLen())
	return out
}

func TestRoundTripNoChecksum(t *testing.T) {
	t.Parallel()

	log := NewLog(false)
	log.Append(Entry{CompressedSize: 10, DecompressedSize: 100})
	log.Append(Entry{CompressedSize: 20, DecompressedSize: 200})
	log.Append(Entry{CompressedSize: 5, DecompressedSize: 50})

	wire := encodeAll(t, log)
	assert.Len(t, wire, headerSize+3*entrySizeNoCksum+footerSize)

	table, err := Parse(memSource(wire), int64(len(wire)))
	require.NoError(t, err)
	assert.False(t, table.ChecksumsValid)
	require.Equal(t, int64(3), table.NumFrames())

	for i, e := range log.Entries() {
		got := table.Entries[i]
		assert.Equal(t, e.CompressedSize, got.CompressedSize)
		assert.Equal(t, e.DecompressedSize, got.DecompressedSize)
	}
	assert.EqualValues(t, 35, table.CompressedSize())
	assert.EqualValues(t, 350, table.DecompressedSize())
}

func TestRoundTripWithChecksum(t *testing.T) {
	t.Parallel()

	log := NewLog(true)
	log.Append(Entry{CompressedSize: 7, DecompressedSize: 70, Checksum: 0xdeadbeef})
	log.Append(Entry{CompressedSize: 9, DecompressedSize: 90, Checksum: 0xfeedface})

	wire := encodeAll(t, log)
	assert.Len(t, wire, headerSize+2*entrySizeCksum+footerSize)

	table, err := Parse(memSource(wire), int64(len(wire)))
	require.NoError(t, err)
	assert.True(t, table.ChecksumsValid)
	for i, e := range log.Entries() {
		assert.Equal(t, e.Checksum, table.Entries[i].Checksum)
	}
}

func TestBinarySearchLocate(t *testing.T) {
	t.Parallel()

	log := NewLog(false)
	log.Append(Entry{CompressedSize: 10, DecompressedSize: 100})
	log.Append(Entry{CompressedSize: 10, DecompressedSize: 100})
	log.Append(Entry{CompressedSize: 10, DecompressedSize: 100})
	wire := encodeAll(t, log)
	table, err := Parse(memSource(wire), int64(len(wire)))
	require.NoError(t, err)

	for i := int64(0); i < table.NumFrames(); i++ {
		e := table.Entries[i]
		entry, offInFrame, ok := table.Locate(e.DecompOffset)
		require.True(t, ok)
		assert.Equal(t, i, entry.Index)
		assert.EqualValues(t, 0, offInFrame)

		entry, offInFrame, ok = table.Locate(e.DecompOffset + 50)
		require.True(t, ok)
		assert.Equal(t, i, entry.Index)
		assert.EqualValues(t, 50, offInFrame)
	}

	_, _, ok := table.Locate(table.DecompressedSize())
	assert.False(t, ok, "offset at end of archive is out of range")
	_, _, ok = table.Locate(table.DecompressedSize() + 1)
	assert.False(t, ok)
}

func TestFormatStability(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name         string
		withChecksum bool
		n            int
	}{
		{"no-checksum-0", false, 0},
		{"no-checksum-5", false, 5},
		{"checksum-5", true, 5},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			log := NewLog(tc.withChecksum)
			for i := 0; i < tc.n; i++ {
				log.Append(Entry{CompressedSize: uint32(i + 1), DecompressedSize: uint32((i + 1) * 10)})
			}
			wire := encodeAll(t, log)

			entrySize := entrySizeNoCksum
			if tc.withChecksum {
				entrySize = entrySizeCksum
			}
			assert.Len(t, wire, headerSize+tc.n*entrySize+footerSize)

			assert.EqualValues(t, SkippableMagic, leUint32(wire[0:4]))
			assert.EqualValues(t, Magic, leUint32(wire[len(wire)-4:]))
		})
	}
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func TestParseRejectsBadMagic(t *testing.T) {
	t.Parallel()

	log := NewLog(false)
	log.Append(Entry{CompressedSize: 1, DecompressedSize: 1})
	wire := encodeAll(t, log)
	wire[0] ^= 0xff

	_, err := Parse(memSource(wire), int64(len(wire)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedTrailer)
}

func TestParseRejectsReservedBits(t *testing.T) {
	t.Parallel()

	log := NewLog(false)
	wire := encodeAll(t, log)
	wire[len(wire)-footerSize+4] |= 0x01 // set a reserved descriptor bit

	_, err := Parse(memSource(wire), int64(len(wire)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedTrailer)
}

func TestParseShortFile(t *testing.T) {
	t.Parallel()

	_, err := Parse(memSource([]byte{1, 2, 3}), 3)
	require.Error(t, err)
}

func TestEmptyLog(t *testing.T) {
	t.Parallel()

	log := NewLog(true)
	wire := encodeAll(t, log)
	table, err := Parse(memSource(wire), int64(len(wire)))
	require.NoError(t, err)
	assert.EqualValues(t, 0, table.NumFrames())
	assert.EqualValues(t, 0, table.DecompressedSize())
	_, _, ok := table.Locate(0)
	assert.False(t, ok)
}

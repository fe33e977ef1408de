package zstdcodec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arjunbhat/seekarchive/codec"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	c := New()
	require.Equal(t, codec.ZSTD, c.Kind())
	require.EqualValues(t, codec.ZSTDFrameMagic, c.Magic())

	enc, err := c.NewEncoder(codec.EncoderOptions{})
	require.NoError(t, err)
	defer enc.Close()

	dec, err := c.NewDecoder(codec.DecoderOptions{})
	require.NoError(t, err)

	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for a while")
	frame, err := enc.CompressFrame(payload)
	require.NoError(t, err)
	require.LessOrEqual(t, len(frame), enc.CompressBound(len(payload)))

	out := make([]byte, len(payload))
	err = dec.DecodeInto(out, frame)
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestConcatenatedFramesDecodeSequentially(t *testing.T) {
	t.Parallel()

	c := New()
	enc, err := c.NewEncoder(codec.EncoderOptions{})
	require.NoError(t, err)
	defer enc.Close()
	dec, err := c.NewDecoder(codec.DecoderOptions{})
	require.NoError(t, err)

	a := []byte("first frame payload")
	b := []byte("second frame payload, a bit longer than the first")

	fa, err := enc.CompressFrame(a)
	require.NoError(t, err)
	fb, err := enc.CompressFrame(b)
	require.NoError(t, err)

	coalesced := append(append([]byte{}, fa...), fb...)
	out := make([]byte, len(a)+len(b))
	err = dec.DecodeInto(out, coalesced)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, a...), b...), out)
}

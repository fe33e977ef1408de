package archive

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripVariousConfigurations(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("roundtrip payload, "), 200)

	for _, tc := range []struct {
		name string
		opts []WOption
	}{
		{"zstd-small-frames", []WOption{WithMinFrameSize(16), WithFramesPerSTE(1)}},
		{"zstd-coalesced", []WOption{WithMinFrameSize(64), WithFramesPerSTE(4)}},
		{"zstd-one-frame", []WOption{WithMinFrameSize(1 << 20)}},
		{"lz4-small-frames", []WOption{WithLZ4(LZ4Params{AutoFlush: true}), WithMinFrameSize(32), WithFramesPerSTE(2)}},
		{"no-checksum", []WOption{WithMinFrameSize(32), WithChecksum(false)}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			wire := writeArchive(t, payload, tc.opts...)
			r := openReader(t, wire, WithCacheCapacity(4))

			// Pread stops at a seek-table entry boundary, so loop until full.
			buf := make([]byte, len(payload))
			n := 0
			for n < len(buf) {
				m, err := r.Pread(buf[n:], int64(n))
				require.NoError(t, err)
				if m == 0 {
					break
				}
				n += m
			}
			assert.Equal(t, len(payload), n)
			assert.Equal(t, payload, buf)
		})
	}
}

func TestRandomAccessMatchesOriginal(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	payload := make([]byte, 5000)
	rng.Read(payload)

	wire := writeArchive(t, payload, WithMinFrameSize(97), WithFramesPerSTE(3))
	r := openReader(t, wire, WithCacheCapacity(6))

	for i := 0; i < 100; i++ {
		off := rng.Intn(len(payload))
		length := rng.Intn(len(payload)-off) + 1

		var out []byte
		buf := make([]byte, 64)
		pos := off
		for len(out) < length {
			n, err := r.Pread(buf, int64(pos))
			require.NoError(t, err)
			if n == 0 {
				break
			}
			want := length - len(out)
			if n > want {
				n = want
			}
			out = append(out, buf[:n]...)
			pos += n
		}
		assert.Equal(t, payload[off:off+length], out)
	}
}

func TestConcurrentReaders(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	payload := make([]byte, 20000)
	rng.Read(payload)

	wire := writeArchive(t, payload, WithMinFrameSize(173), WithFramesPerSTE(3))
	r := openReader(t, wire, WithCacheCapacity(8))

	const goroutines = 4
	const iterations = 1000

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			local := rand.New(rand.NewSource(seed))
			buf := make([]byte, 32)
			for i := 0; i < iterations; i++ {
				off := local.Intn(len(payload))
				n, err := r.Pread(buf, int64(off))
				if err != nil {
					errs <- err
					return
				}
				want := payload[off:]
				if len(want) > n {
					want = want[:n]
				}
				if !bytes.Equal(want, buf[:n]) {
					errs <- fmt.Errorf("corrupted read at offset %d: want %x got %x", off, want, buf[:n])
					return
				}
			}
		}(int64(g) * 1000)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}


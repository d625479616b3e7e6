package ctr

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lvdlvd/nxcrypt/block"
)

var (
	testKey, _   = hex.DecodeString("ac31f3da4bd7c4a56116789b748cdf1f")
	testNonce, _ = hex.DecodeString("0000000100000002")
)

// reference encrypts pt as the stream starting at offset 0 with the
// standard library's full-width incrementing counter.
func reference(t *testing.T, pt []byte) []byte {
	t.Helper()
	b, err := aes.NewCipher(testKey)
	require.NoError(t, err)
	iv := make([]byte, aes.BlockSize)
	copy(iv, testNonce)
	ct := make([]byte, len(pt))
	cipher.NewCTR(b, iv).XORKeyStream(ct, pt)
	return ct
}

func plaintext(n int) []byte {
	pt := make([]byte, n)
	for i := range pt {
		pt[i] = byte(i*31 + 7)
	}
	return pt
}

func newCursor(t *testing.T) *Cursor {
	t.Helper()
	c, err := New(testKey, testNonce, 0)
	require.NoError(t, err)
	return c
}

func TestMatchesStandardCTR(t *testing.T) {
	pt := plaintext(0x1000)
	ct := reference(t, pt)

	buf := bytes.Clone(ct)
	require.NoError(t, newCursor(t).Read(0, buf))
	require.Equal(t, pt, buf)
}

func TestRoundTrip(t *testing.T) {
	for _, n := range []int{16, 32, 0x200, 0x4000} {
		pt := plaintext(n)
		buf := bytes.Clone(pt)
		c := newCursor(t)
		require.NoError(t, c.Read(0x3000, buf))
		require.NotEqual(t, pt, buf)
		require.NoError(t, c.Read(0x3000, buf))
		require.Equal(t, pt, buf, "size %d", n)
	}
}

func TestRandomAccess(t *testing.T) {
	pt := plaintext(0x1000)
	ct := reference(t, pt)
	c := newCursor(t)

	// Out of order, non-contiguous reads.
	for _, off := range []int{0x800, 0x10, 0xFF0, 0x0, 0x400} {
		buf := bytes.Clone(ct[off : off+16])
		require.NoError(t, c.Read(int64(off), buf))
		require.Equal(t, pt[off:off+16], buf, "offset %#x", off)
	}
}

func TestDeterminism(t *testing.T) {
	ct := reference(t, plaintext(0x100))

	a := bytes.Clone(ct[0x40:0x80])
	require.NoError(t, newCursor(t).Read(0x40, a))

	b := bytes.Clone(ct[0x40:0x80])
	require.NoError(t, newCursor(t).Read(0x40, b))

	require.Equal(t, a, b)
}

func TestComposability(t *testing.T) {
	ct := reference(t, plaintext(32))

	whole := bytes.Clone(ct)
	require.NoError(t, newCursor(t).Read(0, whole))

	c := newCursor(t)
	split := bytes.Clone(ct)
	require.NoError(t, c.Read(0, split[:16]))
	require.NoError(t, c.Read(16, split[16:]))

	require.Equal(t, whole, split)
}

func TestCounterDerivation(t *testing.T) {
	tests := []struct {
		offset int64
		want   string
	}{
		{0x1230, "0000000100000002" + "0000000000000123"},
		{0xABCDEF0, "0000000100000002" + "0000000000abcdef"},
		{0x10, "0000000100000002" + "0000000000000001"},
	}
	for _, tt := range tests {
		c := newCursor(t)
		require.NoError(t, c.Read(tt.offset, make([]byte, 16)))
		got := c.Counter()
		require.Equal(t, tt.want, hex.EncodeToString(got[:]), "offset %#x", tt.offset)
	}
}

func TestCounterKeepsConstructedHighByte(t *testing.T) {
	// Block 1<<56 sets byte 8 of the counter.
	c, err := New(testKey, testNonce, 1<<60)
	require.NoError(t, err)
	got := c.Counter()
	require.Equal(t, "0000000100000002"+"0100000000000000", hex.EncodeToString(got[:]))

	require.NoError(t, c.Read(0x1230, make([]byte, 16)))
	got = c.Counter()
	require.Equal(t, "0000000100000002"+"0100000000000123", hex.EncodeToString(got[:]))
}

func TestPartialBlocks(t *testing.T) {
	pt := plaintext(0x100)
	ct := reference(t, pt)
	c := newCursor(t)

	// Trailing partial block.
	buf := bytes.Clone(ct[:40])
	require.NoError(t, c.Read(0, buf))
	require.Equal(t, pt[:40], buf)

	// Unaligned start and end.
	buf = bytes.Clone(ct[5:77])
	require.NoError(t, c.Read(5, buf))
	require.Equal(t, pt[5:77], buf)

	// Shorter than one block, inside a block.
	buf = bytes.Clone(ct[0x33:0x37])
	require.NoError(t, c.Read(0x33, buf))
	require.Equal(t, pt[0x33:0x37], buf)

	require.NoError(t, c.Read(0, nil))
}

func TestErrors(t *testing.T) {
	_, err := New(testKey[:8], testNonce, 0)
	require.ErrorIs(t, err, block.ErrInvalidKeyLength)

	_, err = New(testKey, testNonce[:4], 0)
	require.ErrorIs(t, err, block.ErrInvalidBufferLength)

	_, err = New(testKey, testNonce, -16)
	require.ErrorIs(t, err, ErrNegativeOffset)

	err = newCursor(t).Read(-1, make([]byte, 16))
	require.ErrorIs(t, err, ErrNegativeOffset)
}

func TestConcurrentReads(t *testing.T) {
	pt := plaintext(0x2000)
	ct := reference(t, pt)
	c := newCursor(t)

	var wg sync.WaitGroup
	out := make([][]byte, 16)
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			off := i * 0x200
			buf := bytes.Clone(ct[off : off+0x200])
			if err := c.Read(int64(off), buf); err == nil {
				out[i] = buf
			}
		}(i)
	}
	wg.Wait()

	for i, buf := range out {
		require.Equal(t, pt[i*0x200:(i+1)*0x200], buf, "chunk %d", i)
	}
}

type memReaderAt []byte

func (m memReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(m).ReadAt(p, off)
}

func TestReaderAt(t *testing.T) {
	pt := plaintext(0x400)
	ct := reference(t, pt)
	r := NewReaderAt(memReaderAt(ct), newCursor(t))

	buf := make([]byte, 0x80)
	n, err := r.ReadAt(buf, 0x100)
	require.NoError(t, err)
	require.Equal(t, 0x80, n)
	require.Equal(t, pt[0x100:0x180], buf)

	// Short read at the end decrypts what was returned.
	n, err = r.ReadAt(buf, 0x3F0)
	require.Error(t, err)
	require.Equal(t, 0x10, n)
	require.Equal(t, pt[0x3F0:], buf[:n])
}

// Package ctr implements the random-access AES-CTR cursor used for content
// archive sections.
//
// The 16-byte counter block is an 8-byte section nonce followed by the
// big-endian number of the 16-byte block being processed. The block number
// is recomputed from the absolute byte offset before every block rather than
// incremented, so any offset can be decrypted without replaying the stream.
// Only the low 7 bytes of the block number are rewritten per block; byte 8
// keeps the value it was given when the cursor was created.
package ctr

import (
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/lvdlvd/nxcrypt/block"
)

const (
	// NonceSize is the length of the fixed counter prefix.
	NonceSize = 8

	blockSize = block.Size
)

// Cursor decrypts (and, being CTR, encrypts) arbitrary ranges of one
// counter-mode stream in place. A Cursor is safe for concurrent use; calls
// are serialized because the counter block is reused as scratch space.
type Cursor struct {
	mu      sync.Mutex
	block   cipher.Block
	counter [blockSize]byte
	stream  [blockSize]byte
}

// New creates a Cursor for a 16-byte key and an 8-byte nonce. offset seeds
// all 8 suffix bytes of the counter block with offset>>4.
func New(key, nonce []byte, offset int64) (*Cursor, error) {
	b, err := block.New(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes, want %d", block.ErrInvalidBufferLength, len(nonce), NonceSize)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}
	c := &Cursor{block: b}
	copy(c.counter[:NonceSize], nonce)
	binary.BigEndian.PutUint64(c.counter[NonceSize:], uint64(offset)>>4)
	return c, nil
}

// Read decrypts buf in place, treating buf[0] as the stream byte at
// absolute offset. Neither offset nor len(buf) need be a multiple of 16: a
// leading partial block skips into the keystream and a trailing partial
// block uses a truncated keystream. There is no bound on the stream length.
func (c *Cursor) Read(offset int64, buf []byte) error {
	if offset < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pos := uint64(offset)
	for len(buf) > 0 {
		c.setBlock(pos >> 4)
		c.block.Encrypt(c.stream[:], c.counter[:])
		n := subtle.XORBytes(buf, buf, c.stream[pos%blockSize:])
		buf = buf[n:]
		pos += uint64(n)
	}
	return nil
}

// setBlock writes the low 7 bytes of n big-endian into counter[9:16].
func (c *Cursor) setBlock(n uint64) {
	for i := blockSize - 1; i > NonceSize; i-- {
		c.counter[i] = byte(n)
		n >>= 8
	}
}

// Counter returns a copy of the current counter block.
func (c *Cursor) Counter() [blockSize]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

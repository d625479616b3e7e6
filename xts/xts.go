// Copyright 2012 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xts implements the XTS cipher mode as specified in IEEE P1619/D16,
// with a pluggable tweak encoding.
//
// XTS wraps a block cipher with Rogaway's XEX mode in order to build a
// tweakable block cipher, allowing each sector to have a unique tweak and
// effectively creating a unique key for each sector.
//
// The IEEE standard encodes the sector number little-endian into the tweak.
// Console content archives encode it as a 128-bit big-endian integer
// instead; use BigEndianTweak for those. Within one area call the sector
// number advances by one per sector regardless of the encoding.
//
// This implementation is adapted from golang.org/x/crypto/xts with added
// support for configurable sector sizes, tweak encodings and a ReaderAt
// wrapper.
package xts

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lvdlvd/nxcrypt/block"
)

// blockSize is the block size that the underlying cipher must have.
const blockSize = 16

// TweakFunc maps a sector number to the plaintext tweak, before it is
// encrypted under the second half of the key.
type TweakFunc func(sectorNum uint64) [blockSize]byte

// LittleEndianTweak is the IEEE P1619 tweak encoding.
func LittleEndianTweak(sectorNum uint64) [blockSize]byte {
	var t [blockSize]byte
	binary.LittleEndian.PutUint64(t[:8], sectorNum)
	return t
}

// BigEndianTweak encodes sectorNum as a 128-bit big-endian integer, the
// convention of console content archives.
func BigEndianTweak(sectorNum uint64) [blockSize]byte {
	var t [blockSize]byte
	binary.BigEndian.PutUint64(t[8:], sectorNum)
	return t
}

// Cipher contains an expanded key structure. It doesn't contain mutable
// state and therefore can be used concurrently.
type Cipher struct {
	k1, k2     cipher.Block
	sectorSize int
	tweak      TweakFunc
}

// NewCipher creates a Cipher given a function for creating the underlying
// block cipher (which must have a block size of 16 bytes). The key must be
// twice the length of the underlying cipher's key. The cipher uses the
// IEEE tweak encoding and a sector size of one block.
func NewCipher(cipherFunc func([]byte) (cipher.Block, error), key []byte) (*Cipher, error) {
	c := new(Cipher)
	var err error
	if c.k1, err = cipherFunc(key[:len(key)/2]); err != nil {
		return nil, err
	}
	if c.k2, err = cipherFunc(key[len(key)/2:]); err != nil {
		return nil, err
	}

	if c.k1.BlockSize() != blockSize {
		return nil, errors.New("xts: cipher does not have a block size of 16")
	}

	c.sectorSize = blockSize
	c.tweak = LittleEndianTweak
	return c, nil
}

// New creates an XTS-AES cipher with the given key, sector size and tweak
// encoding. Key must be 32 bytes (AES-128-XTS), 48 bytes (AES-192-XTS), or
// 64 bytes (AES-256-XTS); the first half encrypts data, the second half the
// tweak. Sector size must be a positive multiple of 16 bytes. A nil tweak
// selects LittleEndianTweak.
func New(key []byte, sectorSize int, tweak TweakFunc) (*Cipher, error) {
	if len(key) != 32 && len(key) != 48 && len(key) != 64 {
		return nil, fmt.Errorf("%w: xts key is %d bytes (must be 32, 48, or 64)", block.ErrInvalidKeyLength, len(key))
	}
	if sectorSize < blockSize || sectorSize%blockSize != 0 {
		return nil, fmt.Errorf("xts: sector size must be a positive multiple of %d", blockSize)
	}

	c, err := NewCipher(aes.NewCipher, key)
	if err != nil {
		return nil, err
	}
	c.sectorSize = sectorSize
	if tweak != nil {
		c.tweak = tweak
	}
	return c, nil
}

// SectorSize returns the sector size.
func (c *Cipher) SectorSize() int {
	return c.sectorSize
}

// Encrypt encrypts a sector of plaintext and puts the result into ciphertext.
// Plaintext and ciphertext must overlap entirely or not at all.
// Sectors must be a multiple of 16 bytes.
func (c *Cipher) Encrypt(ciphertext, plaintext []byte, sectorNum uint64) {
	if len(ciphertext) < len(plaintext) {
		panic("xts: ciphertext is smaller than plaintext")
	}
	if len(plaintext)%blockSize != 0 {
		panic("xts: plaintext is not a multiple of the block size")
	}

	tweak := c.tweak(sectorNum)
	c.k2.Encrypt(tweak[:], tweak[:])

	for i := 0; i < len(plaintext); i += blockSize {
		xor(ciphertext[i:i+blockSize], plaintext[i:i+blockSize], &tweak)
		c.k1.Encrypt(ciphertext[i:i+blockSize], ciphertext[i:i+blockSize])
		xor(ciphertext[i:i+blockSize], ciphertext[i:i+blockSize], &tweak)
		mul2(&tweak)
	}
}

// Decrypt decrypts a sector of ciphertext and puts the result into plaintext.
// Plaintext and ciphertext must overlap entirely or not at all.
// Sectors must be a multiple of 16 bytes.
func (c *Cipher) Decrypt(plaintext, ciphertext []byte, sectorNum uint64) {
	if len(plaintext) < len(ciphertext) {
		panic("xts: plaintext is smaller than ciphertext")
	}
	if len(ciphertext)%blockSize != 0 {
		panic("xts: ciphertext is not a multiple of the block size")
	}

	tweak := c.tweak(sectorNum)
	c.k2.Encrypt(tweak[:], tweak[:])

	for i := 0; i < len(ciphertext); i += blockSize {
		xor(plaintext[i:i+blockSize], ciphertext[i:i+blockSize], &tweak)
		c.k1.Decrypt(plaintext[i:i+blockSize], plaintext[i:i+blockSize])
		xor(plaintext[i:i+blockSize], plaintext[i:i+blockSize], &tweak)
		mul2(&tweak)
	}
}

func xor(dst, src []byte, tweak *[blockSize]byte) {
	for j := 0; j < blockSize; j++ {
		dst[j] = src[j] ^ tweak[j]
	}
}

// mul2 multiplies tweak by 2 in GF(2^128) with an irreducible polynomial of
// x^128 + x^7 + x^2 + x + 1.
func mul2(tweak *[blockSize]byte) {
	var carryIn byte
	for j := range tweak {
		carryOut := tweak[j] >> 7
		tweak[j] = (tweak[j] << 1) + carryIn
		carryIn = carryOut
	}
	if carryIn != 0 {
		// If we have a carry bit then we need to subtract a multiple
		// of the irreducible polynomial (x^128 + x^7 + x^2 + x + 1).
		// By dropping the carry bit, we're subtracting the x^128 term
		// so all that remains is to subtract x^7 + x^2 + x + 1.
		// Subtraction (and addition) in this representation is just XOR.
		tweak[0] ^= 1<<7 | 1<<2 | 1<<1 | 1
	}
}

// EncryptSector encrypts a single sector in place.
func (c *Cipher) EncryptSector(sector []byte, sectorNum uint64) error {
	if len(sector) != c.sectorSize {
		return fmt.Errorf("%w: sector length %d != sector size %d", block.ErrInvalidBufferLength, len(sector), c.sectorSize)
	}
	c.Encrypt(sector, sector, sectorNum)
	return nil
}

// DecryptSector decrypts a single sector in place.
func (c *Cipher) DecryptSector(sector []byte, sectorNum uint64) error {
	if len(sector) != c.sectorSize {
		return fmt.Errorf("%w: sector length %d != sector size %d", block.ErrInvalidBufferLength, len(sector), c.sectorSize)
	}
	c.Decrypt(sector, sector, sectorNum)
	return nil
}

// EncryptSectors encrypts an area of consecutive sectors in place. The
// first sector uses startSector, each following one the next number.
func (c *Cipher) EncryptSectors(data []byte, startSector uint64) error {
	if len(data)%c.sectorSize != 0 {
		return fmt.Errorf("%w: data length %d not a multiple of sector size %d", block.ErrInvalidBufferLength, len(data), c.sectorSize)
	}
	for i := 0; i < len(data); i += c.sectorSize {
		c.Encrypt(data[i:i+c.sectorSize], data[i:i+c.sectorSize], startSector)
		startSector++
	}
	return nil
}

// DecryptSectors decrypts an area of consecutive sectors in place. The
// first sector uses startSector, each following one the next number.
func (c *Cipher) DecryptSectors(data []byte, startSector uint64) error {
	if len(data)%c.sectorSize != 0 {
		return fmt.Errorf("%w: data length %d not a multiple of sector size %d", block.ErrInvalidBufferLength, len(data), c.sectorSize)
	}
	for i := 0; i < len(data); i += c.sectorSize {
		c.Decrypt(data[i:i+c.sectorSize], data[i:i+c.sectorSize], startSector)
		startSector++
	}
	return nil
}

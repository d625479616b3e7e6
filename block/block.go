// Package block provides the AES-128 primitive and the two unchained
// region modes used by the console container formats: ECB for single
// key-area entries and CBC for fixed-size encrypted header regions.
//
// All functions are pure and safe for concurrent use. Inputs are never
// modified; every call returns a freshly allocated plaintext buffer.
package block

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const (
	// Size is the AES block size.
	Size = aes.BlockSize

	// KeySize is the length of an AES-128 key.
	KeySize = 16
)

// New returns an AES-128 cipher.Block for key.
func New(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeyLength, len(key), KeySize)
	}
	return aes.NewCipher(key)
}

// DecryptECB decrypts exactly one 16-byte block under key.
func DecryptECB(key, src []byte) ([]byte, error) {
	b, err := New(key)
	if err != nil {
		return nil, err
	}
	if len(src) != Size {
		return nil, fmt.Errorf("%w: ecb block is %d bytes, want %d", ErrInvalidBufferLength, len(src), Size)
	}
	dst := make([]byte, Size)
	b.Decrypt(dst, src)
	return dst, nil
}

// EncryptECB is the inverse of DecryptECB.
func EncryptECB(key, src []byte) ([]byte, error) {
	b, err := New(key)
	if err != nil {
		return nil, err
	}
	if len(src) != Size {
		return nil, fmt.Errorf("%w: ecb block is %d bytes, want %d", ErrInvalidBufferLength, len(src), Size)
	}
	dst := make([]byte, Size)
	b.Encrypt(dst, src)
	return dst, nil
}

// DecryptCBC decrypts src with cipher-block chaining starting from iv.
// len(src) must be a non-zero multiple of 16. No padding is removed.
func DecryptCBC(key, iv, src []byte) ([]byte, error) {
	b, err := New(key)
	if err != nil {
		return nil, err
	}
	if err := checkCBC(iv, src); err != nil {
		return nil, err
	}
	dst := make([]byte, len(src))
	cipher.NewCBCDecrypter(b, iv).CryptBlocks(dst, src)
	return dst, nil
}

// EncryptCBC is the inverse of DecryptCBC.
func EncryptCBC(key, iv, src []byte) ([]byte, error) {
	b, err := New(key)
	if err != nil {
		return nil, err
	}
	if err := checkCBC(iv, src); err != nil {
		return nil, err
	}
	dst := make([]byte, len(src))
	cipher.NewCBCEncrypter(b, iv).CryptBlocks(dst, src)
	return dst, nil
}

func checkCBC(iv, src []byte) error {
	if len(iv) != Size {
		return fmt.Errorf("%w: iv is %d bytes, want %d", ErrInvalidBufferLength, len(iv), Size)
	}
	if len(src) == 0 || len(src)%Size != 0 {
		return fmt.Errorf("%w: cbc region is %d bytes, not a multiple of %d", ErrInvalidBufferLength, len(src), Size)
	}
	return nil
}

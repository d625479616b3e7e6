package xts

import (
	"fmt"
	"io"
)

// ReaderAt wraps an io.ReaderAt holding XTS ciphertext and decrypts on read.
// Sector n of the underlying data is the sectorSize bytes at n*sectorSize,
// decrypted with tweak n.
type ReaderAt struct {
	r      io.ReaderAt
	cipher *Cipher
	size   int64
}

// NewReaderAt creates a new decrypting ReaderAt over the first size bytes of r.
func NewReaderAt(r io.ReaderAt, cipher *Cipher, size int64) *ReaderAt {
	return &ReaderAt{
		r:      r,
		cipher: cipher,
		size:   size,
	}
}

// ReadAt implements io.ReaderAt with decryption. Reads need not be aligned;
// the covering sectors are read and decrypted whole.
func (x *ReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, fmt.Errorf("xts: negative offset")
	}
	if off >= x.size {
		return 0, io.EOF
	}

	sectorSize := int64(x.cipher.SectorSize())

	end := off + int64(len(p))
	if end > x.size {
		end = x.size
	}
	first := off / sectorSize
	last := (end + sectorSize - 1) / sectorSize

	buf := make([]byte, (last-first)*sectorSize)
	got, err := x.r.ReadAt(buf, first*sectorSize)
	if err != nil && err != io.EOF {
		return 0, err
	}

	// Only whole sectors can be decrypted.
	whole := got / int(sectorSize) * int(sectorSize)
	if whole == 0 {
		if got > 0 {
			return 0, fmt.Errorf("xts: partial sector read (%d bytes)", got)
		}
		return 0, io.EOF
	}
	if err := x.cipher.DecryptSectors(buf[:whole], uint64(first)); err != nil {
		return 0, fmt.Errorf("xts: decryption failed: %w", err)
	}

	skip := int(off - first*sectorSize)
	n = copy(p, buf[skip:whole])
	if off+int64(n) >= x.size {
		return n, io.EOF
	}
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// Size returns the logical size.
func (x *ReaderAt) Size() int64 {
	return x.size
}

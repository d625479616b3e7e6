package ctr

import "io"

// ReaderAt wraps an io.ReaderAt holding CTR ciphertext and decrypts each
// read at its absolute offset.
type ReaderAt struct {
	r      io.ReaderAt
	cursor *Cursor
}

// NewReaderAt returns a decrypting view of r.
func NewReaderAt(r io.ReaderAt, cursor *Cursor) *ReaderAt {
	return &ReaderAt{r: r, cursor: cursor}
}

// ReadAt implements io.ReaderAt. Whatever bytes the underlying reader
// returns are decrypted, even alongside an error.
func (x *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := x.r.ReadAt(p, off)
	if n > 0 {
		if derr := x.cursor.Read(off, p[:n]); derr != nil {
			return 0, derr
		}
	}
	return n, err
}

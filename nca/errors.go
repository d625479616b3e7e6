package nca

import (
	"errors"
	"fmt"
)

var (
	// ErrFormatMismatch indicates the decrypted header magic is not NCA3:
	// the key is wrong or the archive uses an unsupported format version.
	ErrFormatMismatch = errors.New("nca: header format mismatch")

	// ErrNoSection indicates a section index outside the table or an empty entry.
	ErrNoSection = errors.New("nca: no such section")

	// ErrUnsupportedEncryption indicates a section encryption type that cannot be opened.
	ErrUnsupportedEncryption = errors.New("nca: unsupported section encryption")
)

// MagicError reports the magic found after decrypting the first header area.
// It matches ErrFormatMismatch with errors.Is.
type MagicError struct {
	Magic [4]byte
}

func (e *MagicError) Error() string {
	if e.Legacy() {
		return fmt.Sprintf("nca: header magic %q is an unsupported older version, want %q", e.Magic[:], Magic)
	}
	return fmt.Sprintf("nca: header magic %q, want %q (wrong header key?)", e.Magic[:], Magic)
}

func (e *MagicError) Unwrap() error { return ErrFormatMismatch }

// Legacy reports whether the magic names an older archive version. Those
// number header sectors differently and are not decrypted by this package.
func (e *MagicError) Legacy() bool {
	switch string(e.Magic[:]) {
	case "NCA0", "NCA1", "NCA2":
		return true
	}
	return false
}

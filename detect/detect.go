// Package detect identifies console container types from their leading bytes.
package detect

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/lvdlvd/nxcrypt/nca"
	"github.com/lvdlvd/nxcrypt/xci"
)

// Type represents a container type
type Type int

const (
	Unknown Type = iota
	PFS0         // partition filesystem (NSP)
	HFS0         // hashed partition filesystem
	XCI          // game-card image
	NCA          // content archive, header decrypted with the given key
	NCAPlain     // content archive with an unencrypted header
	NCALegacy    // content archive of an unsupported older version
)

func (t Type) String() string {
	switch t {
	case PFS0:
		return "PFS0"
	case HFS0:
		return "HFS0"
	case XCI:
		return "XCI"
	case NCA:
		return "NCA3"
	case NCAPlain:
		return "NCA3 (plaintext header)"
	case NCALegacy:
		return "NCA (legacy version)"
	default:
		return "unknown"
	}
}

// IsNCA returns true if the type is any content archive variant
func (t Type) IsNCA() bool {
	return t == NCA || t == NCAPlain || t == NCALegacy
}

// IsPartitionFS returns true if the type is a partition filesystem
func (t Type) IsPartitionFS() bool {
	return t == PFS0 || t == HFS0
}

// Detect identifies the container type from a reader. Content archive
// headers are encrypted, so they are only recognized when headerKey is
// given; a nil key skips that check.
func Detect(r io.ReaderAt, headerKey []byte) (Type, error) {
	header := make([]byte, nca.HeaderSize)
	n, err := r.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return Unknown, fmt.Errorf("reading header: %w", err)
	}
	if n < 16 {
		return Unknown, fmt.Errorf("file too small: %d bytes", n)
	}
	header = header[:n]

	switch {
	case bytes.Equal(header[:4], []byte("PFS0")):
		return PFS0, nil
	case bytes.Equal(header[:4], []byte("HFS0")):
		return HFS0, nil
	}

	if n >= xci.HeaderSize && bytes.Equal(header[xci.MagicOffset:xci.MagicOffset+4], []byte(xci.Magic)) {
		return XCI, nil
	}

	if n < nca.HeaderSize {
		return Unknown, nil
	}

	if bytes.Equal(header[0x200:0x204], []byte(nca.Magic)) {
		return NCAPlain, nil
	}

	if headerKey != nil {
		_, err := nca.DecryptHeader(headerKey, header)
		var me *nca.MagicError
		switch {
		case err == nil:
			return NCA, nil
		case errors.As(err, &me) && me.Legacy():
			return NCALegacy, nil
		case errors.Is(err, nca.ErrFormatMismatch):
			return Unknown, nil
		default:
			return Unknown, err
		}
	}

	return Unknown, nil
}

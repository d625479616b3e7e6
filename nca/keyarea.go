package nca

import (
	"fmt"

	"github.com/lvdlvd/nxcrypt/block"
)

const (
	// KeyAreaEntries is the number of keys in the key area.
	KeyAreaEntries = 4

	// KeyAreaEntrySize is the size of one encrypted key.
	KeyAreaEntrySize = block.Size
)

// DecryptKeyArea decrypts each 16-byte entry of area independently with
// AES-128-ECB under the key-area key. It stops at the first malformed entry.
func DecryptKeyArea(key []byte, area [][]byte) ([][]byte, error) {
	if len(key) != block.KeySize {
		return nil, fmt.Errorf("%w: key area key is %d bytes, want %d", block.ErrInvalidKeyLength, len(key), block.KeySize)
	}
	out := make([][]byte, len(area))
	for i, entry := range area {
		dec, err := block.DecryptECB(key, entry)
		if err != nil {
			return nil, fmt.Errorf("nca: key area entry %d: %w", i, err)
		}
		out[i] = dec
	}
	return out, nil
}

// DecryptKeyArea decrypts the header's four key-area entries.
func (h *Header) DecryptKeyArea(key []byte) ([][]byte, error) {
	area := make([][]byte, len(h.KeyArea))
	for i := range h.KeyArea {
		area[i] = h.KeyArea[i][:]
	}
	return DecryptKeyArea(key, area)
}

// Package xci decrypts the encrypted region of a game-card image header.
package xci

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lvdlvd/nxcrypt/block"
)

const (
	// HeaderSize is the size of the card header including its signature.
	HeaderSize = 0x200

	// EncryptedSize is the size of the CBC-encrypted region of the header.
	EncryptedSize = 0x70

	// Magic is the card header magic at MagicOffset.
	Magic       = "HEAD"
	MagicOffset = 0x100

	// PageSize is the unit of page-addressed header fields.
	PageSize = 0x200

	offRomAreaStart  = 0x104
	offBackupArea    = 0x108
	offKeyIndex      = 0x10C
	offRomSize       = 0x10D
	offVersion       = 0x10E
	offFlags         = 0x10F
	offPackageID     = 0x110
	offValidDataEnd  = 0x118
	offIV            = 0x120
	offPartitionAddr = 0x130
	offPartitionSize = 0x138
	offEncrypted     = 0x190
)

// ErrBadMagic indicates the image does not start with a card header.
var ErrBadMagic = errors.New("xci: bad card header magic")

// DecryptEncryptedHeader decrypts the 0x70-byte encrypted header region
// with AES-128-CBC under key and iv.
func DecryptEncryptedHeader(key, iv, contents []byte) ([]byte, error) {
	if len(key) != block.KeySize {
		return nil, fmt.Errorf("%w: xci header key is %d bytes, want %d", block.ErrInvalidKeyLength, len(key), block.KeySize)
	}
	if len(contents) != EncryptedSize {
		return nil, fmt.Errorf("%w: encrypted header is %d bytes, want %d", block.ErrInvalidBufferLength, len(contents), EncryptedSize)
	}
	return block.DecryptCBC(key, iv, contents)
}

// CardHeader is the plaintext part of the card header.
type CardHeader struct {
	RomAreaStartPage    uint32
	BackupAreaStartPage uint32
	KeyIndex            uint8
	RomSize             uint8
	Version             uint8
	Flags               uint8
	PackageID           uint64
	ValidDataEndPage    uint32
	IV                  [block.Size]byte // as stored, byte-reversed
	PartitionFsOffset   uint64
	PartitionFsSize     uint64
	Encrypted           [EncryptedSize]byte
}

// ParseCardHeader parses the card header at the start of b.
func ParseCardHeader(b []byte) (*CardHeader, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: card header is %d bytes, want at least %d", block.ErrInvalidBufferLength, len(b), HeaderSize)
	}
	if string(b[MagicOffset:MagicOffset+4]) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, b[MagicOffset:MagicOffset+4])
	}

	le := binary.LittleEndian
	h := &CardHeader{
		RomAreaStartPage:    le.Uint32(b[offRomAreaStart:]),
		BackupAreaStartPage: le.Uint32(b[offBackupArea:]),
		KeyIndex:            b[offKeyIndex],
		RomSize:             b[offRomSize],
		Version:             b[offVersion],
		Flags:               b[offFlags],
		PackageID:           le.Uint64(b[offPackageID:]),
		ValidDataEndPage:    le.Uint32(b[offValidDataEnd:]),
		PartitionFsOffset:   le.Uint64(b[offPartitionAddr:]),
		PartitionFsSize:     le.Uint64(b[offPartitionSize:]),
	}
	copy(h.IV[:], b[offIV:])
	copy(h.Encrypted[:], b[offEncrypted:])
	return h, nil
}

// CBCIV returns the IV in the order the cipher expects.
func (h *CardHeader) CBCIV() []byte {
	iv := make([]byte, block.Size)
	for i := range iv {
		iv[i] = h.IV[block.Size-1-i]
	}
	return iv
}

// DecryptEncrypted decrypts the header's encrypted region with key.
func (h *CardHeader) DecryptEncrypted(key []byte) (*EncryptedHeader, error) {
	dec, err := DecryptEncryptedHeader(key, h.CBCIV(), h.Encrypted[:])
	if err != nil {
		return nil, err
	}
	return parseEncryptedHeader(dec), nil
}

// EncryptedHeader is the decrypted region of the card header.
type EncryptedHeader struct {
	FwVersion         uint64
	AccCtrl1          uint32
	CupVersion        uint32
	CompatibilityType uint8
	UppHash           [8]byte
	CupID             uint64
	Raw               []byte
}

func parseEncryptedHeader(dec []byte) *EncryptedHeader {
	le := binary.LittleEndian
	e := &EncryptedHeader{
		FwVersion:         le.Uint64(dec[0x00:]),
		AccCtrl1:          le.Uint32(dec[0x08:]),
		CupVersion:        le.Uint32(dec[0x20:]),
		CompatibilityType: dec[0x24],
		CupID:             le.Uint64(dec[0x30:]),
		Raw:               dec,
	}
	copy(e.UppHash[:], dec[0x28:])
	return e
}

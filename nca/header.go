// Package nca decrypts and parses content archive headers.
//
// The 0xC00-byte header is AES-128-XTS encrypted in 0x200-byte sectors with
// a big-endian sector tweak. The first 0x400 bytes are decrypted first and
// must carry the NCA3 magic at 0x200 before the remaining 0x800 bytes
// (sectors 2 to 5) are decrypted.
package nca

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lvdlvd/nxcrypt/block"
	"github.com/lvdlvd/nxcrypt/xts"
)

const (
	// HeaderSize is the size of the encrypted header.
	HeaderSize = 0xC00

	// HeaderKeySize is the size of the XTS header key (two AES-128 keys).
	HeaderKeySize = 0x20

	// SectorSize is the XTS sector size of the header.
	SectorSize = 0x200

	// Magic is the header magic of the supported format version.
	Magic = "NCA3"

	firstAreaSize = 0x400
	secondSector  = firstAreaSize / SectorSize
	magicOffset   = 0x200

	// MediaUnit is the unit of section table offsets.
	MediaUnit = 0x200
)

func newHeaderCipher(key []byte) (*xts.Cipher, error) {
	if len(key) != HeaderKeySize {
		return nil, fmt.Errorf("%w: header key is %d bytes, want %d", block.ErrInvalidKeyLength, len(key), HeaderKeySize)
	}
	return xts.New(key, SectorSize, xts.BigEndianTweak)
}

// DecryptHeader decrypts the first HeaderSize bytes of header with the
// 32-byte header key and returns them as a new buffer. Longer inputs are
// accepted; header itself is not modified. If the magic does not match
// after the first area, a *MagicError is returned and the rest of the
// header is left undecrypted.
func DecryptHeader(key, header []byte) ([]byte, error) {
	c, err := newHeaderCipher(key)
	if err != nil {
		return nil, err
	}
	if len(header) < HeaderSize {
		return nil, fmt.Errorf("%w: header is %d bytes, want at least %d", block.ErrInvalidBufferLength, len(header), HeaderSize)
	}

	out := bytes.Clone(header[:HeaderSize])
	if err := c.DecryptSectors(out[:firstAreaSize], 0); err != nil {
		return nil, err
	}
	if err := checkMagic(out); err != nil {
		return nil, err
	}
	if err := c.DecryptSectors(out[firstAreaSize:], secondSector); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadHeader reads, decrypts and parses the header at the start of r.
func ReadHeader(r io.ReaderAt, key []byte) (*Header, error) {
	c, err := newHeaderCipher(key)
	if err != nil {
		return nil, err
	}
	xr := xts.NewReaderAt(r, c, HeaderSize)

	buf := make([]byte, HeaderSize)
	if err := readFull(xr, buf[:firstAreaSize], 0); err != nil {
		return nil, err
	}
	if err := checkMagic(buf); err != nil {
		return nil, err
	}
	if err := readFull(xr, buf[firstAreaSize:], firstAreaSize); err != nil {
		return nil, err
	}
	return ParseHeader(buf)
}

func readFull(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: header truncated at %#x", block.ErrInvalidBufferLength, off+int64(n))
	}
	return fmt.Errorf("nca: reading header: %w", err)
}

func checkMagic(dec []byte) error {
	var m [4]byte
	copy(m[:], dec[magicOffset:magicOffset+4])
	if string(m[:]) != Magic {
		return &MagicError{Magic: m}
	}
	return nil
}

// Header is the parsed form of a decrypted header.
type Header struct {
	Magic                  [4]byte
	Distribution           DistributionType
	ContentType            ContentType
	KeyGenerationOld       uint8
	KeyAreaKeyIndex        uint8
	ContentSize            uint64
	ProgramID              uint64
	ContentIndex           uint32
	SDKVersion             uint32
	KeyGeneration          uint8
	SignatureKeyGeneration uint8
	RightsID               [0x10]byte
	Sections               [SectionCount]SectionEntry
	KeyArea                [KeyAreaEntries][KeyAreaEntrySize]byte // still encrypted
	SectionHeaders         [SectionCount]SectionHeader
}

// Header field offsets.
const (
	offDistribution   = 0x204
	offContentType    = 0x205
	offKeyGenOld      = 0x206
	offKeyAreaIndex   = 0x207
	offContentSize    = 0x208
	offProgramID      = 0x210
	offContentIndex   = 0x218
	offSDKVersion     = 0x21C
	offKeyGen         = 0x220
	offSigKeyGen      = 0x221
	offRightsID       = 0x230
	offSectionTable   = 0x240
	offKeyArea        = 0x300
	offSectionHeaders = 0x400

	sectionEntrySize = 0x10
)

// ParseHeader parses a decrypted header. It checks the magic but does not
// validate any other field.
func ParseHeader(dec []byte) (*Header, error) {
	if len(dec) < HeaderSize {
		return nil, fmt.Errorf("%w: header is %d bytes, want at least %d", block.ErrInvalidBufferLength, len(dec), HeaderSize)
	}
	if err := checkMagic(dec); err != nil {
		return nil, err
	}

	le := binary.LittleEndian
	h := &Header{
		Distribution:           DistributionType(dec[offDistribution]),
		ContentType:            ContentType(dec[offContentType]),
		KeyGenerationOld:       dec[offKeyGenOld],
		KeyAreaKeyIndex:        dec[offKeyAreaIndex],
		ContentSize:            le.Uint64(dec[offContentSize:]),
		ProgramID:              le.Uint64(dec[offProgramID:]),
		ContentIndex:           le.Uint32(dec[offContentIndex:]),
		SDKVersion:             le.Uint32(dec[offSDKVersion:]),
		KeyGeneration:          dec[offKeyGen],
		SignatureKeyGeneration: dec[offSigKeyGen],
	}
	copy(h.Magic[:], dec[magicOffset:])
	copy(h.RightsID[:], dec[offRightsID:])

	for i := range h.Sections {
		e := dec[offSectionTable+i*sectionEntrySize:]
		h.Sections[i] = SectionEntry{
			StartBlock: le.Uint32(e[0:]),
			EndBlock:   le.Uint32(e[4:]),
		}
	}
	for i := range h.KeyArea {
		copy(h.KeyArea[i][:], dec[offKeyArea+i*KeyAreaEntrySize:])
	}
	for i := range h.SectionHeaders {
		h.SectionHeaders[i] = parseSectionHeader(dec[offSectionHeaders+i*SectorSize:][:SectorSize])
	}
	return h, nil
}

// HasRightsID reports whether the archive uses title-key crypto instead of
// its key area.
func (h *Header) HasRightsID() bool {
	return h.RightsID != [0x10]byte{}
}

// KeyRevision returns the master key revision selected by the larger of the
// two key generation fields. Generations 0 and 1 both map to revision 0.
func (h *Header) KeyRevision() int {
	gen := max(h.KeyGenerationOld, h.KeyGeneration)
	if gen == 0 {
		return 0
	}
	return int(gen) - 1
}

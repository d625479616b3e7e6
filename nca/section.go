package nca

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lvdlvd/nxcrypt/ctr"
)

// SectionCount is the number of section slots in a header.
const SectionCount = 4

// SectionEntry locates a section body, in MediaUnit blocks from the start
// of the archive.
type SectionEntry struct {
	StartBlock uint32
	EndBlock   uint32
}

// Present reports whether the slot describes a non-empty section.
func (e SectionEntry) Present() bool { return e.EndBlock > e.StartBlock }

// Offset returns the absolute byte offset of the section.
func (e SectionEntry) Offset() int64 { return int64(e.StartBlock) * MediaUnit }

// Size returns the section size in bytes.
func (e SectionEntry) Size() int64 {
	if !e.Present() {
		return 0
	}
	return int64(e.EndBlock-e.StartBlock) * MediaUnit
}

// SectionHeader is the leading part of a section's filesystem header.
type SectionHeader struct {
	Version        uint16
	FsType         FsType
	HashType       uint8
	EncryptionType EncryptionType
	UpperCounter   [ctr.NonceSize]byte // as stored
}

const offUpperCounter = 0x140

func parseSectionHeader(b []byte) SectionHeader {
	s := SectionHeader{
		Version:        binary.LittleEndian.Uint16(b[0:]),
		FsType:         FsType(b[2]),
		HashType:       b[3],
		EncryptionType: EncryptionType(b[4]),
	}
	copy(s.UpperCounter[:], b[offUpperCounter:])
	return s
}

// Nonce returns the CTR nonce for the section: the stored upper counter is
// little-endian, the counter block wants it big-endian.
func (s SectionHeader) Nonce() [ctr.NonceSize]byte {
	var n [ctr.NonceSize]byte
	for i := range n {
		n[i] = s.UpperCounter[ctr.NonceSize-1-i]
	}
	return n
}

// OpenSection returns a reader over the plaintext of section i of the
// archive in r. key is the decrypted 16-byte CTR key from the key area.
// Unencrypted sections ignore key.
func (h *Header) OpenSection(r io.ReaderAt, i int, key []byte) (*io.SectionReader, error) {
	if i < 0 || i >= SectionCount || !h.Sections[i].Present() {
		return nil, fmt.Errorf("%w: %d", ErrNoSection, i)
	}
	entry := h.Sections[i]
	sh := h.SectionHeaders[i]

	switch sh.EncryptionType {
	case EncryptionNone:
		return io.NewSectionReader(r, entry.Offset(), entry.Size()), nil
	case EncryptionCTR, EncryptionCTREx:
		nonce := sh.Nonce()
		cur, err := ctr.New(key, nonce[:], entry.Offset())
		if err != nil {
			return nil, fmt.Errorf("nca: section %d: %w", i, err)
		}
		return io.NewSectionReader(ctr.NewReaderAt(r, cur), entry.Offset(), entry.Size()), nil
	default:
		return nil, fmt.Errorf("%w: section %d uses %s", ErrUnsupportedEncryption, i, sh.EncryptionType)
	}
}

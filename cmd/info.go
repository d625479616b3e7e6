// Package cmd implements the nxcrypt commands.
package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lvdlvd/nxcrypt/nca"
	"github.com/lvdlvd/nxcrypt/xci"
)

// PrintOptions controls how decrypted headers are shown
type PrintOptions struct {
	JSON bool // Emit JSON instead of text
}

// Header writes the fields of a decrypted archive header.
func Header(h *nca.Header, out io.Writer, opts PrintOptions) error {
	if opts.JSON {
		return printJSON(out, h)
	}

	fmt.Fprintf(out, "Magic:           %s\n", h.Magic[:])
	fmt.Fprintf(out, "Distribution:    %s\n", h.Distribution)
	fmt.Fprintf(out, "Content type:    %s\n", h.ContentType)
	fmt.Fprintf(out, "Content size:    %#x\n", h.ContentSize)
	fmt.Fprintf(out, "Program ID:      %016x\n", h.ProgramID)
	fmt.Fprintf(out, "Content index:   %d\n", h.ContentIndex)
	fmt.Fprintf(out, "SDK version:     %d.%d.%d.%d\n",
		byte(h.SDKVersion>>24), byte(h.SDKVersion>>16), byte(h.SDKVersion>>8), byte(h.SDKVersion))
	fmt.Fprintf(out, "Key revision:    %d\n", h.KeyRevision())
	fmt.Fprintf(out, "Key area index:  %d\n", h.KeyAreaKeyIndex)
	if h.HasRightsID() {
		fmt.Fprintf(out, "Rights ID:       %x\n", h.RightsID)
	}

	for i, s := range h.Sections {
		if !s.Present() {
			continue
		}
		sh := h.SectionHeaders[i]
		nonce := sh.Nonce()
		fmt.Fprintf(out, "Section %d:       offset %#x size %#x %s %s nonce %x\n",
			i, s.Offset(), s.Size(), sh.FsType, sh.EncryptionType, nonce)
	}
	return nil
}

// KeyArea writes decrypted key-area entries, one hex key per line.
func KeyArea(keys [][]byte, out io.Writer, opts PrintOptions) error {
	if opts.JSON {
		hexKeys := make([]string, len(keys))
		for i, k := range keys {
			hexKeys[i] = hex.EncodeToString(k)
		}
		return printJSON(out, hexKeys)
	}
	for i, k := range keys {
		fmt.Fprintf(out, "Key %d: %x\n", i, k)
	}
	return nil
}

// Card writes the plaintext card header and its decrypted region.
func Card(h *xci.CardHeader, e *xci.EncryptedHeader, out io.Writer, opts PrintOptions) error {
	if opts.JSON {
		return printJSON(out, struct {
			Header    *xci.CardHeader
			Encrypted *xci.EncryptedHeader
		}{h, e})
	}

	fmt.Fprintf(out, "Package ID:      %016x\n", h.PackageID)
	fmt.Fprintf(out, "ROM size:        %#02x\n", h.RomSize)
	fmt.Fprintf(out, "Flags:           %#02x\n", h.Flags)
	fmt.Fprintf(out, "Valid data end:  %#x\n", int64(h.ValidDataEndPage)*xci.PageSize)
	fmt.Fprintf(out, "Partition FS:    offset %#x size %#x\n", h.PartitionFsOffset, h.PartitionFsSize)
	if e != nil {
		fmt.Fprintf(out, "FW version:      %d\n", e.FwVersion)
		fmt.Fprintf(out, "CUP version:     %d\n", e.CupVersion)
		fmt.Fprintf(out, "CUP ID:          %016x\n", e.CupID)
	}
	return nil
}

func printJSON(out io.Writer, v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

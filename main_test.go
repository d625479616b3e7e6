package main

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lvdlvd/nxcrypt/block"
	"github.com/lvdlvd/nxcrypt/ctr"
	"github.com/lvdlvd/nxcrypt/nca"
	"github.com/lvdlvd/nxcrypt/xci"
	"github.com/lvdlvd/nxcrypt/xts"
)

func seq(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

var (
	headerKey  = seq(nca.HeaderKeySize, 0x30)
	keyAreaKey = seq(block.KeySize, 0x50)
	sectionKey = seq(block.KeySize, 0x70)
	cardKey    = seq(block.KeySize, 0x90)
	ctrNonce   = []byte{0, 0, 0, 1, 0, 0, 0, 0}
	body       = seq(2*nca.MediaUnit, 0x11)
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// archive builds an encrypted content archive with one CTR section.
func archive(t *testing.T) []byte {
	t.Helper()
	h := make([]byte, nca.HeaderSize)
	le := binary.LittleEndian
	copy(h[0x200:], nca.Magic)
	h[0x205] = byte(nca.Program)
	le.PutUint64(h[0x210:], 0x0100ABCD00000000)
	le.PutUint32(h[0x240:], nca.HeaderSize/nca.MediaUnit)
	le.PutUint32(h[0x244:], nca.HeaderSize/nca.MediaUnit+2)
	for i := 0; i < nca.KeyAreaEntries; i++ {
		enc, err := block.EncryptECB(keyAreaKey, sectionKey)
		require.NoError(t, err)
		copy(h[0x300+i*0x10:], enc)
	}
	h[0x404] = byte(nca.EncryptionCTR)
	// Stored little-endian; becomes ctrNonce.
	copy(h[0x540:], []byte{0, 0, 0, 0, 1, 0, 0, 0})

	c, err := xts.New(headerKey, nca.SectorSize, xts.BigEndianTweak)
	require.NoError(t, err)
	require.NoError(t, c.EncryptSectors(h, 0))

	cur, err := ctr.New(sectionKey, ctrNonce, nca.HeaderSize)
	require.NoError(t, err)
	enc := bytes.Clone(body)
	require.NoError(t, cur.Read(nca.HeaderSize, enc))
	return append(h, enc...)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), err
}

func TestHeaderCommand(t *testing.T) {
	path := writeFile(t, "a.nca", archive(t))

	out, err := runCLI(t, "header", "--header-key", hex.EncodeToString(headerKey), path)
	require.NoError(t, err)
	require.Contains(t, out, "Magic:           NCA3")
	require.Contains(t, out, "Program ID:      0100abcd00000000")
	require.Contains(t, out, "AesCtr")

	_, err = runCLI(t, "header", "--header-key", hex.EncodeToString(seq(nca.HeaderKeySize, 1)), path)
	require.ErrorIs(t, err, nca.ErrFormatMismatch)

	_, err = runCLI(t, "header", "--header-key", "abcd", path)
	require.ErrorIs(t, err, block.ErrInvalidKeyLength)

	_, err = runCLI(t, "header", path)
	require.Error(t, err)
}

func TestKeyAreaCommandWithKeysFile(t *testing.T) {
	path := writeFile(t, "a.nca", archive(t))
	keys := writeFile(t, "keys.yaml", []byte(fmt.Sprintf(
		"header_key: %x\nkey_area_key: %x\n", headerKey, keyAreaKey)))

	out, err := runCLI(t, "--keys", keys, "keyarea", path)
	require.NoError(t, err)
	require.Contains(t, out, fmt.Sprintf("Key 2: %x", sectionKey))

	out, err = runCLI(t, "--keys", keys, "--json", "keyarea", path)
	require.NoError(t, err)
	require.Contains(t, out, hex.EncodeToString(sectionKey))
}

func TestSectionCommand(t *testing.T) {
	path := writeFile(t, "a.nca", archive(t))

	out, err := runCLI(t, "section",
		"--header-key", hex.EncodeToString(headerKey),
		"--key-area-key", hex.EncodeToString(keyAreaKey),
		path)
	require.NoError(t, err)
	require.Equal(t, string(body), out)

	_, err = runCLI(t, "section", "--index", "7",
		"--header-key", hex.EncodeToString(headerKey),
		"--key-area-key", hex.EncodeToString(keyAreaKey),
		path)
	require.ErrorIs(t, err, nca.ErrNoSection)
}

func TestCTRCommand(t *testing.T) {
	path := writeFile(t, "a.nca", archive(t))

	out, err := runCLI(t, "ctr",
		"--key", hex.EncodeToString(sectionKey),
		"--nonce", hex.EncodeToString(ctrNonce),
		"--offset", fmt.Sprint(nca.HeaderSize+0x10),
		"--size", "32",
		path)
	require.NoError(t, err)
	require.Equal(t, string(body[0x10:0x30]), out)

	out, err = runCLI(t, "ctr",
		"--key", hex.EncodeToString(sectionKey),
		"--nonce", hex.EncodeToString(ctrNonce),
		"--offset", fmt.Sprint(nca.HeaderSize),
		path)
	require.NoError(t, err)
	require.Equal(t, string(body), out)

	_, err = runCLI(t, "ctr", "--key", hex.EncodeToString(sectionKey), "--nonce", "00", path)
	require.ErrorIs(t, err, block.ErrInvalidKeyLength)
}

func TestXCICommand(t *testing.T) {
	img := make([]byte, xci.HeaderSize)
	copy(img[xci.MagicOffset:], xci.Magic)
	binary.LittleEndian.PutUint64(img[0x110:], 0xCAFEBABE12345678)
	iv := seq(block.Size, 0xA0)
	for i := range iv {
		img[0x120+i] = iv[len(iv)-1-i]
	}
	region := make([]byte, xci.EncryptedSize)
	binary.LittleEndian.PutUint64(region[0x30:], 0x0100000000000816)
	enc, err := block.EncryptCBC(cardKey, iv, region)
	require.NoError(t, err)
	copy(img[0x190:], enc)
	path := writeFile(t, "card.xci", img)

	out, err := runCLI(t, "xci", "--xci-header-key", hex.EncodeToString(cardKey), path)
	require.NoError(t, err)
	require.Contains(t, out, "Package ID:      cafebabe12345678")
	require.Contains(t, out, "CUP ID:          0100000000000816")

	out, err = runCLI(t, "xci", path)
	require.NoError(t, err)
	require.NotContains(t, out, "CUP ID")
}

func TestDetectCommand(t *testing.T) {
	path := writeFile(t, "a.nca", archive(t))

	out, err := runCLI(t, "detect", "--header-key", hex.EncodeToString(headerKey), path)
	require.NoError(t, err)
	require.Equal(t, "NCA3\n", out)

	out, err = runCLI(t, "detect", path)
	require.NoError(t, err)
	require.Equal(t, "unknown\n", out)
}

func TestLogLevelFlag(t *testing.T) {
	path := writeFile(t, "a.nca", archive(t))
	_, err := runCLI(t, "--log-level", "loud", "detect", path)
	require.Error(t, err)

	_, err = runCLI(t, "--log-level", "debug", "detect", path)
	require.NoError(t, err)
}

package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lvdlvd/nxcrypt/block"
)

// Keys holds hex-encoded key material, as read from a keys file.
type Keys struct {
	HeaderKey    string `yaml:"header_key"`
	KeyAreaKey   string `yaml:"key_area_key"`
	XCIHeaderKey string `yaml:"xci_header_key"`
}

// LoadKeys reads a YAML keys file.
func LoadKeys(path string) (*Keys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keys: %w", err)
	}
	var k Keys
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("parsing keys %s: %w", path, err)
	}
	return &k, nil
}

// Merge returns k with every non-empty field of override applied.
func (k Keys) Merge(override Keys) Keys {
	if override.HeaderKey != "" {
		k.HeaderKey = override.HeaderKey
	}
	if override.KeyAreaKey != "" {
		k.KeyAreaKey = override.KeyAreaKey
	}
	if override.XCIHeaderKey != "" {
		k.XCIHeaderKey = override.XCIHeaderKey
	}
	return k
}

// DecodeKey decodes a hex key and checks its length.
func DecodeKey(name, s string, size int) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(key) != size {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", block.ErrInvalidKeyLength, name, len(key), size)
	}
	return key, nil
}

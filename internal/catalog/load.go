package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog document.
type File struct {
	Builtin     *bool        `yaml:"builtin,omitempty"`
	Definitions []Definition `yaml:"definitions"`
}

// Load reads a catalog YAML file. Empty path or a missing file returns the
// built-in catalog. Invalid YAML or an inconsistent table returns an error.
func Load(path string) (*Catalog, error) {
	c, _, err := LoadWithHash(path)
	return c, err
}

// LoadWithHash loads the catalog and returns the SHA-256 of the raw bytes.
// When no file is read the hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*Catalog, string, error) {
	if path == "" {
		return Default(), HashBytes(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), HashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read catalog: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, "", err
	}
	return c, HashBytes(data), nil
}

// Parse builds a catalog from YAML bytes. Unless the document sets
// builtin: false, its definitions override the built-in table by key and
// new keys are appended.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if f.Builtin != nil && !*f.Builtin {
		return New(f.Definitions)
	}

	defs := DefaultDefinitions()
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.Key] = i
	}
	seen := make(map[string]bool, len(f.Definitions))
	for _, d := range f.Definitions {
		if i, ok := index[d.Key]; ok && !seen[d.Key] {
			defs[i] = d
			seen[d.Key] = true
			continue
		}
		// A repeated key is appended so New reports the duplicate.
		seen[d.Key] = true
		defs = append(defs, d)
	}
	return New(defs)
}

// HashBytes returns the "sha256:<hex>" digest used for catalog hashes.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

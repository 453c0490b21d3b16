// Package store reads the per-entity attributes the pipeline starts from.
//
// The attribute layout follows the one produced by the upstream feature
// extraction step: an ordered list of entity ids and two numeric feature
// matrices row-aligned to it. The same schema can be served from the
// attributes of a zarr group (its .zattrs JSON document), from a YAML file,
// or from memory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Attribute keys of the fixed schema.
const (
	KeyIDs      = "contig_id_list"
	KeyFeatureA = "tnf_list"
	KeyFeatureB = "rpkm_list"
)

// zarrAttrsFile is the attribute document of a zarr group.
const zarrAttrsFile = ".zattrs"

// ErrAttributeMissing is returned when a required key is absent.
var ErrAttributeMissing = errors.New("attribute missing")

// Store is a read-only key/attribute store.
type Store interface {
	Has(key string) bool
	// Decode unmarshals the value of key into dst.
	Decode(key string, dst any) error
}

// Open picks a backend from the shape of path: a directory is read as a
// zarr group, a .yaml/.yml file as YAML, anything else as a JSON document.
func Open(path string) (Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attribute store: %w", err)
	}
	if info.IsDir() {
		return OpenZarr(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return OpenYAML(path)
	default:
		return openJSON(path)
	}
}

// --- JSON / zarr ---

type jsonStore struct {
	attrs map[string]json.RawMessage
}

// OpenZarr reads the attributes of the zarr group rooted at root.
func OpenZarr(root string) (Store, error) {
	return openJSON(filepath.Join(root, zarrAttrsFile))
}

func openJSON(path string) (Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attributes: %w", err)
	}
	attrs := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("invalid attribute document %s: %w", path, err)
	}
	return &jsonStore{attrs: attrs}, nil
}

func (s *jsonStore) Has(key string) bool {
	_, ok := s.attrs[key]
	return ok
}

func (s *jsonStore) Decode(key string, dst any) error {
	raw, ok := s.attrs[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAttributeMissing, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("attribute %s: %w", key, err)
	}
	return nil
}

// WriteZarrAttrs writes attrs as the .zattrs document of a zarr group,
// creating root if needed.
func WriteZarrAttrs(root string, attrs map[string]any) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(root, zarrAttrsFile), data, 0o644)
}

// --- YAML ---

type yamlStore struct {
	attrs map[string]yaml.Node
}

// OpenYAML reads a YAML document whose top-level mapping holds the attributes.
func OpenYAML(path string) (Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attributes: %w", err)
	}
	defer file.Close()

	attrs := make(map[string]yaml.Node)
	if err := yaml.NewDecoder(file).Decode(&attrs); err != nil {
		return nil, fmt.Errorf("invalid attribute document %s: %w", path, err)
	}
	return &yamlStore{attrs: attrs}, nil
}

func (s *yamlStore) Has(key string) bool {
	_, ok := s.attrs[key]
	return ok
}

func (s *yamlStore) Decode(key string, dst any) error {
	node, ok := s.attrs[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAttributeMissing, key)
	}
	if err := node.Decode(dst); err != nil {
		return fmt.Errorf("attribute %s: %w", key, err)
	}
	return nil
}

// --- Memory ---

// Memory is an in-process store. Values go through a JSON round trip on
// Decode so callers get the same conversion rules as the file backends.
type Memory struct {
	attrs map[string]any
}

// NewMemory wraps attrs. The map is not copied.
func NewMemory(attrs map[string]any) *Memory {
	return &Memory{attrs: attrs}
}

func (m *Memory) Has(key string) bool {
	_, ok := m.attrs[key]
	return ok
}

func (m *Memory) Decode(key string, dst any) error {
	v, ok := m.attrs[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAttributeMissing, key)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("attribute %s: %w", key, err)
	}
	return nil
}

package catalog

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

//go:embed default.yaml
var defaultCatalog []byte

// bytesProvider serves an in-memory YAML document to koanf.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) { return b, nil }

func (b bytesProvider) Read() (map[string]any, error) {
	return nil, errors.New("bytes provider does not support Read")
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	var p koanf.Provider = bytesProvider(defaultCatalog)
	if path != "" {
		p = file.Provider(path)
	}
	return load(p, path)
}

// Parse builds a catalog from a YAML document.
func Parse(doc []byte) (*Catalog, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrConfigurationMissing)
	}
	return load(bytesProvider(doc), "inline")
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

func load(p koanf.Provider, source string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigurationMissing, source, err)
	}
	if len(k.Keys()) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrConfigurationMissing, source)
	}

	var def Definition
	if err := k.UnmarshalWithConf("", &def, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCatalog, source, err)
	}
	return New(def)
}

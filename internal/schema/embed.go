package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var defaultRegistryYAML []byte

//go:embed aliases.yaml
var defaultAliasesYAML []byte

// DefaultRegistry returns the registry built from the embedded layout
// declarations covering eras 1998-2024.
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(bytes.NewReader(defaultRegistryYAML))
}

type aliasDoc struct {
	Version int               `yaml:"version"`
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliases parses a versioned alias-table document.
func LoadAliases(r io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read alias table: %w", err)
	}
	var doc aliasDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse alias table: %w", err)
	}
	if doc.Version < 1 {
		return nil, fmt.Errorf("alias table: missing version")
	}
	return doc.Aliases, nil
}

// DefaultAliases returns the embedded alias table.
func DefaultAliases() (map[string]string, error) {
	return LoadAliases(bytes.NewReader(defaultAliasesYAML))
}

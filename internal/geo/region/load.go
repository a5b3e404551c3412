package region

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads Bounds from a YAML file. An empty path yields SomaliaBounds.
func LoadFile(path string) (Bounds, error) {
	if path == "" {
		return SomaliaBounds(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Bounds{}, fmt.Errorf("read region config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes Bounds from YAML and validates them.
func Parse(raw []byte) (Bounds, error) {
	var b Bounds
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return Bounds{}, fmt.Errorf("decode region config: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Bounds{}, fmt.Errorf("invalid region config: %w", err)
	}
	return b, nil
}

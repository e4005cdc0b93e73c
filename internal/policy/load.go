package policy

import (
	"fmt"
	"os"
)

// Load builds an Engine from the policy file at path, or falls back to the
// embedded default when path is empty.
func Load(path string) (*Engine, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return NewFromYAML(raw)
}

package policy

import (
	_ "embed"
)

//go:embed default.yaml
var defaultPolicyYAML []byte

// Default returns the engine built from the embedded default policy
// (spec §4.2), used whenever no policy path is configured.
func Default() (*Engine, error) {
	return NewFromYAML(defaultPolicyYAML)
}

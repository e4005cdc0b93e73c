// Package idgen mints the prefixed identifiers used throughout mnemex's
// v2 entities (mem_, t_, con_, log_, app_). IDs are opaque random hex
// suffixes, not sequential and not derived from content.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

func randHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("idgen: read random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// Memory mints a new MemoryObject id: mem_<16-hex>.
func Memory() string { return "mem_" + randHex(8) }

// Tenant mints a new tenant id: t_<16-hex>.
func Tenant() string { return "t_" + randHex(8) }

// Constraint mints a new Constraint id: con_<16-hex>.
func Constraint() string { return "con_" + randHex(8) }

// AccessLog mints a new AccessLog id: log_<16-hex>.
func AccessLog() string { return "log_" + randHex(8) }

// App mints a new App id: app_<16-hex>.
func App() string { return "app_" + randHex(8) }

// Link mints a new DerivedObjectLink id: lnk_<16-hex>.
func Link() string { return "lnk_" + randHex(8) }

// Artifact mints a new ThoughtPatternArtifact id: tpa_<16-hex>.
func Artifact() string { return "tpa_" + randHex(8) }

// Package potdb holds the pseudopotential catalog: per-variant recommended
// cutoffs and valence electron counts, keyed by functional family. The
// catalog replaces the environment-derived installation paths the wrapped
// program's tooling would otherwise consult; it ships with embedded defaults
// and can be overridden by an explicit file at startup.
package potdb

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed potentials.yaml
var defaultCatalog []byte

// Potential is one catalog entry.
type Potential struct {
	Enmax float64 `yaml:"enmax"`
	Zval  float64 `yaml:"zval"`
}

// DB maps functional family ("pbe", "pw91") to potential variant records.
type DB map[string]map[string]Potential

// Default returns the embedded catalog.
func Default() (DB, error) {
	return parse(defaultCatalog)
}

// Load reads a catalog file of the same shape as the embedded defaults.
func Load(path string) (DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("potdb: read catalog: %w", err)
	}
	db, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("potdb: %s: %w", path, err)
	}
	return db, nil
}

func parse(data []byte) (DB, error) {
	db := DB{}
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("potdb: parse catalog: %w", err)
	}
	if len(db) == 0 {
		return nil, fmt.Errorf("potdb: catalog has no functional families")
	}
	return db, nil
}

// Lookup resolves a potential variant under a functional family. The family
// comparison is case-insensitive.
func (db DB) Lookup(functional, symbol string) (Potential, error) {
	family, ok := db[strings.ToLower(functional)]
	if !ok {
		return Potential{}, fmt.Errorf("potdb: unknown functional family %q", functional)
	}
	pot, ok := family[symbol]
	if !ok {
		return Potential{}, fmt.Errorf("potdb: no %q potential under %q", symbol, functional)
	}
	return pot, nil
}

// Package keywords defines the validated configuration record an ingredient
// is constructed from. The record is typed with named fields; loaders that
// start from a generic mapping go through FromMap, which enforces the
// allow-list of recognized keys.
package keywords

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/hmatter/ingot/internal/vaspdata"
)

// Recognized top-level configuration keys.
const (
	KeyName        = "name"
	KeyProgram     = "program"
	KeyProgramKeys = "program_keys"
	KeyStructure   = "structure"
	KeyChildDict   = "child_dict"
)

// Recognized program-key directives. Any other program key passes through
// verbatim as a run-control tag for the wrapped program.
const (
	PKKpoints       = "mast_kpoints"
	PKXC            = "mast_xc"
	PKCharge        = "mast_charge"
	PKSetMagmom     = "mast_setmagmom"
	PKPPSetup       = "mast_pp_setup"
	PKMultiplyEncut = "mast_multiplyencut"
	PKCoordinates   = "mast_coordinates"
	PKImages        = "images"
)

// ErrUnknownKey reports a configuration key outside the allow-list.
var ErrUnknownKey = errors.New("keywords: unrecognized configuration key")

// ProgramKeys is the program-specific directive mapping.
type ProgramKeys map[string]any

// Has reports whether the key is present.
func (pk ProgramKeys) Has(key string) bool {
	_, ok := pk[key]
	return ok
}

// String returns the key's value rendered as a string.
func (pk ProgramKeys) String(key string) string {
	v, ok := pk[key]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Float returns the key's value as a float64, or 0 when absent or non-numeric.
func (pk ProgramKeys) Float(key string) float64 {
	switch t := pk[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

// Int returns the key's value as an int, or 0 when absent or non-numeric.
func (pk ProgramKeys) Int(key string) int {
	return int(pk.Float(key))
}

// List returns the key's value as a slice, or nil.
func (pk ProgramKeys) List(key string) []any {
	if l, ok := pk[key].([]any); ok {
		return l
	}
	return nil
}

// StringMap returns the key's value as a string-to-string mapping, or nil.
func (pk ProgramKeys) StringMap(key string) map[string]string {
	raw, ok := pk[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// Copy returns a shallow copy of the directive mapping.
func (pk ProgramKeys) Copy() ProgramKeys {
	dup := make(ProgramKeys, len(pk))
	for k, v := range pk {
		dup[k] = v
	}
	return dup
}

// Keywords is one ingredient's configuration record.
type Keywords struct {
	// Name is the job directory path and the ingredient's identity.
	Name string
	// Program selects the external-program variant from the checker registry.
	Program string
	// ProgramKeys carries program-specific directives.
	ProgramKeys ProgramKeys
	// Structure optionally seeds input generation when no prior output exists.
	Structure *vaspdata.Structure
	// Children maps child-role labels to child job directory paths.
	Children map[string]string
}

// Validate checks the record's structural invariants.
func (k *Keywords) Validate() error {
	if k.Name == "" {
		return fmt.Errorf("keywords: %q is required", KeyName)
	}
	if k.Program == "" {
		return fmt.Errorf("keywords: %q is required", KeyProgram)
	}
	return nil
}

// ShortName returns the last path segment of the job directory.
func (k *Keywords) ShortName() string {
	return path.Base(strings.TrimRight(k.Name, "/"))
}

// Images returns the configured chain-of-images count, or 0 for single
// calculations.
func (k *Keywords) Images() int {
	if k.ProgramKeys == nil {
		return 0
	}
	return k.ProgramKeys.Int(PKImages)
}

// FromMap builds a Keywords record from a generic mapping, enforcing the
// allow-list. Keys outside the allow-list fail with ErrUnknownKey.
func FromMap(m map[string]any) (*Keywords, error) {
	kw := &Keywords{ProgramKeys: ProgramKeys{}}
	for key, value := range m {
		switch key {
		case KeyName:
			kw.Name, _ = value.(string)
		case KeyProgram:
			kw.Program, _ = value.(string)
		case KeyProgramKeys:
			raw, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("keywords: %q must be a mapping, got %T", KeyProgramKeys, value)
			}
			for pk, pv := range raw {
				kw.ProgramKeys[pk] = pv
			}
		case KeyStructure:
			st, ok := value.(*vaspdata.Structure)
			if !ok && value != nil {
				return nil, fmt.Errorf("keywords: %q must be a structure, got %T", KeyStructure, value)
			}
			kw.Structure = st
		case KeyChildDict:
			raw, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("keywords: %q must be a mapping, got %T", KeyChildDict, value)
			}
			kw.Children = make(map[string]string, len(raw))
			for role, child := range raw {
				kw.Children[role] = fmt.Sprintf("%v", child)
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	}
	if err := kw.Validate(); err != nil {
		return nil, err
	}
	return kw, nil
}

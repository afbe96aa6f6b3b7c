package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmatter/ingot/internal/keywords"
)

func stubFactory(kw *keywords.Keywords) (Checker, ErrorHandler, error) {
	return nil, nil, nil
}

func TestRegistryResolveUnknownProgram(t *testing.T) {
	reg := NewRegistry()
	reg.Register("vasp", stubFactory)

	_, _, err := reg.Resolve(&keywords.Keywords{Name: "work/a", Program: "phon"})
	require.Error(t, err)

	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Contains(t, confErr.Error(), "phon")
	assert.Contains(t, confErr.Error(), "vasp")
}

func TestRegistryResolveKnownProgram(t *testing.T) {
	reg := NewRegistry()
	reg.Register("vasp", stubFactory)

	_, _, err := reg.Resolve(&keywords.Keywords{Name: "work/a", Program: "vasp"})
	require.NoError(t, err)
}

func TestRegistryDuplicateRegistrationPanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register("vasp", stubFactory)
	assert.Panics(t, func() {
		reg.Register("vasp", stubFactory)
	})
}

func TestRegistryEmptyNamePanics(t *testing.T) {
	reg := NewRegistry()
	assert.Panics(t, func() {
		reg.Register("", stubFactory)
	})
	assert.Panics(t, func() {
		reg.Register("vasp", nil)
	})
}

func TestRegistryPrograms(t *testing.T) {
	reg := NewRegistry()
	reg.Register("vasp", stubFactory)
	reg.Register("lammps", stubFactory)
	assert.Equal(t, []string{"lammps", "vasp"}, reg.Programs())
}

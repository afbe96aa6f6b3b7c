package potdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	db, err := Default()
	require.NoError(t, err)
	require.Contains(t, db, "pbe")
	require.Contains(t, db, "pw91")

	al, err := db.Lookup("pbe", "Al")
	require.NoError(t, err)
	assert.Equal(t, 240.3, al.Enmax)
	assert.Equal(t, 3.0, al.Zval)
}

func TestLookupFamilyIsCaseInsensitive(t *testing.T) {
	db, err := Default()
	require.NoError(t, err)

	lower, err := db.Lookup("pbe", "O")
	require.NoError(t, err)
	upper, err := db.Lookup("PBE", "O")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
}

func TestLookupErrors(t *testing.T) {
	db, err := Default()
	require.NoError(t, err)

	_, err = db.Lookup("lda", "Al")
	require.Error(t, err)

	_, err = db.Lookup("pbe", "Unobtainium")
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pots.yaml")
	content := `pbe:
  Xx: {enmax: 123.4, zval: 2.0}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	db, err := Load(path)
	require.NoError(t, err)
	pot, err := db.Lookup("pbe", "Xx")
	require.NoError(t, err)
	assert.Equal(t, 123.4, pot.Enmax)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte(""), 0o644))
	_, err = Load(empty)
	require.Error(t, err)
}

package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmatter/ingot/internal/vaspdata"
)

// fakeProgram stands in for the simulation binary: it converges the run it
// finds in its working directory.
const fakeProgram = `cp POSCAR CONTCAR && ` +
	`echo "reached required accuracy" > OUTCAR && ` +
	`echo "   1 F= -.27E+02 E0= -.27E+02  d E =0.0" > OSZICAR`

func seedStructure(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	s := &vaspdata.Structure{
		Comment: "Al cell",
		Scale:   1.0,
		Lattice: [3][3]float64{{4, 0, 0}, {0, 4, 0}, {0, 0, 4}},
		Sites: []vaspdata.Site{
			{Symbol: "Al", Coords: [3]float64{0, 0, 0}},
			{Symbol: "Al", Coords: [3]float64{0.5, 0.5, 0.5}},
		},
	}
	require.NoError(t, vaspdata.WritePoscar(filepath.Join(dir, "POSCAR"), s))
}

func TestRunChainedWorkflow(t *testing.T) {
	workdir := t.TempDir()
	recipePath := writeTestRecipe(t, `
workdir = "`+workdir+`"

ingredient "opt1" {
  program = "vasp"
  keys = {
    mast_kpoints = [2, 2, 2, "M"]
  }
  child "structure" {
    to = "opt2"
  }
}

ingredient "opt2" {
  program = "vasp"
}
`)
	// Only the root of the chain has a structure up front; opt2 gets its
	// POSCAR from opt1's relaxed output.
	seedStructure(t, filepath.Join(workdir, "opt1"))

	cfg, err := NewConfig(Config{
		RecipePath:     recipePath,
		RunMode:        "noqsub",
		PollInterval:   20 * time.Millisecond,
		MaxPolls:       50,
		LogLevel:       "error",
		LogFormat:      "text",
		ProgramCommand: fakeProgram,
	})
	require.NoError(t, err)

	a, err := NewApp(io.Discard, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	opt1 := filepath.Join(workdir, "opt1")
	opt2 := filepath.Join(workdir, "opt2")

	// opt1 ran and converged.
	assert.FileExists(t, filepath.Join(opt1, "CONTCAR"))
	assert.FileExists(t, filepath.Join(opt1, "submit.sh"))

	// opt1's relaxed structure and energy log arrived in opt2, and opt2
	// then ran to completion itself.
	forwarded, err := vaspdata.ReadPoscar(filepath.Join(opt2, "POSCAR"))
	require.NoError(t, err)
	parent, err := vaspdata.ReadPoscar(filepath.Join(opt1, "CONTCAR"))
	require.NoError(t, err)
	assert.True(t, parent.Matches(forwarded, 1e-6))
	assert.FileExists(t, filepath.Join(opt2, "OSZICAR"))
	assert.FileExists(t, filepath.Join(opt2, "OUTCAR"))

	// Neither directory is left locked.
	assert.NoFileExists(t, filepath.Join(opt1, "ingot.lock"))
	assert.NoFileExists(t, filepath.Join(opt2, "ingot.lock"))
}

func TestRunPollBudgetExhausted(t *testing.T) {
	workdir := t.TempDir()
	recipePath := writeTestRecipe(t, `
workdir = "`+workdir+`"

ingredient "opt1" {
  program = "vasp"
}
`)
	seedStructure(t, filepath.Join(workdir, "opt1"))

	cfg, err := NewConfig(Config{
		RecipePath:     recipePath,
		RunMode:        "noqsub",
		PollInterval:   5 * time.Millisecond,
		MaxPolls:       2,
		LogLevel:       "error",
		LogFormat:      "text",
		ProgramCommand: "true", // never writes output, so the job never completes
	})
	require.NoError(t, err)

	a, err := NewApp(io.Discard, cfg)
	require.NoError(t, err)

	err = a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll budget exhausted")
}

func TestRunHonorsContextCancellation(t *testing.T) {
	workdir := t.TempDir()
	recipePath := writeTestRecipe(t, `
workdir = "`+workdir+`"

ingredient "opt1" {
  program = "vasp"
}
`)
	seedStructure(t, filepath.Join(workdir, "opt1"))

	cfg, err := NewConfig(Config{
		RecipePath:     recipePath,
		RunMode:        "noqsub",
		PollInterval:   time.Hour,
		MaxPolls:       10,
		LogLevel:       "error",
		LogFormat:      "text",
		ProgramCommand: "true",
	})
	require.NoError(t, err)

	a, err := NewApp(io.Discard, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err = a.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

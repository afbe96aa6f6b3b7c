package checker

import (
	"context"

	"github.com/hmatter/ingot/internal/vaspdata"
)

// Checker is the program-specific capability set: everything that requires
// knowledge of one external simulation program's input/output conventions.
// Implementations are bound to a single job's configuration record at
// construction time.
type Checker interface {
	// IsComplete reports whether dir holds a finished, converged run.
	// Transient states (not started, still running) are false, never errors.
	IsComplete(ctx context.Context, dir string) bool
	// IsReadyToRun reports whether dir holds a complete, well-formed input set.
	IsReadyToRun(ctx context.Context, dir string) bool
	// HasStarted reports whether the program has begun writing output in dir.
	HasStarted(dir string) bool
	// RepresentativeDir maps a job directory to the directory completion and
	// error scanning should probe: the directory itself for single
	// calculations, the program-specific representative image sub-directory
	// for chain-of-images jobs.
	RepresentativeDir(dir string) string

	// InitialStructure and FinalStructure parse the program's canonical
	// structure artifacts. An empty dir means the checker's own job directory.
	InitialStructure(dir string) (*vaspdata.Structure, error)
	FinalStructure(dir string) (*vaspdata.Structure, error)
	// StructureFromFile parses an arbitrary structure file.
	StructureFromFile(path string) (*vaspdata.Structure, error)

	// Forwarding operations copy/convert artifacts from this job's directory
	// into dest using the destination program's canonical input filenames.
	ForwardInitialStructureFile(dest string) error
	ForwardFinalStructureFile(dest string) error
	ForwardEnergyFile(dest string) error
	// ForwardParentStructure and ForwardParentEnergy read from an explicit
	// parent directory instead of the checker's own, writing childDir/newname.
	ForwardParentStructure(parentDir, childDir, newname string) error
	ForwardParentEnergy(parentDir, childDir, newname string) error
	ForwardDynamicalMatrixFile(dest string) error
	ForwardDisplacementFile(dest string) error
	// ForwardExtraRestartFiles copies optional restart caches when present;
	// absence of any one is not an error.
	ForwardExtraRestartFiles(dest string) error

	// SetUpProgramInput materializes the full input artifact set from the
	// bound configuration record.
	SetUpProgramInput(ctx context.Context) error
	// SetUpProgramInputNEB replicates input setup across one numbered
	// sub-directory per image of a chain-of-states job.
	SetUpProgramInputNEB(ctx context.Context, imageStructures []*vaspdata.Structure) error
	// NEBParentEnergyPath returns the image sub-directory path a parent
	// energy file attaches to: parent 1 is the initial endpoint, 2 the final.
	NEBParentEnergyPath(dir string, images, parent int) (string, error)
}

// ErrorHandler classifies a stalled job by scanning its output for known
// failure signatures. The count is advisory: it never mutates files and
// never triggers a retry by itself.
type ErrorHandler interface {
	// CountErrors returns the number of distinct recognized failure
	// signatures in dir. image > 0 restricts the scan to that numbered
	// image sub-directory. Zero means no recognized failure.
	CountErrors(ctx context.Context, dir string, image int) int
}

// Package ingredient implements the job abstraction at the center of the
// workflow: one schedulable run of an external simulation program, owning a
// configuration record and a directory, delegating all program-specific work
// to the checker variant selected at construction.
package ingredient

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hmatter/ingot/internal/checker"
	"github.com/hmatter/ingot/internal/ctxlog"
	"github.com/hmatter/ingot/internal/keywords"
	"github.com/hmatter/ingot/internal/lockfile"
	"github.com/hmatter/ingot/internal/vaspdata"
)

// RunMode selects how Run hands the job to the outside world.
type RunMode string

const (
	// ModeNoQsub executes the program directly and synchronously.
	ModeNoQsub RunMode = "noqsub"
	// ModeSerial submits through the batch queue and waits only for the
	// submission command to return, not for the queued job to finish.
	ModeSerial RunMode = "serial"
)

// Submitter is the external batch-scheduler boundary. Both operations are
// opaque shell-level calls from the ingredient's point of view.
type Submitter interface {
	// WriteSubmitScript renders the submission script into the job directory.
	WriteSubmitScript(kw *keywords.Keywords) error
	// Run launches the job from dir in the given mode and blocks until the
	// launched command (not the queued job) returns.
	Run(ctx context.Context, mode RunMode, dir string) error
}

// Ingredient is one job instance. Its identity is its directory path; its
// lifetime is the directory's lifetime on disk.
type Ingredient struct {
	kw   *keywords.Keywords
	chk  checker.Checker
	errh checker.ErrorHandler
	sub  Submitter

	// lastErrorCount is the advisory signature count from the most recent
	// completeness poll that found a stalled run.
	lastErrorCount int
}

// New constructs an ingredient, resolving the program's capability set from
// the registry once. An unrecognized program is a configuration error.
func New(kw *keywords.Keywords, reg *checker.Registry, sub Submitter) (*Ingredient, error) {
	if err := kw.Validate(); err != nil {
		return nil, err
	}
	chk, errh, err := reg.Resolve(kw)
	if err != nil {
		return nil, err
	}
	return &Ingredient{kw: kw, chk: chk, errh: errh, sub: sub}, nil
}

// Path returns the job directory, the ingredient's identity.
func (ing *Ingredient) Path() string {
	return ing.kw.Name
}

// Name returns the short name: the last segment of the job directory path.
func (ing *Ingredient) Name() string {
	return ing.kw.ShortName()
}

// Keywords returns a copy of the configuration record's directive mapping.
func (ing *Ingredient) Keywords() keywords.ProgramKeys {
	return ing.kw.ProgramKeys.Copy()
}

func (ing *Ingredient) String() string {
	return fmt.Sprintf("ingredient %s (%s)", ing.Name(), ing.kw.Program)
}

// WriteDirectory creates the job directory. A pre-existing directory is
// reported and treated as success.
func (ing *Ingredient) WriteDirectory(ctx context.Context) error {
	err := os.Mkdir(ing.kw.Name, 0o755)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			ctxlog.FromContext(ctx).Info("directory exists", "dir", ing.kw.Name)
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			// Parent segments missing; create the whole chain.
			if mkErr := os.MkdirAll(ing.kw.Name, 0o755); mkErr == nil {
				return nil
			}
		}
		return fmt.Errorf("ingredient: create directory %s: %w", ing.kw.Name, err)
	}
	return nil
}

// IsReadyToRun fails closed when the directory is locked; otherwise it
// reports whether the checker finds a complete, well-formed input set. No
// side effects.
func (ing *Ingredient) IsReadyToRun(ctx context.Context) bool {
	if ing.DirectoryIsLocked() {
		return false
	}
	return ing.chk.IsReadyToRun(ctx, "")
}

// IsComplete reports whether the job finished. For chain-of-images jobs the
// check spans all images. When the run has started but is not complete, the
// error handler's signature count is recorded for ErrorCount; resubmission
// on error is deliberately the orchestrator's decision, never automatic.
func (ing *Ingredient) IsComplete(ctx context.Context) bool {
	if ing.chk.IsComplete(ctx, "") {
		return true
	}
	probe := ing.chk.RepresentativeDir("")
	if !ing.chk.HasStarted(probe) {
		return false
	}
	image := 0
	if ing.kw.Images() > 0 {
		image = 1
	}
	ing.lastErrorCount = ing.errh.CountErrors(ctx, ing.kw.Name, image)
	if ing.lastErrorCount > 0 {
		ctxlog.FromContext(ctx).Warn("stalled run has recognized failures",
			"dir", ing.kw.Name, "count", ing.lastErrorCount)
	}
	return false
}

// ErrorCount returns the advisory failure-signature count from the most
// recent completeness poll.
func (ing *Ingredient) ErrorCount() int {
	return ing.lastErrorCount
}

// DirectoryIsLocked reports whether the job directory's lock marker exists.
func (ing *Ingredient) DirectoryIsLocked() bool {
	return lockfile.IsLocked(ing.kw.Name)
}

// LockDirectory takes the job directory's advisory lock.
func (ing *Ingredient) LockDirectory() error {
	return lockfile.Lock(ing.kw.Name)
}

// UnlockDirectory releases the job directory's advisory lock.
func (ing *Ingredient) UnlockDirectory() error {
	return lockfile.Unlock(ing.kw.Name)
}

// WaitToWrite blocks until the lock clears, then takes it.
func (ing *Ingredient) WaitToWrite(ctx context.Context) error {
	return lockfile.WaitToWrite(ctx, ing.kw.Name)
}

// SetUpProgramInput materializes the input artifact set in the job
// directory.
func (ing *Ingredient) SetUpProgramInput(ctx context.Context) error {
	return ing.chk.SetUpProgramInput(ctx)
}

// SetUpProgramInputNEB materializes input for a chain-of-images job, one
// numbered sub-directory per image structure.
func (ing *Ingredient) SetUpProgramInputNEB(ctx context.Context, imageStructures []*vaspdata.Structure) error {
	return ing.chk.SetUpProgramInputNEB(ctx, imageStructures)
}

// GetStructureFromFile parses a structure file through the program's
// conventions.
func (ing *Ingredient) GetStructureFromFile(path string) (*vaspdata.Structure, error) {
	return ing.chk.StructureFromFile(path)
}

// ForwardParentStructure copies a parent's final structure into a child's
// directory under the destination's input-structure name.
func (ing *Ingredient) ForwardParentStructure(parentPath, childPath, newname string) error {
	return ing.chk.ForwardParentStructure(parentPath, childPath, newname)
}

// ForwardParentEnergy copies a parent's energy log into a child's directory.
func (ing *Ingredient) ForwardParentEnergy(parentPath, childPath, newname string) error {
	return ing.chk.ForwardParentEnergy(parentPath, childPath, newname)
}

// Checker exposes the resolved program capability set for forwarding
// operations beyond the generic ones above.
func (ing *Ingredient) Checker() checker.Checker {
	return ing.chk
}

// NEBParentEnergyPath returns where a parent's energy file attaches inside
// this chain-of-images job: parent 1 for the initial endpoint, 2 the final.
func (ing *Ingredient) NEBParentEnergyPath(parent int) (string, error) {
	return ing.chk.NEBParentEnergyPath("", ing.kw.Images(), parent)
}

// Children returns a copy of the child-role mapping, or nil when the
// ingredient has none. Mutating the returned map does not affect the
// ingredient.
func (ing *Ingredient) Children() map[string]string {
	if len(ing.kw.Children) == 0 {
		return nil
	}
	out := make(map[string]string, len(ing.kw.Children))
	for role, path := range ing.kw.Children {
		out[role] = path
	}
	return out
}

// WriteSubmitScript renders the batch submission script into the job
// directory.
func (ing *Ingredient) WriteSubmitScript() error {
	if ing.sub == nil {
		return fmt.Errorf("ingredient: %s has no submitter", ing.Name())
	}
	return ing.sub.WriteSubmitScript(ing.kw)
}

// Run launches the job via the submitter. The command runs with the job
// directory as its working directory; the caller's working directory is
// never touched. The submit command's exit status is surfaced as an error.
func (ing *Ingredient) Run(ctx context.Context, mode RunMode) error {
	if ing.sub == nil {
		return fmt.Errorf("ingredient: %s has no submitter", ing.Name())
	}
	if mode != ModeNoQsub && mode != ModeSerial {
		return fmt.Errorf("ingredient: unknown run mode %q", mode)
	}
	return ing.sub.Run(ctx, mode, ing.kw.Name)
}

// Status derives the explicit lifecycle state from the directory contents.
func (ing *Ingredient) Status(ctx context.Context) Status {
	if ing.chk.IsComplete(ctx, "") {
		return Status{State: Completed}
	}
	if ing.DirectoryIsLocked() {
		return Status{State: Locked}
	}
	if ing.chk.HasStarted(ing.chk.RepresentativeDir("")) {
		image := 0
		if ing.kw.Images() > 0 {
			image = 1
		}
		if count := ing.errh.CountErrors(ctx, ing.kw.Name, image); count > 0 {
			return Status{State: Failed, ErrorCount: count}
		}
		return Status{State: Running}
	}
	if ing.chk.IsReadyToRun(ctx, "") {
		return Status{State: InputsWritten}
	}
	return Status{State: Unconfigured}
}

// Package vasp implements the checker and error-handler capability sets for
// the VASP ab-initio program: completion/readiness predicates over a job
// directory, parent-to-child artifact forwarding, and input-set generation
// from a configuration record.
package vasp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hmatter/ingot/internal/checker"
	"github.com/hmatter/ingot/internal/ctxlog"
	"github.com/hmatter/ingot/internal/fsutil"
	"github.com/hmatter/ingot/internal/keywords"
	"github.com/hmatter/ingot/internal/lockfile"
	"github.com/hmatter/ingot/internal/potdb"
	"github.com/hmatter/ingot/internal/vaspdata"
)

// ProgramName is the registry key for this backend.
const ProgramName = "vasp"

// Canonical VASP artifact filenames.
const (
	FilePoscar         = "POSCAR"
	FileContcar        = "CONTCAR"
	FileIncar          = "INCAR"
	FileKpoints        = "KPOINTS"
	FilePotcar         = "POTCAR"
	FileOutcar         = "OUTCAR"
	FileOszicar        = "OSZICAR"
	FileDynmat         = "DYNMAT"
	FileDynmatCombined = "DYNMAT_combined"
	FileXdatcar        = "XDATCAR"
)

// completionMarker is VASP's canonical converged-run line in OUTCAR.
const completionMarker = "reached required accuracy"

// restartFiles are the optional caches forwarded opportunistically between
// chained runs.
var restartFiles = []string{"WAVECAR", "CHGCAR"}

// Checker is the VASP variant of the program capability set, bound to one
// job's configuration record.
type Checker struct {
	kw *keywords.Keywords
	db potdb.DB
}

// New builds a checker for the given configuration record and potential
// catalog.
func New(kw *keywords.Keywords, db potdb.DB) *Checker {
	return &Checker{kw: kw, db: db}
}

// Register installs the VASP factory into a checker registry.
func Register(reg *checker.Registry, db potdb.DB) {
	reg.Register(ProgramName, func(kw *keywords.Keywords) (checker.Checker, checker.ErrorHandler, error) {
		return New(kw, db), NewErrorHandler(), nil
	})
}

// dirOr resolves an explicit directory argument, defaulting to the
// checker's own job directory.
func (c *Checker) dirOr(dir string) string {
	if dir == "" {
		return c.kw.Name
	}
	return dir
}

// imageDir returns the numbered sub-directory path for an image index.
func imageDir(dir string, image int) string {
	return filepath.Join(dir, fmt.Sprintf("%02d", image))
}

// RepresentativeDir returns dir itself for single calculations and the "01"
// image sub-directory for chain-of-images jobs.
func (c *Checker) RepresentativeDir(dir string) string {
	dir = c.dirOr(dir)
	if c.kw.Images() > 0 {
		return imageDir(dir, 1)
	}
	return dir
}

// HasStarted reports whether VASP has begun writing its primary log in dir.
func (c *Checker) HasStarted(dir string) bool {
	return fsutil.FileExists(filepath.Join(c.dirOr(dir), FileOutcar))
}

// IsComplete reports whether dir holds a converged, finished run. For
// chain-of-images jobs every interior image must be complete.
func (c *Checker) IsComplete(ctx context.Context, dir string) bool {
	dir = c.dirOr(dir)
	if images := c.kw.Images(); images > 0 {
		for i := 1; i <= images; i++ {
			if !outcarComplete(ctx, imageDir(dir, i)) {
				return false
			}
		}
		return true
	}
	return outcarComplete(ctx, dir)
}

func outcarComplete(ctx context.Context, dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, FileOutcar))
	if err != nil {
		ctxlog.FromContext(ctx).Debug("completion probe found no readable log", "dir", dir, "err", err)
		return false
	}
	return strings.Contains(string(data), completionMarker)
}

// IsReadyToRun reports whether the full input set is present and well formed
// and the directory is not mid-write.
func (c *Checker) IsReadyToRun(ctx context.Context, dir string) bool {
	dir = c.dirOr(dir)
	logger := ctxlog.FromContext(ctx)
	if lockfile.IsLocked(dir) {
		logger.Debug("directory is mid-write, not ready", "dir", dir)
		return false
	}
	for _, name := range []string{FileIncar, FileKpoints, FilePotcar} {
		if !fsutil.NonEmptyFile(filepath.Join(dir, name)) {
			logger.Debug("input artifact missing", "dir", dir, "file", name)
			return false
		}
	}
	if images := c.kw.Images(); images > 0 {
		for i := 1; i <= images; i++ {
			if !poscarParses(imageDir(dir, i)) {
				logger.Debug("image structure missing or malformed", "dir", imageDir(dir, i))
				return false
			}
		}
		return true
	}
	if !poscarParses(dir) {
		logger.Debug("structure artifact missing or malformed", "dir", dir)
		return false
	}
	return true
}

func poscarParses(dir string) bool {
	_, err := vaspdata.ReadPoscar(filepath.Join(dir, FilePoscar))
	return err == nil
}

// InitialStructure parses the POSCAR in dir (own directory when empty).
func (c *Checker) InitialStructure(dir string) (*vaspdata.Structure, error) {
	return vaspdata.ReadPoscar(filepath.Join(c.dirOr(dir), FilePoscar))
}

// FinalStructure parses the CONTCAR in dir (own directory when empty).
func (c *Checker) FinalStructure(dir string) (*vaspdata.Structure, error) {
	return vaspdata.ReadPoscar(filepath.Join(c.dirOr(dir), FileContcar))
}

// StructureFromFile parses an arbitrary POSCAR-format file.
func (c *Checker) StructureFromFile(path string) (*vaspdata.Structure, error) {
	return vaspdata.ReadPoscar(path)
}

// ForwardInitialStructureFile copies this job's POSCAR into dest as the
// destination's input structure.
func (c *Checker) ForwardInitialStructureFile(dest string) error {
	return forwardStructure(filepath.Join(c.kw.Name, FilePoscar), dest, FilePoscar)
}

// ForwardFinalStructureFile copies this job's relaxed CONTCAR into dest as
// the destination's input structure. This is the standard parent-to-child
// handoff for chained optimizations.
func (c *Checker) ForwardFinalStructureFile(dest string) error {
	return forwardStructure(filepath.Join(c.kw.Name, FileContcar), dest, FilePoscar)
}

// ForwardParentStructure copies parentDir's final structure into
// childDir/newname.
func (c *Checker) ForwardParentStructure(parentDir, childDir, newname string) error {
	if newname == "" {
		newname = FilePoscar
	}
	return forwardStructure(filepath.Join(parentDir, FileContcar), childDir, newname)
}

func forwardStructure(src, destDir, newname string) error {
	// Parse before copying so a malformed source surfaces here, not in the
	// child's run.
	if _, err := vaspdata.ReadPoscar(src); err != nil {
		return fmt.Errorf("vasp: forward structure: %w", err)
	}
	return fsutil.CopyFile(src, filepath.Join(destDir, newname))
}

// ForwardEnergyFile copies this job's OSZICAR energy log into dest.
func (c *Checker) ForwardEnergyFile(dest string) error {
	return fsutil.CopyFile(filepath.Join(c.kw.Name, FileOszicar), filepath.Join(dest, FileOszicar))
}

// ForwardParentEnergy copies parentDir's OSZICAR into childDir/newname.
func (c *Checker) ForwardParentEnergy(parentDir, childDir, newname string) error {
	if newname == "" {
		newname = FileOszicar
	}
	return fsutil.CopyFile(filepath.Join(parentDir, FileOszicar), filepath.Join(childDir, newname))
}

// ForwardDynamicalMatrixFile round-trips this job's DYNMAT into dest.
func (c *Checker) ForwardDynamicalMatrixFile(dest string) error {
	dm, err := c.ReadDynamicalMatrix(c.kw.Name, FileDynmat)
	if err != nil {
		return err
	}
	return dm.Write(filepath.Join(dest, FileDynmat))
}

// ForwardDisplacementFile round-trips this job's XDATCAR into dest.
func (c *Checker) ForwardDisplacementFile(dest string) error {
	disp, err := c.ReadDisplacement(c.kw.Name)
	if err != nil {
		return err
	}
	return c.WriteDisplacement(dest, disp)
}

// ForwardExtraRestartFiles copies the optional WAVECAR/CHGCAR caches into
// dest when present. A missing cache is skipped silently.
func (c *Checker) ForwardExtraRestartFiles(dest string) error {
	for _, name := range restartFiles {
		src := filepath.Join(c.kw.Name, name)
		if !fsutil.FileExists(src) {
			continue
		}
		if err := fsutil.CopyFile(src, filepath.Join(dest, name)); err != nil {
			return err
		}
	}
	return nil
}

// ReadDynamicalMatrix parses dir/filename (FileDynmat when empty).
func (c *Checker) ReadDynamicalMatrix(dir, filename string) (*vaspdata.Dynmat, error) {
	if filename == "" {
		filename = FileDynmat
	}
	return vaspdata.ReadDynmat(filepath.Join(c.dirOr(dir), filename))
}

// ReadDisplacement parses dir's XDATCAR.
func (c *Checker) ReadDisplacement(dir string) (*vaspdata.Xdatcar, error) {
	return vaspdata.ReadXdatcar(filepath.Join(c.dirOr(dir), FileXdatcar))
}

// WriteDisplacement serializes a displacement trajectory into dir's XDATCAR.
func (c *Checker) WriteDisplacement(dir string, disp *vaspdata.Xdatcar) error {
	return disp.Write(filepath.Join(c.dirOr(dir), FileXdatcar))
}

// CombineDynamicalMatrixFiles merges the DYNMAT parts found under dir's
// sub-directories into dir/DYNMAT_combined, also refreshing dir/DYNMAT.
// Used when the dynamical matrix was computed in pieces.
func (c *Checker) CombineDynamicalMatrixFiles(dir string) error {
	dir = c.dirOr(dir)
	parts, err := fsutil.FindFilesByName(dir, FileDynmat)
	if err != nil {
		return fmt.Errorf("vasp: scan for dynamical matrix parts: %w", err)
	}
	// A DYNMAT sitting directly in dir is a previous combination product,
	// not a part.
	var partPaths []string
	for _, p := range parts {
		if filepath.Dir(p) != dir {
			partPaths = append(partPaths, p)
		}
	}
	if len(partPaths) == 0 {
		return fmt.Errorf("vasp: no dynamical matrix parts under %s", dir)
	}

	combined, err := vaspdata.ReadDynmat(partPaths[0])
	if err != nil {
		return err
	}
	for _, p := range partPaths[1:] {
		part, err := vaspdata.ReadDynmat(p)
		if err != nil {
			return err
		}
		if err := combined.Merge(part); err != nil {
			return fmt.Errorf("vasp: merge %s: %w", p, err)
		}
	}
	if err := combined.Write(filepath.Join(dir, FileDynmatCombined)); err != nil {
		return err
	}
	return combined.Write(filepath.Join(dir, FileDynmat))
}

// NEBParentEnergyPath returns the image sub-directory the parent energy file
// attaches to: parent 1 is the leading endpoint "00", parent 2 the trailing
// endpoint after the last interior image.
func (c *Checker) NEBParentEnergyPath(dir string, images, parent int) (string, error) {
	dir = c.dirOr(dir)
	switch parent {
	case 1:
		return filepath.Join(imageDir(dir, 0), FileOszicar), nil
	case 2:
		return filepath.Join(imageDir(dir, images+1), FileOszicar), nil
	default:
		return "", checker.NewConfigurationError("Checker.NEBParentEnergyPath",
			"parent must be 1 (initial) or 2 (final), got %d", parent)
	}
}

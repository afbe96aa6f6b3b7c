package vasp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hmatter/ingot/internal/checker"
	"github.com/hmatter/ingot/internal/ctxlog"
	"github.com/hmatter/ingot/internal/fsutil"
	"github.com/hmatter/ingot/internal/keywords"
	"github.com/hmatter/ingot/internal/vaspdata"
)

// defaultXC is the functional family used when mast_xc is absent.
const defaultXC = "pbe"

// functionalTags maps functional families to POTCAR dataset tags.
var functionalTags = map[string]string{
	"pbe":  "PAW_PBE",
	"pw91": "PAW_GGA",
}

// SetUpProgramInput materializes the full VASP input set in the job
// directory: POSCAR, POTCAR, KPOINTS and INCAR, in that order since the
// control file derives values from the potential stack and structure.
func (c *Checker) SetUpProgramInput(ctx context.Context) error {
	dir := c.kw.Name
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vasp: create job directory: %w", err)
	}
	structure, err := c.poscarSetup(dir)
	if err != nil {
		return err
	}
	pot, err := c.potcarSetup(dir, structure)
	if err != nil {
		return err
	}
	if err := c.kpointsSetup(dir); err != nil {
		return err
	}
	if err := c.incarSetup(dir, pot, structure); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("program input written", "dir", dir)
	return nil
}

// SetUpProgramInputNEB replicates input setup across one numbered
// sub-directory per supplied image structure, with the shared control,
// k-point and potential artifacts at the top level.
func (c *Checker) SetUpProgramInputNEB(ctx context.Context, imageStructures []*vaspdata.Structure) error {
	dir := c.kw.Name
	if len(imageStructures) == 0 {
		return checker.NewConfigurationError("Checker.SetUpProgramInputNEB",
			"no image structures supplied for %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vasp: create job directory: %w", err)
	}
	for i, structure := range imageStructures {
		sub := imageDir(dir, i)
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("vasp: create image directory: %w", err)
		}
		if err := vaspdata.WritePoscar(filepath.Join(sub, FilePoscar), structure); err != nil {
			return err
		}
	}
	pot, err := c.potcarSetup(dir, imageStructures[0])
	if err != nil {
		return err
	}
	if err := c.kpointsSetup(dir); err != nil {
		return err
	}
	if err := c.incarSetup(dir, pot, imageStructures[0]); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("chain-of-images input written",
		"dir", dir, "images", len(imageStructures))
	return nil
}

// poscarSetup resolves the input structure by precedence: an explicit
// coordinate-source override grafts its coordinates onto the structure
// template; otherwise an existing POSCAR is left alone; otherwise the
// in-memory structure from the configuration record is written fresh.
func (c *Checker) poscarSetup(dir string) (*vaspdata.Structure, error) {
	poscarPath := filepath.Join(dir, FilePoscar)

	if coords := c.kw.ProgramKeys.List(keywords.PKCoordinates); len(coords) > 0 {
		template, err := c.structureTemplate(poscarPath)
		if err != nil {
			return nil, err
		}
		donor, err := vaspdata.ReadPoscar(fmt.Sprintf("%v", coords[0]))
		if err != nil {
			return nil, fmt.Errorf("vasp: coordinate source: %w", err)
		}
		grafted, err := graftCoordinates(template, donor)
		if err != nil {
			return nil, err
		}
		if err := vaspdata.WritePoscar(poscarPath, grafted); err != nil {
			return nil, err
		}
		return grafted, nil
	}

	if fsutil.FileExists(poscarPath) {
		return vaspdata.ReadPoscar(poscarPath)
	}

	if c.kw.Structure != nil {
		if err := vaspdata.WritePoscar(poscarPath, c.kw.Structure); err != nil {
			return nil, err
		}
		return c.kw.Structure, nil
	}

	return nil, fmt.Errorf("vasp: %s: %w", dir, checker.ErrMissingStructure)
}

// structureTemplate picks the template the coordinate override grafts onto:
// an existing POSCAR wins over the in-memory structure.
func (c *Checker) structureTemplate(poscarPath string) (*vaspdata.Structure, error) {
	if fsutil.FileExists(poscarPath) {
		return vaspdata.ReadPoscar(poscarPath)
	}
	if c.kw.Structure != nil {
		return c.kw.Structure, nil
	}
	return nil, fmt.Errorf("vasp: coordinate override needs a template: %w", checker.ErrMissingStructure)
}

// graftCoordinates copies the donor's site coordinates onto the template,
// keeping the template's lattice and species.
func graftCoordinates(template, donor *vaspdata.Structure) (*vaspdata.Structure, error) {
	if template.NumSites() != donor.NumSites() {
		return nil, checker.NewConfigurationError("Checker.poscarSetup",
			"coordinate source has %d sites, template has %d", donor.NumSites(), template.NumSites())
	}
	grafted := template.Copy()
	for i := range grafted.Sites {
		grafted.Sites[i].Coords = donor.Sites[i].Coords
	}
	return grafted, nil
}

// kpointsSetup writes the KPOINTS mesh from mast_kpoints, defaulting to a
// 2x2x2 Monkhorst-Pack grid.
func (c *Checker) kpointsSetup(dir string) error {
	kp := &vaspdata.Kpoints{Comment: "Automatic mesh", Grid: [3]int{2, 2, 2}, Style: vaspdata.StyleMonkhorst}
	if spec := c.kw.ProgramKeys.List(keywords.PKKpoints); spec != nil {
		if len(spec) < 4 {
			return checker.NewConfigurationError("Checker.kpointsSetup",
				"%s needs [n1, n2, n3, style], got %v", keywords.PKKpoints, spec)
		}
		for i := 0; i < 3; i++ {
			n, ok := asInt(spec[i])
			if !ok {
				return checker.NewConfigurationError("Checker.kpointsSetup",
					"grid dimension %v is not an integer", spec[i])
			}
			kp.Grid[i] = n
		}
		style, _ := spec[3].(string)
		switch strings.ToUpper(style) {
		case "M":
			kp.Style = vaspdata.StyleMonkhorst
		case "G":
			kp.Style = vaspdata.StyleGamma
		default:
			return checker.NewConfigurationError("Checker.kpointsSetup",
				"unrecognized k-point centering style %q", style)
		}
	}
	return kp.Write(filepath.Join(dir, FileKpoints))
}

// potcarSetup writes the potential stack: one entry per distinct element in
// structure order, honoring the per-element variant overrides and the
// functional-family selector.
func (c *Checker) potcarSetup(dir string, structure *vaspdata.Structure) (vaspdata.Potcar, error) {
	xc := c.kw.ProgramKeys.String(keywords.PKXC)
	if xc == "" {
		xc = defaultXC
	}
	tag, ok := functionalTags[strings.ToLower(xc)]
	if !ok {
		return nil, checker.NewConfigurationError("Checker.potcarSetup",
			"unrecognized functional family %q", xc)
	}
	overrides := c.kw.ProgramKeys.StringMap(keywords.PKPPSetup)

	var pot vaspdata.Potcar
	for _, symbol := range structure.Symbols() {
		variant := symbol
		if override, ok := overrides[symbol]; ok {
			variant = override
		}
		entry, err := c.db.Lookup(xc, variant)
		if err != nil {
			return nil, checker.NewConfigurationError("Checker.potcarSetup", "%v", err)
		}
		pot = append(pot, vaspdata.PotcarEntry{
			Symbol:     variant,
			Functional: tag,
			Enmax:      entry.Enmax,
			Zval:       entry.Zval,
		})
	}
	if err := pot.Write(filepath.Join(dir, FilePotcar)); err != nil {
		return nil, err
	}
	return pot, nil
}

// incarSetup writes the control-directive file: program keys carried through
// verbatim, plus the derived cutoff, charge and magnetic-moment tags.
func (c *Checker) incarSetup(dir string, pot vaspdata.Potcar, structure *vaspdata.Structure) error {
	inc := vaspdata.Incar{}
	for key := range c.kw.ProgramKeys {
		if strings.HasPrefix(key, "mast_") || key == keywords.PKImages {
			continue
		}
		inc[key] = c.kw.ProgramKeys.String(key)
	}

	// The cutoff multiplier always wins over an explicit absolute cutoff.
	if c.kw.ProgramKeys.Has(keywords.PKMultiplyEncut) {
		mult := c.kw.ProgramKeys.Float(keywords.PKMultiplyEncut)
		inc["ENCUT"] = formatNum(pot.MaxEnmax() * mult)
	}

	if c.kw.ProgramKeys.Has(keywords.PKCharge) {
		charge := c.kw.ProgramKeys.Float(keywords.PKCharge)
		inc["NELECT"] = formatNum(pot.TotalElectrons(structure) - charge)
	}

	if c.kw.ProgramKeys.Has(keywords.PKSetMagmom) {
		magmom, err := c.magmomTag(structure)
		if err != nil {
			return err
		}
		inc["MAGMOM"] = magmom
	}

	if images := c.kw.Images(); images > 0 {
		inc["IMAGES"] = strconv.Itoa(images)
	}

	return inc.Write(filepath.Join(dir, FileIncar))
}

// magmomTag renders the per-site magnetic moment directive. A token per
// species becomes grouped count*value form; a token per site is taken
// verbatim; any other length is a configuration error.
func (c *Checker) magmomTag(structure *vaspdata.Structure) (string, error) {
	tokens := strings.Fields(c.kw.ProgramKeys.String(keywords.PKSetMagmom))
	counts := structure.Counts()
	switch len(tokens) {
	case len(counts):
		groups := make([]string, len(tokens))
		for i, tok := range tokens {
			groups[i] = fmt.Sprintf("%d*%s", counts[i], tok)
		}
		return strings.Join(groups, " "), nil
	case structure.NumSites():
		return strings.Join(tokens, " "), nil
	default:
		return "", checker.NewConfigurationError("Checker.incarSetup",
			"%s has %d values; need one per species (%d) or one per site (%d)",
			keywords.PKSetMagmom, len(tokens), len(counts), structure.NumSites())
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		if t == float64(int(t)) {
			return int(t), true
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n, true
		}
	}
	return 0, false
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

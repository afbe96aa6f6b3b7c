package vaspdata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DynmatBlock is one displacement record: atom index (1-based), displaced
// degree of freedom (1..3) and step size, followed by the resulting force on
// every atom.
type DynmatBlock struct {
	Atom   int
	Dof    int
	Step   float64
	Forces [][3]float64
}

// Dynmat is a dynamical-matrix file: the header counts, per-species masses
// and one block per displacement.
type Dynmat struct {
	NumSpecies int
	NumAtoms   int
	NumDisp    int
	Masses     []float64
	Blocks     []DynmatBlock
}

// ReadDynmat parses a DYNMAT file.
func ReadDynmat(path string) (*Dynmat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vaspdata: open dynamical matrix: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	next := func() ([]string, error) {
		for sc.Scan() {
			fields := strings.Fields(sc.Text())
			if len(fields) > 0 {
				return fields, nil
			}
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected end of file")
	}

	header, err := next()
	if err != nil {
		return nil, fmt.Errorf("vaspdata: dynmat %s: %w", path, err)
	}
	if len(header) < 3 {
		return nil, fmt.Errorf("vaspdata: dynmat %s: short header", path)
	}
	dm := &Dynmat{}
	if dm.NumSpecies, err = strconv.Atoi(header[0]); err != nil {
		return nil, fmt.Errorf("vaspdata: dynmat %s: bad species count: %w", path, err)
	}
	if dm.NumAtoms, err = strconv.Atoi(header[1]); err != nil {
		return nil, fmt.Errorf("vaspdata: dynmat %s: bad atom count: %w", path, err)
	}
	if dm.NumDisp, err = strconv.Atoi(header[2]); err != nil {
		return nil, fmt.Errorf("vaspdata: dynmat %s: bad displacement count: %w", path, err)
	}

	massFields, err := next()
	if err != nil {
		return nil, fmt.Errorf("vaspdata: dynmat %s: %w", path, err)
	}
	for _, fld := range massFields {
		mass, err := strconv.ParseFloat(fld, 64)
		if err != nil {
			return nil, fmt.Errorf("vaspdata: dynmat %s: bad mass %q: %w", path, fld, err)
		}
		dm.Masses = append(dm.Masses, mass)
	}

	for d := 0; d < dm.NumDisp; d++ {
		head, err := next()
		if err != nil {
			return nil, fmt.Errorf("vaspdata: dynmat %s: block %d: %w", path, d+1, err)
		}
		if len(head) < 3 {
			return nil, fmt.Errorf("vaspdata: dynmat %s: short block header", path)
		}
		block := DynmatBlock{}
		if block.Atom, err = strconv.Atoi(head[0]); err != nil {
			return nil, fmt.Errorf("vaspdata: dynmat %s: bad block atom: %w", path, err)
		}
		if block.Dof, err = strconv.Atoi(head[1]); err != nil {
			return nil, fmt.Errorf("vaspdata: dynmat %s: bad block dof: %w", path, err)
		}
		if block.Step, err = strconv.ParseFloat(head[2], 64); err != nil {
			return nil, fmt.Errorf("vaspdata: dynmat %s: bad block step: %w", path, err)
		}
		for a := 0; a < dm.NumAtoms; a++ {
			fields, err := next()
			if err != nil {
				return nil, fmt.Errorf("vaspdata: dynmat %s: forces: %w", path, err)
			}
			force, err := parseFloats(strings.Join(fields, " "), 3)
			if err != nil {
				return nil, fmt.Errorf("vaspdata: dynmat %s: bad force row: %w", path, err)
			}
			block.Forces = append(block.Forces, [3]float64{force[0], force[1], force[2]})
		}
		dm.Blocks = append(dm.Blocks, block)
	}
	return dm, nil
}

// Write serializes the dynamical matrix to path.
func (dm *Dynmat) Write(path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %d %d\n", dm.NumSpecies, dm.NumAtoms, dm.NumDisp)
	massStrs := make([]string, len(dm.Masses))
	for i, m := range dm.Masses {
		massStrs[i] = strconv.FormatFloat(m, 'f', -1, 64)
	}
	fmt.Fprintln(&b, strings.Join(massStrs, " "))
	for _, block := range dm.Blocks {
		fmt.Fprintf(&b, "%d %d %s\n", block.Atom, block.Dof, strconv.FormatFloat(block.Step, 'f', -1, 64))
		for _, force := range block.Forces {
			fmt.Fprintf(&b, " %s %s %s\n",
				strconv.FormatFloat(force[0], 'f', -1, 64),
				strconv.FormatFloat(force[1], 'f', -1, 64),
				strconv.FormatFloat(force[2], 'f', -1, 64))
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("vaspdata: write dynamical matrix: %w", err)
	}
	return nil
}

// Merge folds another dynamical matrix computed over a disjoint displacement
// set into dm. Header counts and masses must agree.
func (dm *Dynmat) Merge(other *Dynmat) error {
	if other.NumSpecies != dm.NumSpecies || other.NumAtoms != dm.NumAtoms {
		return fmt.Errorf("vaspdata: dynamical matrix headers disagree: %d/%d vs %d/%d",
			dm.NumSpecies, dm.NumAtoms, other.NumSpecies, other.NumAtoms)
	}
	dm.NumDisp += other.NumDisp
	dm.Blocks = append(dm.Blocks, other.Blocks...)
	return nil
}

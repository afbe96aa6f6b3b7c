// Package vaspdata implements the narrow file-grammar boundary to the VASP
// family of artifacts: structure files (POSCAR/CONTCAR), run control (INCAR),
// k-point meshes (KPOINTS), pseudopotential stacks (POTCAR), energy logs
// (OSZICAR), dynamical matrices (DYNMAT) and displacement trajectories
// (XDATCAR).
//
// The package deliberately contains no physics. It only parses and serializes
// the artifacts and exposes the derived values the orchestration core needs:
// element ordering, site counts and per-potential electron counts.
package vaspdata

import "math"

// Site is one atomic site: an element symbol plus fractional or cartesian
// coordinates, depending on the owning Structure.
type Site struct {
	Symbol string
	Coords [3]float64
}

// Structure is an atomic structure as carried by a POSCAR-style file.
type Structure struct {
	Comment   string
	Scale     float64
	Lattice   [3][3]float64
	Sites     []Site
	Cartesian bool
}

// NumSites returns the number of atomic sites.
func (s *Structure) NumSites() int {
	return len(s.Sites)
}

// Symbols returns the distinct element symbols in first-appearance order.
// This is the order POTCAR entries must follow.
func (s *Structure) Symbols() []string {
	var symbols []string
	seen := map[string]bool{}
	for _, site := range s.Sites {
		if !seen[site.Symbol] {
			seen[site.Symbol] = true
			symbols = append(symbols, site.Symbol)
		}
	}
	return symbols
}

// Counts returns the per-symbol site counts, aligned with Symbols().
func (s *Structure) Counts() []int {
	counts := map[string]int{}
	for _, site := range s.Sites {
		counts[site.Symbol]++
	}
	symbols := s.Symbols()
	out := make([]int, len(symbols))
	for i, sym := range symbols {
		out[i] = counts[sym]
	}
	return out
}

// Copy returns a deep copy of the structure.
func (s *Structure) Copy() *Structure {
	dup := *s
	dup.Sites = make([]Site, len(s.Sites))
	copy(dup.Sites, s.Sites)
	return &dup
}

// Matches reports whether two structures are equal within tol: same site
// count, same symbols in order, and lattice vectors and coordinates that
// agree component-wise.
func (s *Structure) Matches(other *Structure, tol float64) bool {
	if other == nil || len(s.Sites) != len(other.Sites) {
		return false
	}
	for i := range s.Lattice {
		for j := range s.Lattice[i] {
			if math.Abs(s.Lattice[i][j]-other.Lattice[i][j]) > tol {
				return false
			}
		}
	}
	for i, site := range s.Sites {
		if site.Symbol != other.Sites[i].Symbol {
			return false
		}
		for j := range site.Coords {
			if math.Abs(site.Coords[j]-other.Sites[i].Coords[j]) > tol {
				return false
			}
		}
	}
	return true
}

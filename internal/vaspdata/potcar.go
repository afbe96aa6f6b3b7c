package vaspdata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PotcarEntry is one pseudopotential dataset within a stacked POTCAR.
type PotcarEntry struct {
	// Symbol is the potential variant name, e.g. "Al" or "Ni_pv".
	Symbol string
	// Functional is the dataset family tag, e.g. "PAW_PBE" or "PAW_GGA".
	Functional string
	// Enmax is the recommended plane-wave cutoff in eV.
	Enmax float64
	// Zval is the number of valence electrons the potential carries.
	Zval float64
}

// Potcar is the ordered stack of potentials, one entry per distinct element
// in structure order.
type Potcar []PotcarEntry

// TotalElectrons sums ZVAL weighted by the per-element site counts of the
// given structure. Entries align with Structure.Symbols().
func (p Potcar) TotalElectrons(s *Structure) float64 {
	counts := s.Counts()
	total := 0.0
	for i, entry := range p {
		if i < len(counts) {
			total += entry.Zval * float64(counts[i])
		}
	}
	return total
}

// MaxEnmax returns the largest recommended cutoff across the stack.
func (p Potcar) MaxEnmax() float64 {
	max := 0.0
	for _, entry := range p {
		if entry.Enmax > max {
			max = entry.Enmax
		}
	}
	return max
}

// ReadPotcar parses a stacked POTCAR file.
func ReadPotcar(path string) (Potcar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vaspdata: open POTCAR: %w", err)
	}
	defer f.Close()

	var stack Potcar
	var cur *PotcarEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "PAW_"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("vaspdata: malformed POTCAR header %q in %s", line, path)
			}
			stack = append(stack, PotcarEntry{Functional: fields[0], Symbol: fields[1]})
			cur = &stack[len(stack)-1]
		case strings.HasPrefix(line, "ENMAX"):
			if cur == nil {
				return nil, fmt.Errorf("vaspdata: ENMAX outside dataset in %s", path)
			}
			cur.Enmax, err = potcarValue(line)
			if err != nil {
				return nil, fmt.Errorf("vaspdata: bad ENMAX in %s: %w", path, err)
			}
		case strings.HasPrefix(line, "ZVAL"):
			if cur == nil {
				return nil, fmt.Errorf("vaspdata: ZVAL outside dataset in %s", path)
			}
			cur.Zval, err = potcarValue(line)
			if err != nil {
				return nil, fmt.Errorf("vaspdata: bad ZVAL in %s: %w", path, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vaspdata: read POTCAR: %w", err)
	}
	if len(stack) == 0 {
		return nil, fmt.Errorf("vaspdata: no datasets in POTCAR %s", path)
	}
	return stack, nil
}

// Write serializes the stack to path.
func (p Potcar) Write(path string) error {
	var b strings.Builder
	for _, entry := range p {
		fmt.Fprintf(&b, "%s %s\n", entry.Functional, entry.Symbol)
		fmt.Fprintf(&b, "  ENMAX = %.3f\n", entry.Enmax)
		fmt.Fprintf(&b, "  ZVAL = %.3f\n", entry.Zval)
		fmt.Fprintln(&b, "End of Dataset")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("vaspdata: write POTCAR: %w", err)
	}
	return nil
}

func potcarValue(line string) (float64, error) {
	_, value, found := strings.Cut(line, "=")
	if !found {
		return 0, fmt.Errorf("missing '=' in %q", line)
	}
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}

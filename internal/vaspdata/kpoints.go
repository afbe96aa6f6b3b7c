package vaspdata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// K-point mesh centering styles.
const (
	StyleMonkhorst = "Monkhorst-Pack"
	StyleGamma     = "Gamma"
)

// Kpoints is an automatic k-point mesh specification.
type Kpoints struct {
	Comment string
	NumKpts int
	Style   string
	Grid    [3]int
	Shift   [3]float64
}

// ReadKpoints parses an automatic-mesh KPOINTS file.
func ReadKpoints(path string) (*Kpoints, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vaspdata: open KPOINTS: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vaspdata: read KPOINTS: %w", err)
	}
	if len(lines) < 4 {
		return nil, fmt.Errorf("vaspdata: KPOINTS %s truncated", path)
	}

	kp := &Kpoints{Comment: strings.TrimSpace(lines[0])}
	kp.NumKpts, err = strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, fmt.Errorf("vaspdata: bad KPOINTS count line: %w", err)
	}
	switch {
	case strings.HasPrefix(strings.ToLower(strings.TrimSpace(lines[2])), "m"):
		kp.Style = StyleMonkhorst
	case strings.HasPrefix(strings.ToLower(strings.TrimSpace(lines[2])), "g"):
		kp.Style = StyleGamma
	default:
		return nil, fmt.Errorf("vaspdata: unknown KPOINTS style %q", strings.TrimSpace(lines[2]))
	}
	gridFields := strings.Fields(lines[3])
	if len(gridFields) < 3 {
		return nil, fmt.Errorf("vaspdata: bad KPOINTS grid line %q", lines[3])
	}
	for i := 0; i < 3; i++ {
		kp.Grid[i], err = strconv.Atoi(gridFields[i])
		if err != nil {
			return nil, fmt.Errorf("vaspdata: bad KPOINTS grid value %q: %w", gridFields[i], err)
		}
	}
	if len(lines) > 4 {
		if shift, err := parseFloats(lines[4], 3); err == nil {
			copy(kp.Shift[:], shift)
		}
	}
	return kp, nil
}

// Write serializes the mesh to path.
func (kp *Kpoints) Write(path string) error {
	comment := kp.Comment
	if comment == "" {
		comment = "Automatic mesh"
	}
	var b strings.Builder
	fmt.Fprintln(&b, comment)
	fmt.Fprintln(&b, kp.NumKpts)
	fmt.Fprintln(&b, kp.Style)
	fmt.Fprintf(&b, "%d %d %d\n", kp.Grid[0], kp.Grid[1], kp.Grid[2])
	fmt.Fprintf(&b, "%.1f %.1f %.1f\n", kp.Shift[0], kp.Shift[1], kp.Shift[2])
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("vaspdata: write KPOINTS: %w", err)
	}
	return nil
}

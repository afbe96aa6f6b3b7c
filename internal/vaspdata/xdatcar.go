package vaspdata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// XdatFrame is one configuration snapshot from an XDATCAR trajectory.
type XdatFrame struct {
	Number int
	Coords [][3]float64
}

// Xdatcar is a displacement trajectory: a POSCAR-style cell header followed
// by numbered direct-coordinate configurations.
type Xdatcar struct {
	Comment string
	Scale   float64
	Lattice [3][3]float64
	Symbols []string
	Counts  []int
	Frames  []XdatFrame
}

func (x *Xdatcar) totalSites() int {
	total := 0
	for _, c := range x.Counts {
		total += c
	}
	return total
}

// ReadXdatcar parses an XDATCAR file.
func ReadXdatcar(path string) (*Xdatcar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vaspdata: open XDATCAR: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	next := func() (string, bool) {
		if sc.Scan() {
			return sc.Text(), true
		}
		return "", false
	}

	x := &Xdatcar{}
	line, ok := next()
	if !ok {
		return nil, fmt.Errorf("vaspdata: XDATCAR %s is empty", path)
	}
	x.Comment = strings.TrimSpace(line)

	line, ok = next()
	if !ok {
		return nil, fmt.Errorf("vaspdata: XDATCAR %s truncated", path)
	}
	if x.Scale, err = strconv.ParseFloat(strings.TrimSpace(line), 64); err != nil {
		return nil, fmt.Errorf("vaspdata: XDATCAR %s: bad scale: %w", path, err)
	}

	for i := 0; i < 3; i++ {
		line, ok = next()
		if !ok {
			return nil, fmt.Errorf("vaspdata: XDATCAR %s truncated", path)
		}
		vec, err := parseFloats(line, 3)
		if err != nil {
			return nil, fmt.Errorf("vaspdata: XDATCAR %s: bad lattice vector: %w", path, err)
		}
		copy(x.Lattice[i][:], vec)
	}

	line, ok = next()
	if !ok {
		return nil, fmt.Errorf("vaspdata: XDATCAR %s truncated", path)
	}
	x.Symbols = strings.Fields(line)

	line, ok = next()
	if !ok {
		return nil, fmt.Errorf("vaspdata: XDATCAR %s truncated", path)
	}
	for _, fld := range strings.Fields(line) {
		count, err := strconv.Atoi(fld)
		if err != nil {
			return nil, fmt.Errorf("vaspdata: XDATCAR %s: bad count %q: %w", path, fld, err)
		}
		x.Counts = append(x.Counts, count)
	}
	sites := x.totalSites()

	for {
		line, ok = next()
		if !ok {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "Direct configuration=") {
			return nil, fmt.Errorf("vaspdata: XDATCAR %s: expected configuration header, got %q", path, trimmed)
		}
		frame := XdatFrame{}
		numStr := strings.TrimSpace(strings.TrimPrefix(trimmed, "Direct configuration="))
		if frame.Number, err = strconv.Atoi(numStr); err != nil {
			return nil, fmt.Errorf("vaspdata: XDATCAR %s: bad configuration number %q: %w", path, numStr, err)
		}
		for i := 0; i < sites; i++ {
			line, ok = next()
			if !ok {
				return nil, fmt.Errorf("vaspdata: XDATCAR %s: configuration %d truncated", path, frame.Number)
			}
			coords, err := parseFloats(line, 3)
			if err != nil {
				return nil, fmt.Errorf("vaspdata: XDATCAR %s: bad coordinate row: %w", path, err)
			}
			frame.Coords = append(frame.Coords, [3]float64{coords[0], coords[1], coords[2]})
		}
		x.Frames = append(x.Frames, frame)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vaspdata: read XDATCAR: %w", err)
	}
	return x, nil
}

// Write serializes the trajectory to path.
func (x *Xdatcar) Write(path string) error {
	var b strings.Builder
	fmt.Fprintln(&b, x.Comment)
	fmt.Fprintf(&b, "%.6f\n", x.Scale)
	for _, vec := range x.Lattice {
		fmt.Fprintf(&b, "  %.10f  %.10f  %.10f\n", vec[0], vec[1], vec[2])
	}
	fmt.Fprintln(&b, strings.Join(x.Symbols, " "))
	countStrs := make([]string, len(x.Counts))
	for i, c := range x.Counts {
		countStrs[i] = strconv.Itoa(c)
	}
	fmt.Fprintln(&b, strings.Join(countStrs, " "))
	for _, frame := range x.Frames {
		fmt.Fprintf(&b, "Direct configuration= %d\n", frame.Number)
		for _, coords := range frame.Coords {
			fmt.Fprintf(&b, "  %.10f  %.10f  %.10f\n", coords[0], coords[1], coords[2])
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("vaspdata: write XDATCAR: %w", err)
	}
	return nil
}

package vaspdata

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadPoscar parses a VASP 5 format POSCAR/CONTCAR file.
func ReadPoscar(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vaspdata: open structure file: %w", err)
	}
	defer f.Close()
	s, err := ParsePoscar(f)
	if err != nil {
		return nil, fmt.Errorf("vaspdata: parse %s: %w", path, err)
	}
	return s, nil
}

// ParsePoscar parses POSCAR content from a reader.
func ParsePoscar(r io.Reader) (*Structure, error) {
	sc := bufio.NewScanner(r)
	next := func() (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return sc.Text(), nil
	}

	s := &Structure{}
	line, err := next()
	if err != nil {
		return nil, err
	}
	s.Comment = strings.TrimSpace(line)

	line, err = next()
	if err != nil {
		return nil, err
	}
	s.Scale, err = strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return nil, fmt.Errorf("bad scale line: %w", err)
	}

	for i := 0; i < 3; i++ {
		line, err = next()
		if err != nil {
			return nil, err
		}
		vec, err := parseFloats(line, 3)
		if err != nil {
			return nil, fmt.Errorf("bad lattice vector %d: %w", i+1, err)
		}
		copy(s.Lattice[i][:], vec)
	}

	line, err = next()
	if err != nil {
		return nil, err
	}
	symbols := strings.Fields(line)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("missing element symbols line")
	}

	line, err = next()
	if err != nil {
		return nil, err
	}
	countFields := strings.Fields(line)
	if len(countFields) != len(symbols) {
		return nil, fmt.Errorf("element counts (%d) do not match symbols (%d)", len(countFields), len(symbols))
	}
	counts := make([]int, len(countFields))
	total := 0
	for i, fld := range countFields {
		counts[i], err = strconv.Atoi(fld)
		if err != nil {
			return nil, fmt.Errorf("bad element count %q: %w", fld, err)
		}
		total += counts[i]
	}

	line, err = next()
	if err != nil {
		return nil, err
	}
	mode := strings.TrimSpace(line)
	if strings.HasPrefix(strings.ToLower(mode), "s") {
		// Selective dynamics marker; coordinate mode is on the next line.
		line, err = next()
		if err != nil {
			return nil, err
		}
		mode = strings.TrimSpace(line)
	}
	s.Cartesian = strings.HasPrefix(strings.ToLower(mode), "c") || strings.HasPrefix(strings.ToLower(mode), "k")

	for i, sym := range symbols {
		for j := 0; j < counts[i]; j++ {
			line, err = next()
			if err != nil {
				return nil, err
			}
			coords, err := parseFloats(line, 3)
			if err != nil {
				return nil, fmt.Errorf("bad coordinate line for %s: %w", sym, err)
			}
			s.Sites = append(s.Sites, Site{Symbol: sym, Coords: [3]float64{coords[0], coords[1], coords[2]}})
		}
	}
	return s, nil
}

// WritePoscar serializes the structure to path in VASP 5 format.
func WritePoscar(path string, s *Structure) error {
	var b strings.Builder
	comment := s.Comment
	if comment == "" {
		comment = strings.Join(s.Symbols(), " ")
	}
	fmt.Fprintln(&b, comment)
	scale := s.Scale
	if scale == 0 {
		scale = 1.0
	}
	fmt.Fprintf(&b, "%.6f\n", scale)
	for _, vec := range s.Lattice {
		fmt.Fprintf(&b, "  %.10f  %.10f  %.10f\n", vec[0], vec[1], vec[2])
	}
	fmt.Fprintln(&b, strings.Join(s.Symbols(), " "))
	countStrs := make([]string, 0, len(s.Counts()))
	for _, c := range s.Counts() {
		countStrs = append(countStrs, strconv.Itoa(c))
	}
	fmt.Fprintln(&b, strings.Join(countStrs, " "))
	if s.Cartesian {
		fmt.Fprintln(&b, "Cartesian")
	} else {
		fmt.Fprintln(&b, "Direct")
	}
	// Sites grouped by symbol so the coordinate blocks line up with the
	// symbol/count header.
	for _, sym := range s.Symbols() {
		for _, site := range s.Sites {
			if site.Symbol == sym {
				fmt.Fprintf(&b, "  %.10f  %.10f  %.10f\n", site.Coords[0], site.Coords[1], site.Coords[2])
			}
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("vaspdata: write structure file: %w", err)
	}
	return nil
}

func parseFloats(line string, want int) ([]float64, error) {
	fields := strings.Fields(line)
	if len(fields) < want {
		return nil, fmt.Errorf("expected %d fields, got %d", want, len(fields))
	}
	out := make([]float64, want)
	for i := 0; i < want; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

package vaspdata

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Incar is the run-control tag set. Values are kept verbatim as written.
type Incar map[string]string

// ReadIncar parses an INCAR file. Blank lines and '#' comments are skipped.
func ReadIncar(path string) (Incar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vaspdata: open INCAR: %w", err)
	}
	defer f.Close()

	inc := Incar{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("vaspdata: malformed INCAR line %q in %s", line, path)
		}
		inc[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vaspdata: read INCAR: %w", err)
	}
	return inc, nil
}

// Write serializes the tag set to path with keys sorted for stable output.
func (inc Incar) Write(path string) error {
	keys := make([]string, 0, len(inc))
	for k := range inc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %s\n", k, inc[k])
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("vaspdata: write INCAR: %w", err)
	}
	return nil
}

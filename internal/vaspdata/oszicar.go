package vaspdata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// IonicStep is one ionic-relaxation record from an OSZICAR energy log.
type IonicStep struct {
	N  int
	F  float64
	E0 float64
}

// Oszicar is a parsed OSZICAR energy log. Electronic-minimization lines are
// skipped; only the per-ionic-step summary lines are retained.
type Oszicar struct {
	Steps []IonicStep
}

// FinalE0 returns the last ionic step's E0, or 0 when the log is empty.
func (o *Oszicar) FinalE0() float64 {
	if len(o.Steps) == 0 {
		return 0
	}
	return o.Steps[len(o.Steps)-1].E0
}

// RunStats summarizes the log for fidelity comparison after a forward copy.
func (o *Oszicar) RunStats() map[string]float64 {
	return map[string]float64{
		"ionic_steps": float64(len(o.Steps)),
		"final_e0":    o.FinalE0(),
	}
}

// ReadOszicar parses an OSZICAR file.
func ReadOszicar(path string) (*Oszicar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vaspdata: open OSZICAR: %w", err)
	}
	defer f.Close()

	osz := &Oszicar{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		// Summary lines look like: "1 F= -.27E+02 E0= -.27E+02 d E =0.0".
		if len(fields) < 5 || fields[1] != "F=" {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		fVal, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("vaspdata: bad F value in %s: %w", path, err)
		}
		e0, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("vaspdata: bad E0 value in %s: %w", path, err)
		}
		osz.Steps = append(osz.Steps, IonicStep{N: n, F: fVal, E0: e0})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vaspdata: read OSZICAR: %w", err)
	}
	return osz, nil
}

// Write serializes the log to path.
func (o *Oszicar) Write(path string) error {
	var b strings.Builder
	for _, step := range o.Steps {
		fmt.Fprintf(&b, "%4d F= %.8E E0= %.8E  d E =0.000000\n", step.N, step.F, step.E0)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("vaspdata: write OSZICAR: %w", err)
	}
	return nil
}

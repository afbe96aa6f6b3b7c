// Package submit is the batch-scheduler boundary: it renders the submission
// script for a job directory and launches either the program directly or
// the queue submission command. Both are opaque shell operations; waiting on
// the serial mode means waiting for the submission command, never for the
// queued job itself.
package submit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/hmatter/ingot/internal/ctxlog"
	"github.com/hmatter/ingot/internal/ingredient"
	"github.com/hmatter/ingot/internal/keywords"
)

// DefaultScriptName is the rendered submission script's filename.
const DefaultScriptName = "submit.sh"

// defaultScript is the stock submission script template. Fields come from
// the job's configuration record and the submitter config.
const defaultScript = `#!/bin/bash
#PBS -N {{.JobName}}
#PBS -l walltime={{.Walltime}}
#PBS -l nodes={{.Nodes}}:ppn={{.ProcsPerNode}}
#PBS -q {{.Queue}}
cd $PBS_O_WORKDIR
{{.ProgramCommand}}
`

// Config holds the scheduler-site settings, passed explicitly at startup
// instead of being read from process environment.
type Config struct {
	// ProgramCommand executes the simulation program itself.
	ProgramCommand string
	// SubmitCommand submits the rendered script to the queue.
	SubmitCommand string
	// Queue, Walltime, Nodes and ProcsPerNode feed the script template.
	Queue        string
	Walltime     string
	Nodes        int
	ProcsPerNode int
	// ScriptTemplate overrides the stock template when non-empty.
	ScriptTemplate string
	// ScriptName overrides DefaultScriptName when non-empty.
	ScriptName string
}

// Submitter renders submission scripts and launches jobs.
type Submitter struct {
	cfg  Config
	tmpl *template.Template
}

// New builds a submitter, applying defaults for unset config fields.
func New(cfg Config) (*Submitter, error) {
	if cfg.ProgramCommand == "" {
		cfg.ProgramCommand = "vasp_std"
	}
	if cfg.SubmitCommand == "" {
		cfg.SubmitCommand = "qsub " + scriptName(cfg)
	}
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if cfg.Walltime == "" {
		cfg.Walltime = "24:00:00"
	}
	if cfg.Nodes == 0 {
		cfg.Nodes = 1
	}
	if cfg.ProcsPerNode == 0 {
		cfg.ProcsPerNode = 1
	}
	text := cfg.ScriptTemplate
	if text == "" {
		text = defaultScript
	}
	tmpl, err := template.New("submit").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("submit: parse script template: %w", err)
	}
	return &Submitter{cfg: cfg, tmpl: tmpl}, nil
}

func scriptName(cfg Config) string {
	if cfg.ScriptName != "" {
		return cfg.ScriptName
	}
	return DefaultScriptName
}

// WriteSubmitScript renders the submission script into the job directory.
func (s *Submitter) WriteSubmitScript(kw *keywords.Keywords) error {
	data := struct {
		JobName        string
		Queue          string
		Walltime       string
		Nodes          int
		ProcsPerNode   int
		ProgramCommand string
	}{
		JobName:        kw.ShortName(),
		Queue:          s.cfg.Queue,
		Walltime:       s.cfg.Walltime,
		Nodes:          s.cfg.Nodes,
		ProcsPerNode:   s.cfg.ProcsPerNode,
		ProgramCommand: s.cfg.ProgramCommand,
	}
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("submit: render script for %s: %w", kw.ShortName(), err)
	}
	path := filepath.Join(kw.Name, scriptName(s.cfg))
	if err := os.WriteFile(path, buf.Bytes(), 0o755); err != nil {
		return fmt.Errorf("submit: write script: %w", err)
	}
	return nil
}

// Run launches the job from dir. ModeNoQsub runs the program command
// directly and synchronously; ModeSerial runs the queue submission command
// and returns when that command does. The subprocess runs with dir as its
// working directory so the caller's is never disturbed.
func (s *Submitter) Run(ctx context.Context, mode ingredient.RunMode, dir string) error {
	var command string
	switch mode {
	case ingredient.ModeNoQsub:
		command = s.cfg.ProgramCommand
	case ingredient.ModeSerial:
		command = s.cfg.SubmitCommand
	default:
		return fmt.Errorf("submit: unknown run mode %q", mode)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("launching job", "dir", dir, "mode", string(mode), "command", command)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("submit: %s in %s: %w (output: %s)",
			command, dir, err, bytes.TrimSpace(output))
	}
	logger.Debug("launch command returned", "dir", dir, "output_bytes", len(output))
	return nil
}

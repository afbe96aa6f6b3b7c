package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/hmatter/ingot/internal/ingredient"
)

// Config holds all the necessary configuration for an App instance to run.
// Scheduler-site settings that surrounding tooling would historically read
// from process environment are explicit fields here.
type Config struct {
	RecipePath  string // hcl recipe file or directory
	PotentialDB string // optional yaml catalog override

	RunMode      string // "noqsub" or "serial"
	PollInterval time.Duration
	MaxPolls     int

	LogFormat  string
	LogLevel   string
	StatusPort int

	// Batch-scheduler site settings, handed to the submitter.
	ProgramCommand string
	SubmitCommand  string
	Queue          string
	Walltime       string
	Nodes          int
	ProcsPerNode   int
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.RecipePath == "" {
		return nil, errors.New("RecipePath is a required configuration field and cannot be empty")
	}
	switch ingredient.RunMode(cfg.RunMode) {
	case ingredient.ModeNoQsub, ingredient.ModeSerial:
	default:
		return nil, fmt.Errorf("RunMode must be %q or %q, got %q",
			ingredient.ModeNoQsub, ingredient.ModeSerial, cfg.RunMode)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 120
	}
	return &cfg, nil
}

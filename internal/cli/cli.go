// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hmatter/ingot/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("ingot", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
ingot - orchestrates chained ab-initio calculation jobs.

Usage:
  ingot [options] [RECIPE_PATH]

Arguments:
  RECIPE_PATH
    Path to a single .hcl recipe file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	recipeFlag := flagSet.String("recipe", "", "Path to the recipe file or directory.")
	potDBFlag := flagSet.String("potential-db", "", "Path to a potential catalog YAML file. Empty uses the embedded defaults.")
	modeFlag := flagSet.String("mode", "serial", "Run mode. Options: 'noqsub' (direct execution) or 'serial' (queue submission).")
	pollFlag := flagSet.Duration("poll-interval", 30*time.Second, "Delay between completion polls.")
	maxPollsFlag := flagSet.Int("max-polls", 120, "Give up after this many completion polls.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	programCmdFlag := flagSet.String("program-cmd", "", "Command that runs the simulation program directly.")
	submitCmdFlag := flagSet.String("submit-cmd", "", "Command that submits the rendered script to the queue.")
	queueFlag := flagSet.String("queue", "default", "Batch queue name for the submit script.")
	walltimeFlag := flagSet.String("walltime", "24:00:00", "Walltime request for the submit script.")
	nodesFlag := flagSet.Int("nodes", 1, "Node count for the submit script.")
	ppnFlag := flagSet.Int("ppn", 1, "Processors per node for the submit script.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := *recipeFlag
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		RecipePath:     path,
		PotentialDB:    *potDBFlag,
		RunMode:        strings.ToLower(*modeFlag),
		PollInterval:   *pollFlag,
		MaxPolls:       *maxPollsFlag,
		StatusPort:     *statusPortFlag,
		LogFormat:      logFormat,
		LogLevel:       logLevel,
		ProgramCommand: *programCmdFlag,
		SubmitCommand:  *submitCmdFlag,
		Queue:          *queueFlag,
		Walltime:       *walltimeFlag,
		Nodes:          *nodesFlag,
		ProcsPerNode:   *ppnFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}

// Package app wires the workflow together: it loads the potential catalog
// and the job recipe, builds the checker registry and the ingredients, and
// drives the setup/submit/poll/forward pass over them.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hmatter/ingot/internal/checker"
	"github.com/hmatter/ingot/internal/checker/vasp"
	"github.com/hmatter/ingot/internal/ctxlog"
	"github.com/hmatter/ingot/internal/ingredient"
	"github.com/hmatter/ingot/internal/potdb"
	"github.com/hmatter/ingot/internal/recipe"
	"github.com/hmatter/ingot/internal/submit"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	registry    *checker.Registry
	submitter   *submit.Submitter
	recipe      *recipe.Recipe
	ingredients []*ingredient.Ingredient

	httpServer *http.Server
}

// NewApp constructs a fully initialized App: logger, potential catalog,
// checker registry with the supported program backends, submitter, loaded
// recipe and one ingredient per declaration.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("logger configured")

	db, err := loadCatalog(cfg.PotentialDB)
	if err != nil {
		return nil, err
	}

	reg := checker.NewRegistry()
	vasp.Register(reg, db)
	logger.Debug("program backends registered", "programs", reg.Programs())

	submitter, err := submit.New(submit.Config{
		ProgramCommand: cfg.ProgramCommand,
		SubmitCommand:  cfg.SubmitCommand,
		Queue:          cfg.Queue,
		Walltime:       cfg.Walltime,
		Nodes:          cfg.Nodes,
		ProcsPerNode:   cfg.ProcsPerNode,
	})
	if err != nil {
		return nil, err
	}

	rec, err := recipe.Load(ctx, cfg.RecipePath)
	if err != nil {
		return nil, err
	}

	app := &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		submitter: submitter,
		recipe:    rec,
	}
	for _, entry := range rec.Entries {
		ing, err := ingredient.New(entry.Keywords, reg, submitter)
		if err != nil {
			return nil, fmt.Errorf("app: ingredient %q: %w", entry.Label, err)
		}
		app.ingredients = append(app.ingredients, ing)
	}
	logger.Debug("ingredients constructed", "count", len(app.ingredients))
	return app, nil
}

func loadCatalog(path string) (potdb.DB, error) {
	if path == "" {
		return potdb.Default()
	}
	return potdb.Load(path)
}

// Registry returns the application's checker registry. This is primarily
// for testing.
func (a *App) Registry() *checker.Registry {
	return a.registry
}

// Ingredients returns the constructed ingredients in recipe order.
func (a *App) Ingredients() []*ingredient.Ingredient {
	return a.ingredients
}

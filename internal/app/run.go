package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hmatter/ingot/internal/checker"
	"github.com/hmatter/ingot/internal/ctxlog"
	"github.com/hmatter/ingot/internal/ingredient"
	"github.com/hmatter/ingot/internal/lockfile"
)

// Run drives the workflow: each pass sets up and launches whatever became
// ready, polls running jobs for completion, and forwards a finished parent's
// artifacts into its children so they can launch on a later pass. Policy
// beyond the declared child edges — notably whether a stalled job with
// recognized failures is resubmitted — stays with the operator.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("app run started", "ingredients", len(a.ingredients))

	if a.config.StatusPort > 0 {
		go a.statusServer(ctx)
	}

	mode := ingredient.RunMode(a.config.RunMode)
	forwarded := make(map[string]bool, len(a.ingredients))
	launched := make(map[string]bool, len(a.ingredients))
	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for poll := 0; poll < a.config.MaxPolls; poll++ {
		pending := 0
		for _, ing := range a.ingredients {
			if forwarded[ing.Path()] {
				continue
			}
			if ing.IsComplete(ctx) {
				if err := a.forwardToChildren(ctx, ing); err != nil {
					return err
				}
				forwarded[ing.Path()] = true
				continue
			}
			pending++
			if launched[ing.Path()] {
				if count := ing.ErrorCount(); count > 0 {
					a.logger.Warn("job stalled with recognized failures",
						"ingredient", ing.Name(), "signatures", count)
				}
				continue
			}
			if !ing.IsReadyToRun(ctx) {
				if err := a.setUp(ctx, ing); err != nil {
					return err
				}
			}
			if !ing.IsReadyToRun(ctx) {
				a.logger.Debug("waiting on upstream artifacts", "ingredient", ing.Name())
				continue
			}
			if err := ing.Run(ctx, mode); err != nil {
				return fmt.Errorf("app: launch %s: %w", ing.Name(), err)
			}
			launched[ing.Path()] = true
		}
		if pending == 0 {
			a.logger.Info("workflow pass complete")
			return nil
		}
		a.logger.Debug("polling", "pending", pending, "poll", poll)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return fmt.Errorf("app: poll budget exhausted with incomplete jobs")
}

// setUp writes the job directory and its input set under the directory
// lock, releasing the lock even when setup fails. A job whose structure has
// not arrived from its parent yet is left alone for a later pass.
func (a *App) setUp(ctx context.Context, ing *ingredient.Ingredient) error {
	if err := ing.WriteDirectory(ctx); err != nil {
		return err
	}
	if err := ing.WaitToWrite(ctx); err != nil {
		return err
	}
	defer func() {
		if err := ing.UnlockDirectory(); err != nil {
			a.logger.Error("unlock failed", "ingredient", ing.Name(), "err", err)
		}
	}()
	if err := ing.SetUpProgramInput(ctx); err != nil {
		if errors.Is(err, checker.ErrMissingStructure) {
			a.logger.Debug("structure not yet available", "ingredient", ing.Name())
			return nil
		}
		return fmt.Errorf("app: set up %s: %w", ing.Name(), err)
	}
	return ing.WriteSubmitScript()
}

// forwardToChildren performs the standard parent-to-child handoff: final
// structure, energy log and optional restart caches, written under the
// child directory's lock.
func (a *App) forwardToChildren(ctx context.Context, ing *ingredient.Ingredient) error {
	children := ing.Children()
	if children == nil {
		return nil
	}
	chk := ing.Checker()
	for role, childDir := range children {
		a.logger.Info("forwarding artifacts",
			"parent", ing.Name(), "role", role, "child", childDir)
		if err := ensureDir(childDir); err != nil {
			return err
		}
		if err := lockfile.WaitToWrite(ctx, childDir); err != nil {
			return err
		}
		err := func() error {
			if err := chk.ForwardFinalStructureFile(childDir); err != nil {
				return err
			}
			if err := chk.ForwardEnergyFile(childDir); err != nil {
				return err
			}
			return chk.ForwardExtraRestartFiles(childDir)
		}()
		if unlockErr := lockfile.Unlock(childDir); unlockErr != nil {
			a.logger.Error("unlock failed", "dir", childDir, "err", unlockErr)
		}
		if err != nil {
			return fmt.Errorf("app: forward %s to %s: %w", ing.Name(), childDir, err)
		}
	}
	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("app: create directory %s: %w", dir, err)
	}
	return nil
}

// Package recipe loads job-recipe files: HCL documents declaring the
// ingredients of a workflow, their program directives and the parent-child
// forwarding edges. The loader validates each block into a typed
// configuration record; graph policy stays with the orchestrator.
package recipe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/hmatter/ingot/internal/ctxlog"
	"github.com/hmatter/ingot/internal/fsutil"
	"github.com/hmatter/ingot/internal/keywords"
)

// Entry is one loaded ingredient declaration.
type Entry struct {
	Label    string
	Keywords *keywords.Keywords
}

// Recipe is an ordered set of ingredient declarations.
type Recipe struct {
	Entries []Entry
}

// Find returns the entry with the given label, or nil.
func (r *Recipe) Find(label string) *Entry {
	for i := range r.Entries {
		if r.Entries[i].Label == label {
			return &r.Entries[i]
		}
	}
	return nil
}

type childBlock struct {
	Role string `hcl:"role,label"`
	To   string `hcl:"to"`
}

type ingredientBlock struct {
	Label    string         `hcl:"label,label"`
	Program  string         `hcl:"program"`
	Dir      *string        `hcl:"dir"`
	Keys     hcl.Expression `hcl:"keys,optional"`
	Children []childBlock   `hcl:"child,block"`
}

type fileRoot struct {
	Workdir     *string            `hcl:"workdir"`
	Ingredients []*ingredientBlock `hcl:"ingredient,block"`
}

// Load parses every .hcl file at path (a file or a directory) and resolves
// the declarations into validated configuration records.
func Load(ctx context.Context, path string) (*Recipe, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := collectFiles(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("recipe files discovered", "count", len(files))

	parser := hclparse.NewParser()
	var blocks []*ingredientBlock
	workdir := ""
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("recipe: parse %s: %w", file, diags)
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("recipe: decode %s: %w", file, diags)
		}
		if root.Workdir != nil {
			workdir = *root.Workdir
		}
		blocks = append(blocks, root.Ingredients...)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("recipe: no ingredient blocks under %s", path)
	}

	// First pass: resolve every label to its job directory so child edges
	// can point at directories rather than labels.
	dirs := make(map[string]string, len(blocks))
	for _, block := range blocks {
		if _, dup := dirs[block.Label]; dup {
			return nil, fmt.Errorf("recipe: duplicate ingredient label %q", block.Label)
		}
		dirs[block.Label] = blockDir(block, workdir)
	}

	recipe := &Recipe{}
	for _, block := range blocks {
		kw, err := translate(block, dirs, workdir)
		if err != nil {
			return nil, err
		}
		recipe.Entries = append(recipe.Entries, Entry{Label: block.Label, Keywords: kw})
	}
	logger.Debug("recipe loaded", "ingredients", len(recipe.Entries))
	return recipe, nil
}

func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("recipe: stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("recipe: scan %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("recipe: no .hcl files under %s", path)
	}
	return files, nil
}

func blockDir(block *ingredientBlock, workdir string) string {
	if block.Dir != nil && *block.Dir != "" {
		return *block.Dir
	}
	return filepath.Join(workdir, block.Label)
}

func translate(block *ingredientBlock, dirs map[string]string, workdir string) (*keywords.Keywords, error) {
	record := map[string]any{
		keywords.KeyName:    blockDir(block, workdir),
		keywords.KeyProgram: block.Program,
	}

	if block.Keys != nil {
		val, diags := block.Keys.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("recipe: ingredient %q keys: %w", block.Label, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("recipe: ingredient %q: %w", block.Label, err)
		}
		if native != nil {
			keysMap, ok := native.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("recipe: ingredient %q: keys must be an object, got %T",
					block.Label, native)
			}
			record[keywords.KeyProgramKeys] = keysMap
		}
	}

	if len(block.Children) > 0 {
		children := make(map[string]any, len(block.Children))
		for _, child := range block.Children {
			dir, ok := dirs[child.To]
			if !ok {
				return nil, fmt.Errorf("recipe: ingredient %q: child %q points at unknown label %q",
					block.Label, child.Role, child.To)
			}
			children[child.Role] = dir
		}
		record[keywords.KeyChildDict] = children
	}

	kw, err := keywords.FromMap(record)
	if err != nil {
		return nil, fmt.Errorf("recipe: ingredient %q: %w", block.Label, err)
	}
	return kw, nil
}

package compiler

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/pdatrace/internal/pattern"
)

// LoadDir compiles every `pattern: <name>: {...}` definition in the CUE
// package found in dir. All compile errors are reported together.
func LoadDir(dir string) ([]pattern.Pattern, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("patterns directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("patterns directory: not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", formatCUEError(inst.Err))
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}

	patternsVal := value.LookupPath(cue.ParsePath("pattern"))
	if !patternsVal.Exists() {
		return nil, fmt.Errorf("no patterns defined in %s", dir)
	}

	iter, err := patternsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating patterns: %w", formatCUEError(err))
	}

	var (
		patterns []pattern.Pattern
		errs     []error
	)
	for iter.Next() {
		p, err := CompilePattern(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("pattern.%s: %w", iter.Label(), err))
			continue
		}
		patterns = append(patterns, *p)
	}
	if len(errs) > 0 {
		return nil, stderrors.Join(errs...)
	}
	return patterns, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Library builds a pattern library from the defaults plus every pattern
// in dir. An empty dir yields the default library.
func Library(dir string) (*pattern.Library, error) {
	patterns := pattern.DefaultPatterns()
	if dir != "" {
		extra, err := LoadDir(dir)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, extra...)
	}
	return pattern.NewLibrary(patterns...)
}

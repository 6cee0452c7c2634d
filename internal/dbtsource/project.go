package dbtsource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// SourceFilePath returns models/<dataset>/sources/src_<dataset>.yml under the
// dbt project.
func SourceFilePath(projectPath, projectName, dataset string) string {
	return filepath.Join(projectPath, projectName, "models", dataset, "sources", "src_"+dataset+".yml")
}

// ReadProject parses the source file of every model directory in a dbt
// project and returns the sources keyed by source name.
//
// Model directories without a sources file are skipped. Parse failures do not
// stop the scan; they are collected and returned together with the sources
// that did parse.
func ReadProject(projectPath, projectName string) (map[string]*Source, error) {
	modelsDir := filepath.Join(projectPath, projectName, "models")
	entries, err := os.ReadDir(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}

	var errs *multierror.Error
	out := make(map[string]*Source, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := SourceFilePath(projectPath, projectName, e.Name())
		src, err := ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if prev, dup := out[src.Name]; dup {
			errs = multierror.Append(errs, fmt.Errorf("%s: source %q already declared by dataset %s/%s", path, src.Name, prev.KaggleOwner, prev.KaggleName))
			continue
		}
		out[src.Name] = src
	}
	return out, errs.ErrorOrNil()
}

// SortedNames returns the keys of sources in lexical order.
func SortedNames(sources map[string]*Source) []string {
	names := make([]string, 0, len(sources))
	for n := range sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

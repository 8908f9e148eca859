package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDocsRoot is returned when a requested path escapes the documents directory.
var ErrOutsideDocsRoot = errors.New("path is outside the documents directory")

// DocsRoot confines caller-supplied paths to the configured documents directory.
type DocsRoot struct {
	Dir string // absolute path of the documents directory
}

func NewDocsRoot(dir string) (*DocsRoot, error) {
	if dir == "" {
		return nil, fmt.Errorf("documents directory not set")
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for %s: %w", dir, err)
	}
	return &DocsRoot{Dir: absPath}, nil
}

// Resolve maps a path relative to the root onto the filesystem. An empty
// path is the root itself. Traversal out of the root is rejected.
func (d *DocsRoot) Resolve(path string) (string, error) {
	if path == "" {
		return d.Dir, nil
	}
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(d.Dir, candidate)
	}
	candidate = filepath.Clean(candidate)
	rel, err := filepath.Rel(d.Dir, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDocsRoot, path)
	}
	return candidate, nil
}

// ResolveDir is Resolve plus a check that the target is an existing directory.
func (d *DocsRoot) ResolveDir(path string) (string, error) {
	resolved, err := d.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}
	return resolved, nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package paths confines file lookups to an operator-supplied directory.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEscapesRoot means the path, after symlink resolution, lies outside the root.
	ErrEscapesRoot = errors.New("path escapes root directory")
	// ErrIsDirectory means the path names a directory, not a file.
	ErrIsDirectory = errors.New("path points to directory")
)

// ResolveInRoot resolves relPath inside root while protecting against path
// traversal and symlink escapes. A missing file wraps os.ErrNotExist.
func ResolveInRoot(root, relPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(relPath, "/")))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscapesRoot, relPath)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root directory: %w", err)
	}
	// Resolve root symlinks to establish the true base.
	resolvedRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolve root directory: %w", err)
	}

	full := filepath.Join(absRoot, clean)
	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", relPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrIsDirectory, relPath)
	}

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", relPath, err)
	}

	relToRoot, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil {
		return "", fmt.Errorf("resolve relative path: %w", err)
	}
	// Check traversal again after symlink resolution
	if relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(filepath.Separator)) || filepath.IsAbs(relToRoot) {
		return "", fmt.Errorf("%w: %s", ErrEscapesRoot, relPath)
	}
	return resolved, nil
}

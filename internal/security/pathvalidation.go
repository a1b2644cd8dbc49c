// Package security guards where a recording session may write.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a destination resolves outside every
// permitted output root.
var ErrOutsideRoot = errors.New("path outside permitted output root")

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir.
// Symlinks are resolved on the longest existing prefix of filePath so that a
// not-yet-created output file below a symlinked directory cannot escape.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}

	canonicalPath := resolveExistingPrefix(absPath)
	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	relPath, err := filepath.Rel(canonicalSafeDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutsideRoot, err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return fmt.Errorf("%w: %s escapes %s", ErrOutsideRoot, filePath, safeDir)
	}
	return nil
}

// resolveExistingPrefix evaluates symlinks on absPath, or on its nearest
// existing parent when absPath does not exist yet.
func resolveExistingPrefix(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	for check := absPath; ; {
		parent := filepath.Dir(check)
		if parent == check {
			return absPath
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, absPath)
			return filepath.Join(resolved, rel)
		}
		check = parent
	}
}

// ValidateOutputPath accepts destination when roots is empty or when it
// resolves inside at least one root.
func ValidateOutputPath(destination string, roots []string) error {
	if len(roots) == 0 {
		return nil
	}
	for _, dir := range roots {
		if err := ValidatePathWithinDirectory(destination, dir); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be within one of %v", ErrOutsideRoot, destination, roots)
}

// Package util provides shared utility functions.
package util

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNotFound is wrapped by every lookup failure.
var ErrNotFound = errors.New("binary not found")

// FindBinary searches for an executable binary by name.
// Search order:
//  1. Environment variable (if envVar is non-empty and set)
//  2. name on PATH (via exec.LookPath)
//
// An environment value that is not an executable file is skipped.
func FindBinary(name string, envVar string) (string, error) {
	if envVar != "" {
		if envPath := os.Getenv(envVar); envPath != "" {
			if path, err := ResolveExplicit(envPath); err == nil {
				return path, nil
			}
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ResolveExplicit checks a caller supplied binary. A value containing a path
// separator must name an executable file; a bare name is looked up on PATH.
func ResolveExplicit(path string) (string, error) {
	if !strings.ContainsRune(path, os.PathSeparator) && !strings.Contains(path, "/") {
		found, err := exec.LookPath(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return found, nil
	}
	if !IsExecutable(path) {
		return "", fmt.Errorf("%w: %s is not an executable file", ErrNotFound, path)
	}
	return path, nil
}

// IsExecutable checks if a file exists, is not a directory and has any
// executable bit set.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

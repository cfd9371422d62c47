// Package dotdir resolves the .lector/ configuration directory.
//
// Lector keeps its config.toml and any local state under a .lector/ directory,
// either project-local (./.lector/) or in the user's home (~/.lector/).
package dotdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// dirName is the name of the lector directory.
const dirName = ".lector"

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to the .lector/ directory to use.
// Order of precedence:
//  1. Provided override (created if missing)
//  2. Local ./.lector/ dir, if it exists
//  3. Home ~/.lector/ dir, if it exists
//
// If none is found, Target returns an empty string and no error; callers fall
// back to defaults and surface a clear error on writes.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating lector directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, dirName)
		if dirExists(local) {
			return filepath.Abs(local)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	homeDir := filepath.Join(home, dirName)
	if dirExists(homeDir) {
		return filepath.Abs(homeDir)
	}

	return "", nil
}

// Ensure resolves the target directory like Target, creating ~/.lector/ when
// nothing else exists. Used by commands that must persist state.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil || target != "" {
		return target, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating lector directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	return err == nil && info.IsDir()
}

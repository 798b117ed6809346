// Package dotdir manages the .folio/ and ~/.folio directories.
//
// The dot directory holds the config file, credentials, chat history, and the
// default locations for the document store and vector index artifacts. A local
// ./.folio directory takes precedence over ~/.folio so libraries can be kept
// per project.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the folio directory.
	dirName = ".folio"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to the resolved .folio/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.folio/ dir
//  3. Home ~/.folio/ dir
//
// Returns "" with a nil error when no directory resolves, so callers can
// fall back to defaults without touching the filesystem. Use Ensure when
// the directory must exist.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating folio directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	if m.localDirExists() {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return filepath.Abs(filepath.Join(cwd, dirName))
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(home, dirName)
	if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
		return filepath.Abs(dir)
	}

	return "", nil
}

// Ensure resolves the .folio/ directory like Target, but creates ~/.folio
// when nothing else resolves. Commands that persist state (serve, auth,
// seed) call this; read-only commands use Target.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir = filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating folio directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// localDirExists checks whether a .folio/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}

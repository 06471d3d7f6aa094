// Package testutil holds shared helpers for librarylookup tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestEnv is a scratch directory for one test. Every path handed out by it
// is checked to stay inside the directory, which is removed when the test
// ends.
type TestEnv struct {
	t       *testing.T
	rootDir string
}

// NewTestEnv creates a scratch environment rooted at t.TempDir().
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	return &TestEnv{t: t, rootDir: t.TempDir()}
}

// RootDir returns the root directory of the environment.
func (e *TestEnv) RootDir() string {
	return e.rootDir
}

// Path joins elem below the root and fails the test if the result escapes it.
func (e *TestEnv) Path(elem ...string) string {
	e.t.Helper()

	p := filepath.Clean(filepath.Join(e.rootDir, filepath.Join(elem...)))
	root := filepath.Clean(e.rootDir)
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		e.t.Fatalf("path %q escapes test sandbox %q", p, e.rootDir)
	}
	return p
}

// WriteFile writes content below the root, creating parent directories.
func (e *TestEnv) WriteFile(path string, content []byte) string {
	e.t.Helper()

	abs := e.Path(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		e.t.Fatalf("failed to create directory for %q: %v", abs, err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		e.t.Fatalf("failed to write file %q: %v", abs, err)
	}
	return abs
}

// WriteFileString is WriteFile for string content.
func (e *TestEnv) WriteFileString(path, content string) string {
	e.t.Helper()
	return e.WriteFile(path, []byte(content))
}

// ReadFile reads a file below the root.
func (e *TestEnv) ReadFile(path string) []byte {
	e.t.Helper()

	abs := e.Path(path)
	content, err := os.ReadFile(abs)
	if err != nil {
		e.t.Fatalf("failed to read file %q: %v", abs, err)
	}
	return content
}

// MkdirAll creates a directory below the root.
func (e *TestEnv) MkdirAll(path string) string {
	e.t.Helper()

	abs := e.Path(path)
	if err := os.MkdirAll(abs, 0o755); err != nil {
		e.t.Fatalf("failed to create directory %q: %v", abs, err)
	}
	return abs
}

// FileExists reports whether path exists below the root.
func (e *TestEnv) FileExists(path string) bool {
	e.t.Helper()
	_, err := os.Stat(e.Path(path))
	return err == nil
}

// ListFiles returns the sorted entry names of a directory below the root.
func (e *TestEnv) ListFiles(path string) []string {
	e.t.Helper()

	abs := e.Path(path)
	entries, err := os.ReadDir(abs)
	if err != nil {
		e.t.Fatalf("failed to read directory %q: %v", abs, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

// Chdir switches the working directory below the root until the test ends.
func (e *TestEnv) Chdir(path string) {
	e.t.Helper()
	e.t.Chdir(e.Path(path))
}

// SetEnv sets an environment variable until the test ends.
func (e *TestEnv) SetEnv(key, value string) {
	e.t.Helper()
	e.t.Setenv(key, value)
}

func (e *TestEnv) String() string {
	return fmt.Sprintf("TestEnv{rootDir: %q}", e.rootDir)
}

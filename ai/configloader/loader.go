package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader reads YAML configuration files relative to a base directory.
type Loader struct {
	baseDir string
	cache   sync.Map
}

// NewLoader creates a new configuration loader.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		baseDir: baseDir,
	}
}

// Load loads a single YAML file and unmarshals it into target.
func (l *Loader) Load(subPath string, target any) error {
	data, err := l.ReadFileWithFallback(subPath)
	if err != nil {
		return fmt.Errorf("read file %s: %w", subPath, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML %s: %w", subPath, err)
	}

	return nil
}

// LoadCached loads a configuration once per path.
// factory creates the target on the first load; later calls return the same value.
func (l *Loader) LoadCached(subPath string, factory func() any) (any, error) {
	if cached, ok := l.cache.Load(subPath); ok {
		return cached, nil
	}

	target := factory()
	if err := l.Load(subPath, target); err != nil {
		return nil, err
	}

	actual, _ := l.cache.LoadOrStore(subPath, target)
	return actual, nil
}

// Exists reports whether subPath resolves to a readable file.
func (l *Loader) Exists(subPath string) bool {
	_, err := l.ReadFileWithFallback(subPath)
	return err == nil
}

// ReadFileWithFallback tries to read file from path relative to baseDir,
// then falls back to executable directory for production builds.
func (l *Loader) ReadFileWithFallback(path string) ([]byte, error) {
	absPath := filepath.Join(l.baseDir, path)
	data, err := os.ReadFile(absPath)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || filepath.IsAbs(l.baseDir) {
		return nil, err
	}

	execPath, execErr := os.Executable()
	if execErr != nil {
		return nil, err
	}

	execAbsPath := filepath.Join(filepath.Dir(execPath), l.baseDir, path)
	return os.ReadFile(execAbsPath)
}

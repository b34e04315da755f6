// Package config loads the resolution core's tree-shaped configuration
// (confidence weights, per-strategy base confidences, social-graph and
// smart-resolution knobs, nickname overrides) from YAML via viper, with a
// plain-file fallback loader for auxiliary fixtures such as nickname-group
// overrides that ship alongside the main config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileLoader is a unified loader for auxiliary YAML files (nickname
// overrides, school-abbreviation tables) that live next to the main
// resolution-core config but are not part of viper's own key tree.
type FileLoader struct {
	baseDir string
	cache   sync.Map
}

// NewFileLoader creates a new auxiliary-file loader rooted at baseDir.
func NewFileLoader(baseDir string) *FileLoader {
	return &FileLoader{
		baseDir: baseDir,
	}
}

// Load loads a single YAML file and unmarshals it into target.
func (l *FileLoader) Load(subPath string, target any) error {
	data, err := l.ReadFileWithFallback(subPath)
	if err != nil {
		return fmt.Errorf("read file %s: %w", subPath, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML %s: %w", subPath, err)
	}

	return nil
}

// LoadCached loads a configuration with caching. If the file is already
// cached, returns the cached value. Otherwise calls factory to create the
// target and caches it.
func (l *FileLoader) LoadCached(subPath string, factory func() any) (any, error) {
	if cached, ok := l.cache.Load(subPath); ok {
		return cached, nil
	}

	target := factory()

	if err := l.Load(subPath, target); err != nil {
		return nil, err
	}

	l.cache.Store(subPath, target)

	return target, nil
}

// LoadDir loads all YAML files from a directory. The factory function is
// called for each file to create the target struct.
func (l *FileLoader) LoadDir(subDir string, factory func(path string) (any, error)) (map[string]any, error) {
	dirPath := filepath.Join(l.baseDir, subDir)

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dirPath, err)
	}

	result := make(map[string]any)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		filePath := filepath.Join(subDir, entry.Name())
		target, err := factory(filePath)
		if err != nil {
			return nil, fmt.Errorf("create target for %s: %w", filePath, err)
		}

		if err := l.Load(filePath, target); err != nil {
			return nil, fmt.Errorf("load %s: %w", filePath, err)
		}

		result[filePath] = target
	}

	return result, nil
}

// ReadFileWithFallback tries to read a file from a path relative to
// baseDir, then falls back to the executable's directory for production
// builds where the working directory isn't guaranteed to be the repo root.
func (l *FileLoader) ReadFileWithFallback(path string) ([]byte, error) {
	absPath := filepath.Join(l.baseDir, path)
	data, err := os.ReadFile(absPath)
	if err == nil {
		return data, nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}

	execDir := filepath.Dir(execPath)
	execAbsPath := filepath.Join(execDir, l.baseDir, path)

	return os.ReadFile(execAbsPath)
}

// ClearCache clears the auxiliary-file cache.
func (l *FileLoader) ClearCache() {
	l.cache = sync.Map{}
}

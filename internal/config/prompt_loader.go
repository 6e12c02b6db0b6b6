package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"cvoptimizer/internal/errors"
)

var operations = []string{OperationAnalyze, OperationCompare, OperationEdit}

// promptFile ties a prompt file on disk to the slot it fills.
type promptFile struct {
	operation string
	kind      string // "system" or "user"
	path      string
}

// promptFileList returns every configured prompt file with an absolute path.
func (c *Config) promptFileList() []promptFile {
	var files []promptFile
	for _, op := range operations {
		sys, usr := promptFiles(op, c.GetOperationConfig(op).CustomPrompts)
		if sys != "" {
			files = append(files, promptFile{operation: op, kind: "system", path: sys})
		}
		if usr != "" {
			files = append(files, promptFile{operation: op, kind: "user", path: usr})
		}
	}
	return files
}

// loadPromptsFromFiles loads custom prompts from external files if file paths are specified
func (c *Config) loadPromptsFromFiles() error {
	store := c.Prompts()
	for _, f := range c.promptFileList() {
		if err := c.loadInto(store, f); err != nil {
			return err
		}
	}

	if n := store.Count(); n == 0 {
		log.Println("[CONFIG] No custom prompt files loaded - using config or built-in prompts")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded from files: %d", n)
	}
	return nil
}

func (c *Config) loadInto(store *PromptStore, f promptFile) error {
	content, err := c.loadPromptFromFile(f.path, f.kind, f.operation)
	if err != nil {
		return err
	}
	if f.kind == "system" {
		store.setSystem(f.operation, content)
	} else {
		store.setUser(f.operation, content)
	}
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func (c *Config) loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
		}
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmed))

	return trimmed, nil
}

// validatePromptFiles validates that prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	for _, f := range c.promptFileList() {
		absPath, err := filepath.Abs(f.path)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", f.kind, f.operation, f.path))
			continue
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", f.kind, f.operation, absPath))
		}
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}

// WatchPrompts reloads prompt files when they change on disk, until ctx is
// done. Directories are watched rather than files so editors that replace
// files atomically keep working. A failed reload keeps the previous prompt.
func (c *Config) WatchPrompts(ctx context.Context, logger *errors.Logger) error {
	files := c.promptFileList()
	if len(files) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create prompt watcher: %w", err)
	}

	byPath := make(map[string][]promptFile)
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f.path)
		if err != nil {
			continue
		}
		f.path = abs
		byPath[abs] = append(byPath[abs], f)
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch prompt directory %s: %w", dir, err)
		}
	}

	logger.Info("Watching prompt files for changes", "files", len(byPath), "directories", len(dirs))

	go func() {
		defer watcher.Close()
		store := c.Prompts()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				for _, f := range byPath[filepath.Clean(event.Name)] {
					if err := c.loadInto(store, f); err != nil {
						logger.LogError(err, "Prompt reload failed, keeping previous prompt",
							"operation", f.operation, "kind", f.kind, "file", f.path)
						continue
					}
					logger.Info("Prompt reloaded", "operation", f.operation, "kind", f.kind, "file", f.path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.LogError(err, "Prompt watcher error")
			}
		}
	}()

	return nil
}

package config

import (
	"sync"
)

// LoadedPrompts holds prompt text read from files for one operation
type LoadedPrompts struct {
	System string
	User   string
}

// PromptStore holds file-loaded prompts per operation. It is safe for
// concurrent use; the prompt watcher swaps entries while requests read them.
type PromptStore struct {
	mu      sync.RWMutex
	entries map[string]LoadedPrompts
}

// NewPromptStore creates an empty store.
func NewPromptStore() *PromptStore {
	return &PromptStore{entries: make(map[string]LoadedPrompts)}
}

// Get returns a copy of the prompts loaded for an operation.
func (s *PromptStore) Get(operation string) LoadedPrompts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[operation]
}

func (s *PromptStore) setSystem(operation, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[operation]
	e.System = content
	s.entries[operation] = e
}

func (s *PromptStore) setUser(operation, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[operation]
	e.User = content
	s.entries[operation] = e
}

// Count returns how many prompts are loaded.
func (s *PromptStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.System != "" {
			n++
		}
		if e.User != "" {
			n++
		}
	}
	return n
}

// ResolvePrompts returns the system and user prompts for an operation.
// File content wins over inline config; empty results mean the caller
// should use its built-in default.
func (c *Config) ResolvePrompts(operation string) (system, user string) {
	loaded := c.Prompts().Get(operation)
	opCfg := c.GetOperationConfig(operation)
	sys, usr := promptText(operation, opCfg.CustomPrompts)

	system, user = loaded.System, loaded.User
	if system == "" {
		system = sys
	}
	if user == "" {
		user = usr
	}
	return system, user
}

// promptText picks the inline prompt fields for an operation.
func promptText(operation string, p PromptConfig) (system, user string) {
	switch operation {
	case OperationAnalyze:
		return p.SystemPrompts.AnalyzeCV, p.UserPrompts.AnalyzeCV
	case OperationCompare:
		return p.SystemPrompts.CompareJob, p.UserPrompts.CompareJob
	case OperationEdit:
		return p.SystemPrompts.EditCV, p.UserPrompts.EditCV
	}
	return "", ""
}

// promptFiles picks the prompt file paths for an operation.
func promptFiles(operation string, p PromptConfig) (system, user string) {
	switch operation {
	case OperationAnalyze:
		return p.SystemPrompts.AnalyzeCVFile, p.UserPrompts.AnalyzeCVFile
	case OperationCompare:
		return p.SystemPrompts.CompareJobFile, p.UserPrompts.CompareJobFile
	case OperationEdit:
		return p.SystemPrompts.EditCVFile, p.UserPrompts.EditCVFile
	}
	return "", ""
}

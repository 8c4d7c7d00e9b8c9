package config

import (
	"fmt"
	"sync"

	"github.com/entrhq/forge-memory/pkg/logging"
)

const (
	// SectionIDMemory is the identifier for the memory settings section
	SectionIDMemory = "memory"

	DefaultContextTokenBudget = 2000
	DefaultTokenizerEncoding  = "cl100k_base"
	DefaultLogLevel           = "info"
)

// MemorySection holds settings for the memory store and its tooling.
type MemorySection struct {
	// Workspace is the agent workspace; the store lives in <workspace>/memory.
	Workspace          string
	ContextTokenBudget int
	TokenizerEncoding  string
	LogLevel           string
	mu                 sync.RWMutex
}

// NewMemorySection creates a memory section with default settings.
func NewMemorySection() *MemorySection {
	return &MemorySection{
		ContextTokenBudget: DefaultContextTokenBudget,
		TokenizerEncoding:  DefaultTokenizerEncoding,
		LogLevel:           DefaultLogLevel,
	}
}

func (s *MemorySection) ID() string    { return SectionIDMemory }
func (s *MemorySection) Title() string { return "Memory" }

func (s *MemorySection) Description() string {
	return "Where agent memory is stored and how much of it is rendered into prompts."
}

// Data returns the current configuration data.
func (s *MemorySection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"workspace":            s.Workspace,
		"context_token_budget": s.ContextTokenBudget,
		"tokenizer_encoding":   s.TokenizerEncoding,
		"log_level":            s.LogLevel,
	}
}

// SetData updates the configuration from the provided data. Numbers decoded
// from JSON arrive as float64.
func (s *MemorySection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if workspace, ok := data["workspace"].(string); ok {
		s.Workspace = workspace
	}
	switch budget := data["context_token_budget"].(type) {
	case float64:
		s.ContextTokenBudget = int(budget)
	case int:
		s.ContextTokenBudget = budget
	}
	if encoding, ok := data["tokenizer_encoding"].(string); ok && encoding != "" {
		s.TokenizerEncoding = encoding
	}
	if level, ok := data["log_level"].(string); ok && level != "" {
		s.LogLevel = level
	}
	return nil
}

// Validate checks the budget and log level.
func (s *MemorySection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ContextTokenBudget < 0 {
		return fmt.Errorf("context_token_budget must not be negative, got %d", s.ContextTokenBudget)
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *MemorySection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Workspace = ""
	s.ContextTokenBudget = DefaultContextTokenBudget
	s.TokenizerEncoding = DefaultTokenizerEncoding
	s.LogLevel = DefaultLogLevel
}

// GetWorkspace returns the configured workspace.
func (s *MemorySection) GetWorkspace() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Workspace
}

// GetContextTokenBudget returns the token budget for rendered memory context.
func (s *MemorySection) GetContextTokenBudget() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ContextTokenBudget
}

// GetTokenizerEncoding returns the tiktoken encoding name.
func (s *MemorySection) GetTokenizerEncoding() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.TokenizerEncoding
}

// GetLogLevel returns the configured log level.
func (s *MemorySection) GetLogLevel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LogLevel
}

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobal(t *testing.T) {
	t.Helper()
	globalMu.Lock()
	globalManager = nil
	globalMu.Unlock()
	t.Cleanup(func() {
		globalMu.Lock()
		globalManager = nil
		globalMu.Unlock()
	})
}

func TestMemorySection_Defaults(t *testing.T) {
	s := NewMemorySection()
	assert.Equal(t, SectionIDMemory, s.ID())
	assert.Equal(t, DefaultContextTokenBudget, s.GetContextTokenBudget())
	assert.Equal(t, DefaultTokenizerEncoding, s.GetTokenizerEncoding())
	assert.Equal(t, DefaultLogLevel, s.GetLogLevel())
	assert.Empty(t, s.GetWorkspace())
	assert.NoError(t, s.Validate())
}

func TestMemorySection_SetData(t *testing.T) {
	s := NewMemorySection()
	require.NoError(t, s.SetData(map[string]any{
		"workspace":            "/srv/agent",
		"context_token_budget": float64(800),
		"tokenizer_encoding":   "o200k_base",
		"log_level":            "debug",
		"unknown":              true,
	}))

	assert.Equal(t, "/srv/agent", s.GetWorkspace())
	assert.Equal(t, 800, s.GetContextTokenBudget())
	assert.Equal(t, "o200k_base", s.GetTokenizerEncoding())
	assert.Equal(t, "debug", s.GetLogLevel())

	require.NoError(t, s.SetData(map[string]any{"context_token_budget": 300, "tokenizer_encoding": ""}))
	assert.Equal(t, 300, s.GetContextTokenBudget())
	assert.Equal(t, "o200k_base", s.GetTokenizerEncoding(), "empty values keep the current setting")

	require.NoError(t, s.SetData(nil))

	s.Reset()
	assert.Equal(t, DefaultContextTokenBudget, s.GetContextTokenBudget())
	assert.Empty(t, s.GetWorkspace())
}

func TestMemorySection_Validate(t *testing.T) {
	s := NewMemorySection()
	s.ContextTokenBudget = -1
	assert.Error(t, s.Validate())

	s = NewMemorySection()
	s.LogLevel = "shouty"
	assert.Error(t, s.Validate())
}

func TestInitialize(t *testing.T) {
	resetGlobal(t)
	assert.False(t, IsInitialized())
	assert.Nil(t, GetMemory())

	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, Initialize(configPath))
	require.True(t, IsInitialized())

	mem := GetMemory()
	require.NotNil(t, mem)
	mem.Workspace = "/srv/agent"
	require.NoError(t, Global().SaveAll())

	resetGlobal(t)
	require.NoError(t, Initialize(configPath))
	assert.Equal(t, "/srv/agent", GetMemory().GetWorkspace())
}

func TestGlobal_PanicsBeforeInitialize(t *testing.T) {
	resetGlobal(t)
	assert.Panics(t, func() { Global() })
}

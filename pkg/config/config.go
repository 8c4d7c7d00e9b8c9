package config

import (
	"sync"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates the global configuration manager from the file at
// configPath (DefaultPath when empty). Call it once at startup.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	manager := NewManager(store)
	if err := manager.RegisterSection(NewMemorySection()); err != nil {
		return err
	}
	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}
	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetMemory returns the memory section from global config.
// Returns nil if config is not initialized.
func GetMemory() *MemorySection {
	if !IsInitialized() {
		return nil
	}

	section, ok := Global().GetSection(SectionIDMemory)
	if !ok {
		return nil
	}

	mem, ok := section.(*MemorySection)
	if !ok {
		return nil
	}
	return mem
}

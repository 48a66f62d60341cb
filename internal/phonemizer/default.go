package phonemizer

import (
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/phonemizer-service/internal/core"
)

var (
	defaultMu      sync.Mutex
	defaultManager *Manager
)

// Init creates the process-wide Manager. It fails if one already exists.
func Init(provider core.EngineProvider, opts Options, log *logger.Logger) (*Manager, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager != nil {
		return nil, ErrAlreadyInitialized
	}

	manager, err := NewManager(provider, opts, log)
	if err != nil {
		return nil, err
	}

	defaultManager = manager

	return manager, nil
}

// Default returns the process-wide Manager created by Init.
func Default() (*Manager, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager == nil {
		return nil, ErrNotInitialized
	}

	return defaultManager, nil
}

// ShutdownDefault shuts down the process-wide Manager and clears it so Init
// may be called again. It is a no-op when nothing was initialized.
func ShutdownDefault() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager == nil {
		return nil
	}

	err := defaultManager.Shutdown()
	defaultManager = nil

	return err
}

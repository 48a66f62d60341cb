package phonemizer

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineUnavailable indicates that the engine provider could not construct an engine.
	ErrEngineUnavailable = errors.New("phonemizer engine unavailable")
	// ErrShutdownInProgress indicates a call arrived after Shutdown.
	ErrShutdownInProgress = errors.New("phonemizer shutdown in progress")
	// ErrUnsupportedLanguage indicates that the engine provider does not know the language.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrEmptyText indicates that the input text is empty.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrInvalidThreshold indicates a negative recycle threshold.
	ErrInvalidThreshold = errors.New("recycle threshold must be non-negative")
	// ErrInvalidRecycleMode indicates an unknown recycle mode.
	ErrInvalidRecycleMode = errors.New("unknown recycle mode")
	// ErrNotInitialized is returned by Default before Init.
	ErrNotInitialized = errors.New("phonemizer not initialized")
	// ErrAlreadyInitialized is returned by Init when the process-wide manager exists.
	ErrAlreadyInitialized = errors.New("phonemizer already initialized")
)

// PhonemizationError reports a conversion failure for one input.
type PhonemizationError struct {
	Text     string
	Language string
	Err      error
}

func (e *PhonemizationError) Error() string {
	return fmt.Sprintf("failed to phonemize %q (language %s): %v", e.Text, e.Language, e.Err)
}

func (e *PhonemizationError) Unwrap() error {
	return e.Err
}

// Package core defines the interfaces shared by the phonemizer service components.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Engine is a live phonemization backend holding resources that must be
// released with Close. An Engine is used by one caller at a time.
type Engine interface {
	Convert(ctx context.Context, text string) (string, error)
	Close() error
}

// EngineProvider constructs fresh engines on demand. Construction is
// expensive and may acquire native resources.
//
// Resolve maps a requested language, including its aliases, to the canonical
// voice an engine is built for. Two languages with the same voice share an
// engine. CreateEngine receives the resolved voice.
type EngineProvider interface {
	CreateEngine(ctx context.Context, voice string) (Engine, error)
	Resolve(language string) (string, error)
}

// Phonemizer converts text into a phoneme sequence for a language.
type Phonemizer interface {
	Phonemize(ctx context.Context, text, language string) (string, error)
}

// Package phonemizer owns the single long-lived phonemization engine of the
// process and recycles it periodically to bound native resource growth.
//
// All state transitions (acquisition, delegation, counting and recycling)
// happen under one mutex, so an engine is never closed while a caller is
// still converting with it. Concurrent callers queue on the mutex.
package phonemizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/phonemizer-service/internal/core"
)

// DefaultRecycleThreshold is the number of requests an engine serves before it is recycled.
const DefaultRecycleThreshold = 50

// RecycleMode selects when the replacement engine is constructed.
type RecycleMode string

const (
	// RecycleLazy closes the engine once the threshold is reached and
	// constructs the replacement on the next call.
	RecycleLazy RecycleMode = "lazy"
	// RecycleEager closes and replaces the engine right after the call that
	// reached the threshold. A failed replacement leaves the manager empty
	// and the next call retries construction.
	RecycleEager RecycleMode = "eager"
)

// Options configures a Manager.
type Options struct {
	// RecycleThreshold is the request count that triggers a recycle.
	// Zero selects DefaultRecycleThreshold.
	RecycleThreshold int
	// RecycleMode defaults to RecycleLazy.
	RecycleMode RecycleMode
}

// Stats is a point-in-time view of the manager state.
type Stats struct {
	Open             bool        `json:"open"`
	// Language is the resolved voice of the open engine.
	Language         string      `json:"language,omitempty"`
	Counter          int         `json:"counter"`
	Threshold        int         `json:"threshold"`
	Mode             RecycleMode `json:"mode"`
	HandleRequests   int         `json:"handle_requests"`
	HandleAgeSeconds float64     `json:"handle_age_seconds"`
	EnginesCreated   int         `json:"engines_created"`
	Recycles         int         `json:"recycles"`
	ShuttingDown     bool        `json:"shutting_down"`
}

type engineHandle struct {
	engine    core.Engine
	voice     string
	createdAt time.Time
	requests  int
}

// Manager serializes access to one engine and recycles it after a
// configurable number of requests.
type Manager struct {
	mu        sync.Mutex
	provider  core.EngineProvider
	log       *logger.Logger
	threshold int
	mode      RecycleMode

	handle   *engineHandle
	counter  int
	created  int
	recycles int
	shutdown bool
}

// ShouldRecycle reports whether an engine that has served counter requests
// must be recycled. A zero threshold disables recycling.
func ShouldRecycle(counter, threshold int) bool {
	return threshold > 0 && counter >= threshold
}

// NewManager creates a Manager. No engine is constructed until the first call.
func NewManager(provider core.EngineProvider, opts Options, log *logger.Logger) (*Manager, error) {
	if opts.RecycleThreshold < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, opts.RecycleThreshold)
	}

	if opts.RecycleThreshold == 0 {
		opts.RecycleThreshold = DefaultRecycleThreshold
	}

	switch opts.RecycleMode {
	case "":
		opts.RecycleMode = RecycleLazy
	case RecycleLazy, RecycleEager:
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidRecycleMode, opts.RecycleMode)
	}

	return &Manager{
		provider:  provider,
		log:       log,
		threshold: opts.RecycleThreshold,
		mode:      opts.RecycleMode,
	}, nil
}

// Phonemize converts text to phonemes with the current engine, constructing
// or recycling the engine first when required. Failed conversions still count
// toward the recycle threshold.
func (m *Manager) Phonemize(ctx context.Context, text, language string) (string, error) {
	if text == "" {
		return "", ErrEmptyText
	}

	voice, err := m.provider.Resolve(language)
	if err != nil {
		if errors.Is(err, ErrUnsupportedLanguage) {
			return "", err
		}

		return "", fmt.Errorf("%w: '%s': %w", ErrUnsupportedLanguage, language, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		requestsTotal.WithLabelValues(outcomeRejected).Inc()

		return "", ErrShutdownInProgress
	}

	if m.handle != nil {
		switch {
		case m.handle.voice != voice:
			m.recycle(reasonLanguage)
		case ShouldRecycle(m.counter, m.threshold):
			m.recycle(reasonThreshold)
		}
	}

	if m.handle == nil {
		err = m.acquire(ctx, voice)
		if err != nil {
			requestsTotal.WithLabelValues(outcomeUnavailable).Inc()

			return "", err
		}
	}

	m.counter++
	m.handle.requests++

	phonemes, err := m.handle.engine.Convert(ctx, text)
	if err != nil {
		requestsTotal.WithLabelValues(outcomeFailed).Inc()
		m.log.Error("Phonemization failed: language=%s voice=%s handle_requests=%d %s: %v",
			language, voice, m.handle.requests, TakeProcessSnapshot(), err)
		m.recycleEagerly(ctx)

		return "", &PhonemizationError{Text: text, Language: language, Err: err}
	}

	requestsTotal.WithLabelValues(outcomeSuccess).Inc()
	m.recycleEagerly(ctx)

	return phonemes, nil
}

// Shutdown closes the open engine and rejects later calls. Calling it again
// is a no-op.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil
	}

	m.shutdown = true
	m.counter = 0

	if m.handle == nil {
		return nil
	}

	requests := m.handle.requests

	err := m.closeHandle()
	if err != nil {
		return fmt.Errorf("failed to close phonemizer engine on shutdown: %w", err)
	}

	m.log.Info("Phonemizer engine closed on shutdown after %d requests", requests)

	return nil
}

// Stats returns a snapshot of the manager state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		Counter:        m.counter,
		Threshold:      m.threshold,
		Mode:           m.mode,
		EnginesCreated: m.created,
		Recycles:       m.recycles,
		ShuttingDown:   m.shutdown,
	}

	if m.handle != nil {
		stats.Open = true
		stats.Language = m.handle.voice
		stats.HandleRequests = m.handle.requests
		stats.HandleAgeSeconds = time.Since(m.handle.createdAt).Seconds()
	}

	return stats
}

func (m *Manager) acquire(ctx context.Context, voice string) error {
	engine, err := m.provider.CreateEngine(ctx, voice)
	if err != nil {
		engineCreateFailuresTotal.Inc()
		m.log.Error("Failed to create phonemizer engine for voice %s: %v", voice, err)

		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	m.handle = &engineHandle{
		engine:    engine,
		voice:     voice,
		createdAt: time.Now(),
	}
	m.created++

	enginesCreatedTotal.Inc()
	engineOpen.Set(1)
	m.log.Info("Phonemizer engine created: voice=%s engines_created=%d", voice, m.created)

	return nil
}

// recycleEagerly replaces the engine right away in eager mode once the
// threshold is reached. A failed replacement is logged and retried lazily.
func (m *Manager) recycleEagerly(ctx context.Context) {
	if m.mode != RecycleEager || !ShouldRecycle(m.counter, m.threshold) {
		return
	}

	voice := m.handle.voice
	m.recycle(reasonThreshold)

	err := m.acquire(ctx, voice)
	if err != nil {
		m.log.Warn("Eager engine replacement failed, next call will retry: %v", err)
	}
}

// recycle closes the current engine and clears the counter. The handle is
// dropped even when Close fails, since it cannot be reused safely.
func (m *Manager) recycle(reason string) {
	handle := m.handle
	counter := m.counter

	err := m.closeHandle()
	if err != nil {
		m.log.Error("Failed to close phonemizer engine during recycle: %v", err)
	}

	m.counter = 0
	m.recycles++

	recyclesTotal.WithLabelValues(reason).Inc()
	engineRequestsAtRecycle.Observe(float64(handle.requests))
	m.log.Info("Phonemizer engine recycled: reason=%s counter=%d threshold=%d handle_requests=%d handle_age=%s voice=%s %s",
		reason, counter, m.threshold, handle.requests, time.Since(handle.createdAt).Round(time.Millisecond),
		handle.voice, TakeProcessSnapshot())
}

func (m *Manager) closeHandle() error {
	handle := m.handle
	m.handle = nil

	engineOpen.Set(0)

	err := handle.engine.Close()
	if err != nil {
		return fmt.Errorf("failed to close engine: %w", err)
	}

	return nil
}

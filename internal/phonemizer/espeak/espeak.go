// Package espeak provides a phonemization engine backed by the espeak-ng binary.
package espeak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/book-expert/phonemizer-service/internal/core"
	"github.com/book-expert/phonemizer-service/internal/phonemizer"
)

// DefaultBinary is the espeak executable looked up on PATH.
const DefaultBinary = "espeak-ng"

// Voices understood by the post-processing rules.
const (
	VoiceAmerican = "en-us"
	VoiceBritish  = "en-gb"
)

var (
	// ErrEngineClosed is returned by Convert after Close.
	ErrEngineClosed = errors.New("espeak engine is closed")
	// ErrBinaryNotFound indicates that the espeak binary is not installed.
	ErrBinaryNotFound = errors.New("espeak binary not found")
)

// languageCodes maps voice-pack language codes to espeak voices.
var languageCodes = map[string]string{
	"a": VoiceAmerican,
	"b": VoiceBritish,
}

// ResolveLanguage maps a language code ("a", "b") or an espeak voice name
// ("en-us", "en-gb") to an espeak voice.
func ResolveLanguage(code string) (string, error) {
	if voice, ok := languageCodes[code]; ok {
		return voice, nil
	}

	for _, voice := range languageCodes {
		if voice == code {
			return voice, nil
		}
	}

	return "", fmt.Errorf("%w: '%s'", phonemizer.ErrUnsupportedLanguage, code)
}

// Provider constructs espeak engines.
type Provider struct {
	binary string
}

// NewProvider creates a Provider for the given binary name or path.
func NewProvider(binary string) *Provider {
	if binary == "" {
		binary = DefaultBinary
	}

	return &Provider{binary: binary}
}

// Resolve returns the espeak voice for a language code or voice name.
func (p *Provider) Resolve(language string) (string, error) {
	return ResolveLanguage(language)
}

// Check verifies that the espeak binary runs.
func (p *Provider) Check(ctx context.Context) error {
	path, err := p.lookPath()
	if err != nil {
		return err
	}

	return runVersion(ctx, path)
}

// CreateEngine resolves and verifies the binary and returns an engine bound
// to the language's voice.
func (p *Provider) CreateEngine(ctx context.Context, language string) (core.Engine, error) {
	voice, err := ResolveLanguage(language)
	if err != nil {
		return nil, err
	}

	path, err := p.lookPath()
	if err != nil {
		return nil, err
	}

	err = runVersion(ctx, path)
	if err != nil {
		return nil, err
	}

	return &Engine{binary: path, voice: voice}, nil
}

func (p *Provider) lookPath() (string, error) {
	path, err := exec.LookPath(p.binary)
	if err != nil {
		return "", fmt.Errorf("%w: '%s': %w", ErrBinaryNotFound, p.binary, err)
	}

	return path, nil
}

func runVersion(ctx context.Context, path string) error {
	// #nosec G204 -- path comes from exec.LookPath on the configured binary
	output, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("espeak version check failed: %w - output: %s", err, string(output))
	}

	return nil
}

// Engine converts text to IPA by running espeak once per call.
type Engine struct {
	mu     sync.Mutex
	binary string
	voice  string
	closed bool
}

// Voice returns the espeak voice the engine was created for.
func (e *Engine) Voice() string {
	return e.voice
}

// Convert phonemizes text and applies the post-processing rules.
// Punctuation is kept: espeak drops it, so each run of text between marks
// is phonemized on its own and the marks are put back around the results.
func (e *Engine) Convert(ctx context.Context, text string) (string, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return "", ErrEngineClosed
	}

	phonemes, err := restorePunctuation(splitPunctuation(text), func(chunk string) (string, error) {
		return e.run(ctx, chunk)
	})
	if err != nil {
		return "", err
	}

	return PostProcess(phonemes, e.voice), nil
}

// run phonemizes one chunk without punctuation.
func (e *Engine) run(ctx context.Context, chunk string) (string, error) {
	// #nosec G204 -- binary was resolved at construction, text goes through stdin
	cmd := exec.CommandContext(ctx, e.binary, "-q", "--ipa", "-v", e.voice)
	cmd.Stdin = strings.NewReader(chunk)

	var (
		stdout bytes.Buffer
		stderr bytes.Buffer
	)

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return "", fmt.Errorf("espeak execution failed: %w - stderr: %s", err, stderr.String())
	}

	return joinLines(stdout.String()), nil
}

// Close marks the engine closed. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true

	return nil
}

// joinLines merges espeak's per-clause output lines into one sequence.
func joinLines(output string) string {
	var parts []string

	for line := range strings.SplitSeq(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}

	return strings.Join(parts, " ")
}

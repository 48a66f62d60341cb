package phonemizer_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/phonemizer-service/internal/core"
	"github.com/book-expert/phonemizer-service/internal/phonemizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errMockCreate  = errors.New("mock create error")
	errMockConvert = errors.New("mock convert error")
	errMockVoice   = errors.New("mock unknown voice")
)

// fakeEngine records use after close and overlapping conversions.
type fakeEngine struct {
	id       int
	language string
	provider *fakeProvider

	mu       sync.Mutex
	closed   bool
	inFlight int
	calls    int
}

func (e *fakeEngine) Convert(_ context.Context, text string) (string, error) {
	e.mu.Lock()
	if e.closed {
		e.provider.recordViolation(fmt.Sprintf("engine %d used after close", e.id))
	}

	e.inFlight++
	if e.inFlight > 1 {
		e.provider.recordViolation(fmt.Sprintf("engine %d used concurrently", e.id))
	}

	e.calls++
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()

	if strings.HasPrefix(text, "fail") {
		return "", errMockConvert
	}

	return fmt.Sprintf("%s:%d:%s", e.language, e.id, text), nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	inUse := e.inFlight > 0
	e.closed = true
	e.mu.Unlock()

	if inUse {
		e.provider.recordViolation(fmt.Sprintf("engine %d closed while in use", e.id))
	}

	e.provider.mu.Lock()
	defer e.provider.mu.Unlock()

	e.provider.open--
	e.provider.events = append(e.provider.events, fmt.Sprintf("close %d", e.id))

	return nil
}

// fakeProvider is an instrumented engine provider.
type fakeProvider struct {
	mu          sync.Mutex
	failCreates int
	unsupported map[string]bool
	aliases     map[string]string
	engines     []*fakeEngine
	open        int
	events      []string
	violations  []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		unsupported: map[string]bool{"xx": true},
		aliases:     map[string]string{"en-us": "a", "en-gb": "b"},
	}
}

func (p *fakeProvider) CreateEngine(_ context.Context, language string) (core.Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failCreates > 0 {
		p.failCreates--

		return nil, errMockCreate
	}

	if p.open > 0 {
		p.violations = append(p.violations, fmt.Sprintf("%d engine(s) still open at create", p.open))
	}

	p.open++
	engine := &fakeEngine{id: len(p.engines) + 1, language: language, provider: p}
	p.engines = append(p.engines, engine)
	p.events = append(p.events, fmt.Sprintf("create %d", engine.id))

	return engine, nil
}

func (p *fakeProvider) Resolve(language string) (string, error) {
	if p.unsupported[language] {
		return "", errMockVoice
	}

	if voice, ok := p.aliases[language]; ok {
		return voice, nil
	}

	return language, nil
}

func (p *fakeProvider) recordViolation(violation string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.violations = append(p.violations, violation)
}

func (p *fakeProvider) created() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.engines)
}

func (p *fakeProvider) snapshot() ([]string, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.events...), append([]string(nil), p.violations...)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "phonemizer-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

func newTestManager(t *testing.T, provider *fakeProvider, opts phonemizer.Options) *phonemizer.Manager {
	t.Helper()

	manager, err := phonemizer.NewManager(provider, opts, newTestLogger(t))
	require.NoError(t, err)

	return manager
}

func TestShouldRecycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		counter   int
		threshold int
		want      bool
	}{
		{name: "below threshold", counter: 2, threshold: 3, want: false},
		{name: "at threshold", counter: 3, threshold: 3, want: true},
		{name: "above threshold", counter: 4, threshold: 3, want: true},
		{name: "disabled", counter: 100, threshold: 0, want: false},
		{name: "fresh engine", counter: 0, threshold: 1, want: false},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, phonemizer.ShouldRecycle(testCase.counter, testCase.threshold))
		})
	}
}

func TestNewManager_Options(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	log := newTestLogger(t)

	_, err := phonemizer.NewManager(provider, phonemizer.Options{RecycleThreshold: -1}, log)
	require.ErrorIs(t, err, phonemizer.ErrInvalidThreshold)

	_, err = phonemizer.NewManager(provider, phonemizer.Options{RecycleMode: "sometimes"}, log)
	require.ErrorIs(t, err, phonemizer.ErrInvalidRecycleMode)

	manager, err := phonemizer.NewManager(provider, phonemizer.Options{}, log)
	require.NoError(t, err)

	stats := manager.Stats()
	assert.Equal(t, phonemizer.DefaultRecycleThreshold, stats.Threshold)
	assert.Equal(t, phonemizer.RecycleLazy, stats.Mode)
	assert.False(t, stats.Open)
	assert.Equal(t, 0, provider.created(), "no engine before the first call")
}

func TestPhonemize_BelowThresholdUsesOneEngine(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{RecycleThreshold: 10})

	for i := range 9 {
		out, err := manager.Phonemize(context.Background(), fmt.Sprintf("text %d", i), "a")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("a:1:text %d", i), out)
	}

	assert.Equal(t, 1, provider.created())

	stats := manager.Stats()
	assert.Equal(t, 9, stats.Counter)
	assert.Equal(t, 9, stats.HandleRequests)
	assert.Equal(t, 0, stats.Recycles)
}

func TestPhonemize_LazyRecycleAtThreshold(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{RecycleThreshold: 3})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		out, err := manager.Phonemize(ctx, "hello", "a")
		require.NoError(t, err)
		assert.Equal(t, "a:1:hello", out, "call %d should use engine A", i)
	}

	events, _ := provider.snapshot()
	assert.Equal(t, []string{"create 1"}, events, "lazy mode keeps engine A open until the next call")

	out, err := manager.Phonemize(ctx, "hello", "a")
	require.NoError(t, err)
	assert.Equal(t, "a:2:hello", out, "call 4 should use engine B")

	events, violations := provider.snapshot()
	assert.Equal(t, []string{"create 1", "close 1", "create 2"}, events)
	assert.Empty(t, violations)

	stats := manager.Stats()
	assert.Equal(t, 1, stats.Recycles)
	assert.Equal(t, 1, stats.Counter)
	assert.Equal(t, 2, stats.EnginesCreated)
}

func TestPhonemize_EagerRecycleAtThreshold(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{
		RecycleThreshold: 3,
		RecycleMode:      phonemizer.RecycleEager,
	})
	ctx := context.Background()

	for range 3 {
		_, err := manager.Phonemize(ctx, "hello", "a")
		require.NoError(t, err)
	}

	events, _ := provider.snapshot()
	assert.Equal(t, []string{"create 1", "close 1", "create 2"}, events,
		"eager mode replaces the engine right after the threshold call")

	stats := manager.Stats()
	assert.True(t, stats.Open)
	assert.Equal(t, 0, stats.Counter)

	out, err := manager.Phonemize(ctx, "hello", "a")
	require.NoError(t, err)
	assert.Equal(t, "a:2:hello", out)

	events, violations := provider.snapshot()
	assert.Len(t, events, 3, "call 4 must not recycle again")
	assert.Empty(t, violations)
}

func TestPhonemize_EagerReplacementFailureRetriesOnNextCall(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{
		RecycleThreshold: 1,
		RecycleMode:      phonemizer.RecycleEager,
	})
	ctx := context.Background()

	out, err := manager.Phonemize(ctx, "hello", "a")
	require.NoError(t, err, "the triggering call succeeds even if its replacement fails")
	assert.Equal(t, "a:1:hello", out)

	// Engine 2 is open; its eager replacement after the next call fails.
	provider.mu.Lock()
	provider.failCreates = 1
	provider.mu.Unlock()

	_, err = manager.Phonemize(ctx, "hello", "a")
	require.NoError(t, err, "engine 2 was already created eagerly")

	stats := manager.Stats()
	assert.False(t, stats.Open, "failed eager replacement leaves the manager empty")

	out, err = manager.Phonemize(ctx, "hello", "a")
	require.NoError(t, err)
	assert.Equal(t, "a:3:hello", out)

	_, violations := provider.snapshot()
	assert.Empty(t, violations)
}

func TestPhonemize_EngineUnavailableThenRecovers(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	provider.failCreates = 1
	manager := newTestManager(t, provider, phonemizer.Options{RecycleThreshold: 3})
	ctx := context.Background()

	_, err := manager.Phonemize(ctx, "hello", "a")
	require.ErrorIs(t, err, phonemizer.ErrEngineUnavailable)
	require.ErrorIs(t, err, errMockCreate)

	stats := manager.Stats()
	assert.False(t, stats.Open)
	assert.Equal(t, 0, stats.Counter)

	out, err := manager.Phonemize(ctx, "hello", "a")
	require.NoError(t, err)
	assert.Equal(t, "a:1:hello", out)
	assert.Equal(t, 1, provider.created(), "exactly one engine is opened after recovery")
}

func TestPhonemize_ConversionErrorCountsAndDoesNotPoison(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{RecycleThreshold: 2})
	ctx := context.Background()

	_, err := manager.Phonemize(ctx, "fail this", "a")
	require.Error(t, err)

	var phonemizationErr *phonemizer.PhonemizationError
	require.ErrorAs(t, err, &phonemizationErr)
	assert.Equal(t, "fail this", phonemizationErr.Text)
	assert.Equal(t, "a", phonemizationErr.Language)
	require.ErrorIs(t, err, errMockConvert)

	out, err := manager.Phonemize(ctx, "hello", "a")
	require.NoError(t, err)
	assert.Equal(t, "a:1:hello", out)

	out, err = manager.Phonemize(ctx, "hello", "a")
	require.NoError(t, err)
	assert.Equal(t, "a:2:hello", out, "the failed call counted toward the threshold")
}

func TestPhonemize_UnsupportedLanguageAndEmptyText(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{RecycleThreshold: 3})

	_, err := manager.Phonemize(context.Background(), "hello", "xx")
	require.ErrorIs(t, err, phonemizer.ErrUnsupportedLanguage)
	require.ErrorIs(t, err, errMockVoice)

	_, err = manager.Phonemize(context.Background(), "", "a")
	require.ErrorIs(t, err, phonemizer.ErrEmptyText)

	assert.Equal(t, 0, provider.created())
	assert.Equal(t, 0, manager.Stats().Counter)
}

func TestPhonemize_LanguageChangeRecycles(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{RecycleThreshold: 10})
	ctx := context.Background()

	_, err := manager.Phonemize(ctx, "hello", "a")
	require.NoError(t, err)

	out, err := manager.Phonemize(ctx, "hello", "b")
	require.NoError(t, err)
	assert.Equal(t, "b:2:hello", out)

	events, violations := provider.snapshot()
	assert.Equal(t, []string{"create 1", "close 1", "create 2"}, events)
	assert.Empty(t, violations)

	stats := manager.Stats()
	assert.Equal(t, "b", stats.Language)
	assert.Equal(t, 1, stats.Counter)
}

func TestPhonemize_LanguageAliasesShareEngine(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{RecycleThreshold: 10})
	ctx := context.Background()

	for _, language := range []string{"a", "en-us", "a", "en-us"} {
		out, err := manager.Phonemize(ctx, "hello", language)
		require.NoError(t, err)
		assert.Equal(t, "a:1:hello", out, "language %s", language)
	}

	events, violations := provider.snapshot()
	assert.Equal(t, []string{"create 1"}, events)
	assert.Empty(t, violations)

	stats := manager.Stats()
	assert.Equal(t, 0, stats.Recycles)
	assert.Equal(t, 1, stats.EnginesCreated)
	assert.Equal(t, 4, stats.Counter)
	assert.Equal(t, "a", stats.Language)
}

func TestShutdown_IdempotentAndRejectsCalls(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{RecycleThreshold: 3})

	_, err := manager.Phonemize(context.Background(), "hello", "a")
	require.NoError(t, err)

	require.NoError(t, manager.Shutdown())
	require.NoError(t, manager.Shutdown())

	events, _ := provider.snapshot()
	assert.Equal(t, []string{"create 1", "close 1"}, events)

	stats := manager.Stats()
	assert.False(t, stats.Open)
	assert.Equal(t, 0, stats.Counter)
	assert.True(t, stats.ShuttingDown)

	_, err = manager.Phonemize(context.Background(), "hello", "a")
	require.ErrorIs(t, err, phonemizer.ErrShutdownInProgress)
	assert.Equal(t, 1, provider.created())
}

func TestShutdown_WithoutEngine(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{})

	require.NoError(t, manager.Shutdown())
	require.NoError(t, manager.Shutdown())
	assert.Equal(t, 0, provider.created())
}

func TestPhonemize_ConcurrentCallersNeverShareClosedEngine(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	manager := newTestManager(t, provider, phonemizer.Options{RecycleThreshold: 5})

	const (
		workers = 8
		calls   = 25
	)

	var waitGroup sync.WaitGroup

	for worker := range workers {
		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			for call := range calls {
				text := "hello"
				if call%7 == 0 {
					text = "fail"
				}

				_, _ = manager.Phonemize(context.Background(), fmt.Sprintf("%s %d", text, worker), "a")
			}
		}()
	}

	waitGroup.Wait()

	_, violations := provider.snapshot()
	assert.Empty(t, violations)
	assert.Equal(t, workers*calls/5, provider.created())

	stats := manager.Stats()
	assert.Equal(t, workers*calls/5-1, stats.Recycles)
	assert.Equal(t, 5, stats.Counter)
}

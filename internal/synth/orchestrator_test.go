package synth_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/narration-service/internal/cache"
	"github.com/clipforge/narration-service/internal/core"
	"github.com/clipforge/narration-service/internal/provider"
	"github.com/clipforge/narration-service/internal/synth"
)

const scenarioText = "Hungary blocks EU sanctions."

var (
	errRateLimited  = errors.New("speech gateway error (403 Forbidden): rate limited (code: RL)")
	errBadRequest   = errors.New("speech gateway returned non-OK status: 400 Bad Request")
	errAlwaysBroken = errors.New("503 Service Unavailable")
)

// mockProvider is a scriptable core.Provider that records calls and detects
// overlapping in-flight synthesis.
type mockProvider struct {
	name       string
	configured bool
	// failWith is returned on every call when set; otherwise errs scripts
	// per-call outcomes, and calls beyond the script succeed.
	failWith error
	errs     []error
	// holdFor keeps the call in flight, to exercise the gate.
	holdFor time.Duration

	mu         sync.Mutex
	calls      int
	inFlight   int
	overlapped bool
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Configured() bool {
	return m.configured
}

func (m *mockProvider) Synthesize(_ context.Context, _, _, outputPath string) error {
	m.mu.Lock()

	callIndex := m.calls
	m.calls++
	m.inFlight++

	if m.inFlight > 1 {
		m.overlapped = true
	}

	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.holdFor > 0 {
		time.Sleep(m.holdFor)
	}

	if m.failWith != nil {
		return m.failWith
	}

	if callIndex < len(m.errs) && m.errs[callIndex] != nil {
		return m.errs[callIndex]
	}

	return os.WriteFile(
		outputPath,
		bytes.Repeat([]byte{0x42}, core.MinAudioFileBytes*2),
		0o600,
	)
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// testHarness bundles an orchestrator with its mocks and recorded backoffs.
type testHarness struct {
	orchestrator *synth.Orchestrator
	audioCache   *cache.Cache
	sleeps       *[]time.Duration
}

func newHarness(t *testing.T, providers []core.Provider) *testHarness {
	t.Helper()

	audioCache, err := cache.New(t.TempDir())
	require.NoError(t, err)

	testLogger, err := logger.New(t.TempDir(), "orchestrator-test.log")
	require.NoError(t, err)

	var sleeps []time.Duration

	var sleepsMu sync.Mutex

	orchestrator, err := synth.New(
		providers,
		synth.NewGate(0),
		audioCache,
		testLogger,
		synth.Options{
			MaxAttempts:    3,
			BackoffBase:    2 * time.Second,
			BackoffMax:     32 * time.Second,
			JitterMax:      0,
			AttemptTimeout: 5 * time.Second,
			OutputDir:      t.TempDir(),
			Sleep: func(_ context.Context, d time.Duration) error {
				sleepsMu.Lock()
				sleeps = append(sleeps, d)
				sleepsMu.Unlock()

				return nil
			},
		},
	)
	require.NoError(t, err)

	return &testHarness{
		orchestrator: orchestrator,
		audioCache:   audioCache,
		sleeps:       &sleeps,
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	testLogger, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	audioCache, err := cache.New(t.TempDir())
	require.NoError(t, err)

	_, err = synth.New(nil, synth.NewGate(0), audioCache, testLogger, synth.Options{})
	require.ErrorIs(t, err, synth.ErrNoProviders)

	providers := []core.Provider{&mockProvider{name: provider.NameEdge, configured: true}}

	_, err = synth.New(providers, nil, audioCache, testLogger, synth.Options{})
	require.ErrorIs(t, err, synth.ErrNilGate)

	_, err = synth.New(providers, synth.NewGate(0), nil, testLogger, synth.Options{})
	require.ErrorIs(t, err, synth.ErrNilCache)

	_, err = synth.New(providers, synth.NewGate(0), audioCache, nil, synth.Options{})
	require.ErrorIs(t, err, synth.ErrNilLogger)
}

// Scenario A: no cache hit, primary succeeds on the first attempt.
func TestSynthesize_PrimarySucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{name: provider.NameEdge, configured: true}
	harness := newHarness(t, []core.Provider{primary})

	result := harness.orchestrator.Synthesize(context.Background(), synth.Request{
		Text: scenarioText,
	})

	require.True(t, result.Success, "synthesis failed: %s", result.Message)
	assert.Equal(t, []string{provider.NameEdge}, result.AttemptedProviders)
	assert.Equal(t, 1, primary.callCount())
	assert.FileExists(t, result.AudioPath)

	// The audio must be cached at the deterministic path for this text.
	assert.FileExists(t, harness.audioCache.PathFor(scenarioText))
}

// Scenario B: empty input never reaches a provider.
func TestSynthesize_EmptyInput(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{name: provider.NameEdge, configured: true}
	harness := newHarness(t, []core.Provider{primary})

	result := harness.orchestrator.Synthesize(context.Background(), synth.Request{Text: ""})

	require.False(t, result.Success)
	assert.Equal(t, core.ErrKindInputValidation, result.ErrorKind)
	assert.Zero(t, primary.callCount())
	assert.Empty(t, result.AttemptedProviders)
}

// Scenario C: primary fails terminally, secondary is unconfigured and
// skipped (not counted as attempted), tertiary succeeds.
func TestSynthesize_SkipsUnconfiguredProvider(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{
		name:       provider.NameEdge,
		configured: true,
		failWith:   provider.ErrNoAudioReceived,
	}
	secondary := &mockProvider{name: provider.NameElevenLabs, configured: false}
	tertiary := &mockProvider{name: provider.NameGTTS, configured: true}

	harness := newHarness(t, []core.Provider{primary, secondary, tertiary})

	result := harness.orchestrator.Synthesize(context.Background(), synth.Request{
		Text: scenarioText,
	})

	require.True(t, result.Success, "synthesis failed: %s", result.Message)
	assert.Equal(
		t,
		[]string{provider.NameEdge, provider.NameGTTS},
		result.AttemptedProviders,
	)
	assert.Zero(t, secondary.callCount())
	assert.Equal(t, 1, tertiary.callCount())
}

func TestSynthesize_SecondCallHitsCache(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{name: provider.NameEdge, configured: true}
	harness := newHarness(t, []core.Provider{primary})

	first := harness.orchestrator.Synthesize(context.Background(), synth.Request{
		Text: scenarioText,
	})
	require.True(t, first.Success)
	require.Equal(t, 1, primary.callCount())

	second := harness.orchestrator.Synthesize(context.Background(), synth.Request{
		Text: scenarioText,
	})
	require.True(t, second.Success)

	// The cached result must be served with zero provider invocations.
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, primary.callCount())
	assert.FileExists(t, second.AudioPath)
}

func TestSynthesize_TerminalErrorFallsThroughImmediately(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{
		name:       provider.NameEdge,
		configured: true,
		failWith:   errBadRequest,
	}
	secondary := &mockProvider{name: provider.NameGTTS, configured: true}

	harness := newHarness(t, []core.Provider{primary, secondary})

	result := harness.orchestrator.Synthesize(context.Background(), synth.Request{
		Text: scenarioText,
	})

	require.True(t, result.Success)

	// Zero retries against the primary: exactly one call, no backoff.
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())
	assert.Empty(t, *harness.sleeps)
}

func TestSynthesize_RetryableErrorExhaustsAttempts(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{
		name:       provider.NameEdge,
		configured: true,
		failWith:   errAlwaysBroken,
	}
	secondary := &mockProvider{name: provider.NameGTTS, configured: true}

	harness := newHarness(t, []core.Provider{primary, secondary})

	result := harness.orchestrator.Synthesize(context.Background(), synth.Request{
		Text: scenarioText,
	})

	require.True(t, result.Success)
	assert.Equal(t, 3, primary.callCount())

	// Backoff is exponential and non-decreasing across attempts.
	sleeps := *harness.sleeps
	require.Len(t, sleeps, 2)
	assert.Equal(t, 2*time.Second, sleeps[0])
	assert.Equal(t, 4*time.Second, sleeps[1])
}

func TestSynthesize_RetryableThenRecovers(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{
		name:       provider.NameEdge,
		configured: true,
		errs:       []error{errRateLimited, nil},
	}

	harness := newHarness(t, []core.Provider{primary})

	result := harness.orchestrator.Synthesize(context.Background(), synth.Request{
		Text: scenarioText,
	})

	require.True(t, result.Success)
	assert.Equal(t, 2, primary.callCount())
	assert.Equal(t, []string{provider.NameEdge}, result.AttemptedProviders)
}

func TestSynthesize_AllProvidersExhausted(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{
		name:       provider.NameEdge,
		configured: true,
		failWith:   provider.ErrNoAudioReceived,
	}
	fallback := &mockProvider{
		name:       provider.NameGTTS,
		configured: true,
		failWith:   errBadRequest,
	}

	harness := newHarness(t, []core.Provider{primary, fallback})

	result := harness.orchestrator.Synthesize(context.Background(), synth.Request{
		Text: scenarioText,
	})

	require.False(t, result.Success)
	assert.Equal(t, core.ErrKindAllExhausted, result.ErrorKind)
	assert.Equal(
		t,
		[]string{provider.NameEdge, provider.NameGTTS},
		result.AttemptedProviders,
	)
	assert.Contains(t, result.Message, provider.NameEdge)
	assert.Contains(t, result.Message, provider.NameGTTS)
}

func TestSynthesize_ExplicitOutputPath(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{name: provider.NameEdge, configured: true}
	harness := newHarness(t, []core.Provider{primary})

	outputPath := filepath.Join(t.TempDir(), "narration", "voice.mp3")

	result := harness.orchestrator.Synthesize(context.Background(), synth.Request{
		Text:       scenarioText,
		OutputPath: outputPath,
	})

	require.True(t, result.Success, "synthesis failed: %s", result.Message)
	assert.Equal(t, outputPath, result.AudioPath)
	assert.FileExists(t, outputPath)

	// A second request for the same text with a different output path is
	// served from cache, copied to the requested location.
	secondPath := filepath.Join(t.TempDir(), "voice-copy.mp3")

	second := harness.orchestrator.Synthesize(context.Background(), synth.Request{
		Text:       scenarioText,
		OutputPath: secondPath,
	})

	require.True(t, second.Success)
	assert.True(t, second.CacheHit)
	assert.Equal(t, secondPath, second.AudioPath)
	assert.FileExists(t, secondPath)
	assert.Equal(t, 1, primary.callCount())
}

func TestSynthesize_PrimaryCallsNeverOverlap(t *testing.T) {
	t.Parallel()

	primary := &mockProvider{
		name:       provider.NameEdge,
		configured: true,
		holdFor:    30 * time.Millisecond,
	}

	harness := newHarness(t, []core.Provider{primary})

	var waitGroup sync.WaitGroup

	texts := []string{
		"First concurrent narration request.",
		"Second concurrent narration request.",
		"Third concurrent narration request.",
	}

	for _, requestText := range texts {
		waitGroup.Add(1)

		go func(input string) {
			defer waitGroup.Done()

			result := harness.orchestrator.Synthesize(context.Background(), synth.Request{
				Text: input,
			})
			assert.True(t, result.Success)
		}(requestText)
	}

	waitGroup.Wait()

	primary.mu.Lock()
	overlapped := primary.overlapped
	primary.mu.Unlock()

	assert.False(t, overlapped, "two in-flight calls reached the primary provider")
	assert.Equal(t, 3, primary.callCount())
}

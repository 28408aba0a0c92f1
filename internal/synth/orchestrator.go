// Package synth implements the speech-synthesis orchestrator: a chain of
// independently unreliable TTS providers behind a single call, with
// per-provider error classification, bounded exponential backoff,
// content-addressed caching, and process-wide serialization of the primary
// provider.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/clipforge/narration-service/internal/cache"
	"github.com/clipforge/narration-service/internal/core"
	"github.com/clipforge/narration-service/internal/text"
)

// Defaults for the retry/backoff controller.
const (
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = 2 * time.Second
	DefaultBackoffMax     = 32 * time.Second
	DefaultJitterMax      = 500 * time.Millisecond
	DefaultAttemptTimeout = 20 * time.Second

	audioFileExtension = ".mp3"
)

// Static errors.
var (
	ErrNoProviders = errors.New("at least one provider is required")
	ErrNilGate     = errors.New("primary provider gate is required")
	ErrNilCache    = errors.New("cache is required")
	ErrNilLogger   = errors.New("logger is required")
)

// Log formats.
const (
	logFmtCacheHit         = "Cache hit for key %s, no provider invoked"
	logFmtProviderSkipped  = "Provider %s is unconfigured, skipping"
	logFmtAttemptFailed    = "Provider %s attempt %d/%d failed (%s): %v"
	logFmtBackoff          = "Provider %s attempt %d backing off %s"
	logFmtProviderAbandon  = "Provider %s abandoned after %d attempt(s), falling through"
	logFmtSynthesized      = "Provider %s synthesized %s"
	logFmtCachePutFailed   = "Failed to cache synthesized audio: %v"
	logFmtCacheCopyFailed  = "Failed to copy cached audio to %s, re-synthesizing: %v"
	logFmtGateUnavailable  = "Primary provider gate not acquired: %v"
	msgEmptyAfterCleaning  = "text is empty or unsynthesizable after preprocessing"
	msgAllProvidersFailed  = "all providers failed or were unavailable: %s"
	msgRequestCancelled    = "synthesis request cancelled: %v"
	attemptSummarySep      = "; "
	attemptSummaryFmt      = "%s: %v"
	msgNoProviderAvailable = "no provider was available to attempt"
)

// Request is the input to a single synthesis call. It is transient and never
// persisted.
type Request struct {
	// Text is the raw narration text.
	Text string

	// OutputPath optionally pins the audio file location. When empty the
	// audio lands at the content-addressed default under the output
	// directory.
	OutputPath string

	// Voice optionally requests a specific voice for the primary provider.
	Voice string
}

// Options tunes the retry/backoff controller.
type Options struct {
	// MaxAttempts bounds same-provider retries for retryable failures.
	MaxAttempts int

	// BackoffBase is the first retry delay; subsequent delays double.
	BackoffBase time.Duration

	// BackoffMax caps the exponential delay.
	BackoffMax time.Duration

	// JitterMax bounds the random offset added to each delay to avoid
	// synchronized retry storms across concurrent requests.
	JitterMax time.Duration

	// AttemptTimeout bounds each individual provider call, so a hung
	// connection cannot hold the primary gate indefinitely. Distinct from
	// the retry backoff budget.
	AttemptTimeout time.Duration

	// OutputDir receives synthesized audio when a request does not pin its
	// own output path.
	OutputDir string

	// Sleep replaces the backoff sleep. Tests inject a recorder; nil means
	// a context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}

	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}

	if o.BackoffMax <= 0 {
		o.BackoffMax = DefaultBackoffMax
	}

	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}

	if o.OutputDir == "" {
		o.OutputDir = "output"
	}

	if o.Sleep == nil {
		o.Sleep = sleepContext
	}

	return o
}

// providerAttempt records one attempt against one provider. Ephemeral; it
// feeds logging and the final result message only.
type providerAttempt struct {
	provider       string
	attempt        int
	err            error
	classification Classification
	backoff        time.Duration
}

// Orchestrator is the speech-synthesis entry point. Its Synthesize method
// always returns a SynthesisResult and never panics across the boundary;
// provider failures drive the fallback state machine instead of propagating.
type Orchestrator struct {
	preprocessor *text.Preprocessor
	audioCache   *cache.Cache
	providers    []core.Provider
	gate         *Gate
	log          *logger.Logger
	opts         Options
}

// New creates an orchestrator over providers in priority order. The first
// provider is the primary: all calls into it are serialized through gate.
func New(
	providers []core.Provider,
	gate *Gate,
	audioCache *cache.Cache,
	log *logger.Logger,
	opts Options,
) (*Orchestrator, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	if gate == nil {
		return nil, ErrNilGate
	}

	if audioCache == nil {
		return nil, ErrNilCache
	}

	if log == nil {
		return nil, ErrNilLogger
	}

	return &Orchestrator{
		preprocessor: text.NewPreprocessor(),
		audioCache:   audioCache,
		providers:    providers,
		gate:         gate,
		log:          log,
		opts:         opts.withDefaults(),
	}, nil
}

// Synthesize converts narration text into a locally stored audio file,
// trying providers in priority order with caching, validation, and bounded
// retries.
func (o *Orchestrator) Synthesize(ctx context.Context, req Request) core.SynthesisResult {
	processed := o.preprocessor.Preprocess(req.Text)
	if processed == "" {
		return core.SynthesisResult{
			Success:   false,
			ErrorKind: core.ErrKindInputValidation,
			Message:   msgEmptyAfterCleaning,
		}
	}

	if result, hit := o.fromCache(processed, req.OutputPath); hit {
		return result
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(o.opts.OutputDir, cache.Key(processed)+audioFileExtension)
	}

	return o.runProviderChain(ctx, processed, req.Voice, outputPath)
}

// fromCache satisfies the request from a prior synthesis of identical text,
// if one exists. Cache problems are logged and reported as a miss; the cache
// must never affect correctness, only latency.
func (o *Orchestrator) fromCache(processed, requestedPath string) (core.SynthesisResult, bool) {
	cachedPath, hit := o.audioCache.Get(processed)
	if !hit {
		return core.SynthesisResult{}, false
	}

	audioPath := cachedPath

	if requestedPath != "" && requestedPath != cachedPath {
		copyErr := o.audioCache.CopyTo(processed, requestedPath)
		if copyErr != nil {
			o.log.Warn(logFmtCacheCopyFailed, requestedPath, copyErr)

			return core.SynthesisResult{}, false
		}

		audioPath = requestedPath
	}

	o.log.Info(logFmtCacheHit, cache.Key(processed))

	return core.SynthesisResult{
		Success:   true,
		AudioPath: audioPath,
		CacheHit:  true,
	}, true
}

// runProviderChain walks the provider priority order, retrying each provider
// per the classifier before falling through to the next.
func (o *Orchestrator) runProviderChain(
	ctx context.Context,
	processed, voice, outputPath string,
) core.SynthesisResult {
	var (
		attempted []string
		history   []providerAttempt
	)

	for index, prov := range o.providers {
		if !prov.Configured() {
			o.log.Info(logFmtProviderSkipped, prov.Name())

			continue
		}

		attempted = append(attempted, prov.Name())

		outcome, attempts := o.tryProvider(ctx, index == 0, prov, processed, voice, outputPath)
		history = append(history, attempts...)

		switch outcome {
		case outcomeSuccess:
			return o.finishSuccess(processed, outputPath, attempted)
		case outcomeCancelled:
			return core.SynthesisResult{
				Success:            false,
				ErrorKind:          core.ErrKindSystem,
				Message:            fmt.Sprintf(msgRequestCancelled, ctx.Err()),
				AttemptedProviders: attempted,
			}
		case outcomeExhausted:
			// Fall through to the next provider.
		}
	}

	return core.SynthesisResult{
		Success:            false,
		ErrorKind:          core.ErrKindAllExhausted,
		Message:            fmt.Sprintf(msgAllProvidersFailed, summarizeAttempts(history)),
		AttemptedProviders: attempted,
	}
}

// providerOutcome is the terminal state of one provider's attempt sequence.
type providerOutcome int

const (
	outcomeSuccess providerOutcome = iota
	outcomeExhausted
	outcomeCancelled
)

// tryProvider runs the bounded attempt loop against a single provider. For
// the primary provider the gate is held for the whole attempt sequence,
// backoff sleeps included: the loop's purpose is precisely to prevent two
// concurrent primary calls. It is released before any fallthrough.
func (o *Orchestrator) tryProvider(
	ctx context.Context,
	primary bool,
	prov core.Provider,
	processed, voice, outputPath string,
) (providerOutcome, []providerAttempt) {
	if primary {
		acquireErr := o.gate.Acquire(ctx)
		if acquireErr != nil {
			o.log.Warn(logFmtGateUnavailable, acquireErr)

			return outcomeCancelled, nil
		}

		defer o.gate.Release()
	}

	var history []providerAttempt

	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		attemptErr := o.attemptOnce(ctx, prov, processed, voice, outputPath)
		if attemptErr == nil {
			return outcomeSuccess, history
		}

		classification := Classify(attemptErr)

		record := providerAttempt{
			provider:       prov.Name(),
			attempt:        attempt,
			err:            attemptErr,
			classification: classification,
			backoff:        0,
		}

		o.log.Warn(
			logFmtAttemptFailed,
			prov.Name(),
			attempt,
			o.opts.MaxAttempts,
			classification,
			attemptErr,
		)

		if ctx.Err() != nil {
			history = append(history, record)

			return outcomeCancelled, history
		}

		if classification == Terminal || attempt == o.opts.MaxAttempts {
			history = append(history, record)

			break
		}

		record.backoff = o.backoffDelay(attempt)
		history = append(history, record)

		o.log.Info(logFmtBackoff, prov.Name(), attempt, record.backoff)

		sleepErr := o.opts.Sleep(ctx, record.backoff)
		if sleepErr != nil {
			return outcomeCancelled, history
		}
	}

	o.log.Warn(logFmtProviderAbandon, prov.Name(), len(history))

	return outcomeExhausted, history
}

// attemptOnce makes exactly one provider call under its own timeout.
func (o *Orchestrator) attemptOnce(
	ctx context.Context,
	prov core.Provider,
	processed, voice, outputPath string,
) error {
	attemptCtx, cancel := context.WithTimeout(ctx, o.opts.AttemptTimeout)
	defer cancel()

	return prov.Synthesize(attemptCtx, processed, voice, outputPath)
}

// finishSuccess caches the fresh audio and builds the success result. A
// cache write failure downgrades to a warning as long as the output file
// survived.
func (o *Orchestrator) finishSuccess(
	processed, outputPath string,
	attempted []string,
) core.SynthesisResult {
	o.log.Info(logFmtSynthesized, attempted[len(attempted)-1], outputPath)

	_, putErr := o.audioCache.Put(processed, outputPath)
	if putErr != nil {
		o.log.Warn(logFmtCachePutFailed, putErr)

		_, statErr := os.Stat(outputPath)
		if statErr != nil {
			return core.SynthesisResult{
				Success:            false,
				ErrorKind:          core.ErrKindSystem,
				Message:            fmt.Sprintf("audio file lost during cache write: %v", putErr),
				AttemptedProviders: attempted,
			}
		}
	}

	return core.SynthesisResult{
		Success:            true,
		AudioPath:          outputPath,
		AttemptedProviders: attempted,
	}
}

// backoffDelay computes the sleep before retry attempt+1: exponential in the
// attempt number with base two, capped, plus a small random jitter.
func (o *Orchestrator) backoffDelay(attempt int) time.Duration {
	delay := o.opts.BackoffBase << uint(attempt-1)
	if delay > o.opts.BackoffMax || delay <= 0 {
		delay = o.opts.BackoffMax
	}

	if o.opts.JitterMax > 0 {
		delay += time.Duration(rand.Int63n(int64(o.opts.JitterMax))) // #nosec G404 -- jitter, not security
	}

	return delay
}

func summarizeAttempts(history []providerAttempt) string {
	if len(history) == 0 {
		return msgNoProviderAvailable
	}

	lastByProvider := make(map[string]providerAttempt, len(history))
	order := make([]string, 0, len(history))

	for _, record := range history {
		if _, seen := lastByProvider[record.provider]; !seen {
			order = append(order, record.provider)
		}

		lastByProvider[record.provider] = record
	}

	parts := make([]string, 0, len(order))
	for _, name := range order {
		record := lastByProvider[name]
		parts = append(parts, fmt.Sprintf(attemptSummaryFmt, name, record.err))
	}

	return strings.Join(parts, attemptSummarySep)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

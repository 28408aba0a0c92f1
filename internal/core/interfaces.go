// Package core defines the core business logic and interfaces for the
// narration service.
package core

import "context"

// MinAudioFileBytes is the floor below which an audio file is treated as
// corrupt or truncated. Provider adapters and the cache both apply it.
const MinAudioFileBytes = 1024

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Provider defines the interface for a single speech-synthesis backend.
//
// Synthesize must write a playable audio file to outputPath on success and
// must not leave a partial file behind on failure. Implementations validate
// their own output (file exists, size above MinAudioFileBytes) before
// reporting success. The voice parameter is a hint; backends without voice
// parameterization ignore it.
type Provider interface {
	// Name returns the stable identifier used in attempt records and logs.
	Name() string

	// Configured reports whether the provider can be used at all. An
	// unconfigured provider is skipped by the orchestrator without counting
	// as a failed attempt.
	Configured() bool

	Synthesize(ctx context.Context, text, voice, outputPath string) error
}

// ErrorKind classifies the terminal outcome of a synthesis request.
type ErrorKind string

// Terminal error kinds surfaced in a SynthesisResult.
const (
	ErrKindInputValidation   ErrorKind = "INPUT_VALIDATION_ERROR"
	ErrKindProviderTransient ErrorKind = "PROVIDER_TRANSIENT_ERROR"
	ErrKindProviderTerminal  ErrorKind = "PROVIDER_TERMINAL_ERROR"
	ErrKindAllExhausted      ErrorKind = "ALL_PROVIDERS_EXHAUSTED"
	ErrKindSystem            ErrorKind = "SYSTEM_ERROR"
)

// SynthesisResult is the orchestrator's public output contract. Callers
// branch on Success; on failure they must not proceed to video rendering.
type SynthesisResult struct {
	Success            bool      `json:"success"`
	AudioPath          string    `json:"audio_path,omitempty"`
	CacheHit           bool      `json:"cache_hit,omitempty"`
	ErrorKind          ErrorKind `json:"error_kind,omitempty"`
	Message            string    `json:"message,omitempty"`
	AttemptedProviders []string  `json:"attempted_providers,omitempty"`
}

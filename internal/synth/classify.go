package synth

import (
	"errors"
	"strings"

	"github.com/clipforge/narration-service/internal/provider"
)

// Classification is the retry decision for a single provider failure.
type Classification int

const (
	// Retryable failures are transient; the same provider is worth another
	// attempt after backoff.
	Retryable Classification = iota

	// Terminal failures cannot be fixed by retrying; the orchestrator
	// falls through to the next provider immediately.
	Terminal
)

// String returns the classification label used in logs.
func (c Classification) String() string {
	if c == Terminal {
		return "terminal"
	}

	return "retryable"
}

// Failure substrings observed from the providers. Matching is deterministic
// over the error's string representation, lowercased.
var (
	terminalMarkers = []string{
		"no audio",
		"400",
		"404",
		"encoding error",
		"invalid utf",
		"unicode",
	}

	retryableMarkers = []string{
		"403",
		"503",
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"temporarily unavailable",
	}
)

// Classify decides whether a provider failure warrants a same-provider retry
// or an immediate fallthrough.
//
// Rate limiting (403), temporary unavailability (503), and connection
// timeouts/resets are transient. Empty-result errors, malformed requests
// (400/404), and text encoding failures are not: retrying a malformed
// request cannot fix it, and "no audio received" correlates with bad voice
// parameters or text content rather than transience.
//
// Unknown errors default to retryable: one wasted retry is cheaper than
// abandoning a provider that would have succeeded.
func Classify(err error) Classification {
	if err == nil {
		return Retryable
	}

	if errors.Is(err, provider.ErrNoAudioReceived) ||
		errors.Is(err, provider.ErrAudioFileTooSmall) {
		return Terminal
	}

	message := strings.ToLower(err.Error())

	for _, marker := range terminalMarkers {
		if strings.Contains(message, marker) {
			return Terminal
		}
	}

	for _, marker := range retryableMarkers {
		if strings.Contains(message, marker) {
			return Retryable
		}
	}

	return Retryable
}

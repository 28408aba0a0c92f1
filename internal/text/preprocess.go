// Package text provides narration text preprocessing for the synthesis
// pipeline.
//
// Several downstream providers reject non-ASCII input or silently return no
// audio for overly long requests, so all caller-supplied text is normalized
// here before it is hashed or handed to any provider.
package text

import (
	"regexp"
	"strings"
)

const (
	// MaxLength is the hard upper bound on processed text, in characters.
	MaxLength = 1000

	// boundaryWindowFraction is the fraction of the truncation window, at
	// its tail, within which truncation may backtrack to a space instead of
	// splitting a word.
	boundaryWindowFraction = 0.2

	asciiLimit = 128
	spaceChar  = ' '
)

const whitespaceRegexPattern = `[ \t\r\n\f\v]+`

// Preprocessor normalizes raw narration text into a safe, bounded, hashable
// form.
type Preprocessor struct {
	whitespacePattern *regexp.Regexp
	maxLength         int
}

// NewPreprocessor creates a preprocessor with compiled patterns and the
// default length bound.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		maxLength:         MaxLength,
	}
}

// NewPreprocessorWithLimit creates a preprocessor with a custom length bound.
// A non-positive limit falls back to MaxLength.
func NewPreprocessorWithLimit(maxLength int) *Preprocessor {
	preprocessor := NewPreprocessor()
	if maxLength > 0 {
		preprocessor.maxLength = maxLength
	}

	return preprocessor
}

// Preprocess converts arbitrary text into processed text: ASCII-safe,
// single-spaced, and at most the configured maximum length. An empty return
// value signals "not synthesizable" and the caller must abort before
// attempting synthesis.
//
// Preprocess is pure and idempotent; it never fails.
func (p *Preprocessor) Preprocess(raw string) string {
	cleaned := strings.TrimSpace(raw)

	cleaned = p.stripNonASCII(cleaned)

	cleaned = p.collapseWhitespace(cleaned)

	cleaned = p.truncateAtBoundary(cleaned)

	return strings.TrimSpace(cleaned)
}

// stripNonASCII removes every rune with a codepoint at or above 128. Emoji
// and non-ASCII scripts are dropped outright; surrounding whitespace is left
// for collapseWhitespace to normalize.
func (p *Preprocessor) stripNonASCII(input string) string {
	var builder strings.Builder

	builder.Grow(len(input))

	for _, char := range input {
		if char < asciiLimit {
			builder.WriteRune(char)
		}
	}

	return builder.String()
}

// collapseWhitespace folds runs of spaces, tabs, and newlines into single
// spaces.
func (p *Preprocessor) collapseWhitespace(input string) string {
	return p.whitespacePattern.ReplaceAllString(input, " ")
}

// truncateAtBoundary enforces the maximum length. When a space exists within
// the last 20% of the truncation window, the cut lands on that space so no
// word is split; otherwise the text is hard-truncated at the limit.
func (p *Preprocessor) truncateAtBoundary(input string) string {
	if len(input) <= p.maxLength {
		return input
	}

	truncated := input[:p.maxLength]

	boundaryStart := p.maxLength - int(float64(p.maxLength)*boundaryWindowFraction)

	lastSpace := strings.LastIndexByte(truncated, spaceChar)
	if lastSpace >= boundaryStart {
		return truncated[:lastSpace]
	}

	return truncated
}

// Package provider implements the speech-synthesis backend adapters.
//
// Every adapter wraps exactly one external backend behind the core.Provider
// contract: write a playable audio file to the requested path on success,
// leave nothing behind on failure. The adapters are attempted by the
// orchestrator in a fixed priority order: edge (platform streaming TTS),
// elevenlabs (commercial voice API), gtts (free web TTS), espeak (offline
// synthesizer).
package provider

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipforge/narration-service/internal/core"
)

// Provider names, in priority order.
const (
	NameEdge       = "edge"
	NameElevenLabs = "elevenlabs"
	NameGTTS       = "gtts"
	NameEspeak     = "espeak"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

const audioTempPattern = "synth-*.tmp"

// Static errors.
var (
	ErrTextEmpty       = errors.New("text cannot be empty")
	ErrOutputPathEmpty = errors.New("output path cannot be empty")

	// ErrNoAudioReceived indicates the backend answered without usable
	// audio. Empirically correlated with bad voice parameters or text
	// content, not transience, so it is classified terminal.
	ErrNoAudioReceived = errors.New("no audio received")

	// ErrAudioFileTooSmall indicates the backend produced a file at or
	// below the trivial-audio floor.
	ErrAudioFileTooSmall = errors.New("audio file below minimum size")
)

func validateInputs(text, outputPath string) error {
	if text == "" {
		return ErrTextEmpty
	}

	if outputPath == "" {
		return ErrOutputPathEmpty
	}

	return nil
}

// writeAudioFile writes audio bytes to outputPath via a temp file and an
// atomic rename, validating the payload size first. A failed write never
// leaves a partial file at outputPath.
func writeAudioFile(outputPath string, data []byte) error {
	if int64(len(data)) <= core.MinAudioFileBytes {
		return fmt.Errorf("%w: got %d bytes", ErrAudioFileTooSmall, len(data))
	}

	outputDir := filepath.Dir(outputPath)

	mkdirErr := os.MkdirAll(outputDir, dirPermissions)
	if mkdirErr != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, mkdirErr)
	}

	tempFile, tempErr := os.CreateTemp(outputDir, audioTempPattern)
	if tempErr != nil {
		return fmt.Errorf("failed to create temp audio file: %w", tempErr)
	}

	tempPath := tempFile.Name()

	_, writeErr := tempFile.Write(data)
	closeErr := tempFile.Close()

	if writeErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to write audio data: %w", writeErr)
	}

	if closeErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to close audio file: %w", closeErr)
	}

	renameErr := os.Rename(tempPath, outputPath)
	if renameErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to move audio file into place: %w", renameErr)
	}

	return nil
}

// validateAudioFile confirms a written file exists and exceeds the
// trivial-audio floor, removing it when it does not.
func validateAudioFile(path string) error {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return fmt.Errorf("%w: %w", ErrNoAudioReceived, statErr)
	}

	if info.Size() <= core.MinAudioFileBytes {
		_ = os.Remove(path)

		return fmt.Errorf("%w: got %d bytes", ErrAudioFileTooSmall, info.Size())
	}

	return nil
}

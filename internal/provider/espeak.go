package provider

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Offline synthesizer defaults.
const (
	defaultEspeakCommand = "espeak-ng"
	defaultEspeakVoice   = "en-us"
	espeakTempPattern    = "espeak-*.wav"
)

// Espeak is the last-resort provider: an offline synthesizer invoked as a
// local process. Lowest quality, no network dependency; the
// guaranteed-to-eventually-succeed floor whenever the binary is installed.
type Espeak struct {
	command string
	voice   string
}

// NewEspeak creates the offline synthesizer provider. Empty command or voice
// fall back to defaults.
func NewEspeak(command, voice string) *Espeak {
	if command == "" {
		command = defaultEspeakCommand
	}

	if voice == "" {
		voice = defaultEspeakVoice
	}

	return &Espeak{
		command: command,
		voice:   voice,
	}
}

// Name implements core.Provider.
func (e *Espeak) Name() string {
	return NameEspeak
}

// Configured implements core.Provider: the synthesizer binary must be on
// PATH.
func (e *Espeak) Configured() bool {
	_, lookErr := exec.LookPath(e.command)

	return lookErr == nil
}

// Synthesize runs the offline synthesizer, writing to a temp file first so a
// killed process never leaves a partial file at outputPath. The voice hint is
// ignored: the offline engine has its own voice catalog, configured once.
func (e *Espeak) Synthesize(ctx context.Context, text, _, outputPath string) error {
	inputErr := validateInputs(text, outputPath)
	if inputErr != nil {
		return inputErr
	}

	outputDir := filepath.Dir(outputPath)

	mkdirErr := os.MkdirAll(outputDir, dirPermissions)
	if mkdirErr != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, mkdirErr)
	}

	tempFile, tempErr := os.CreateTemp(outputDir, espeakTempPattern)
	if tempErr != nil {
		return fmt.Errorf("failed to create temp file for synthesizer output: %w", tempErr)
	}

	tempPath := tempFile.Name()

	closeErr := tempFile.Close()
	if closeErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	args := []string{
		"-v", e.voice,
		"-w", tempPath,
		text,
	}

	// #nosec G204 -- command comes from validated service configuration
	cmd := exec.CommandContext(ctx, e.command, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf(
			"offline synthesizer failed: %w - output: %s",
			runErr,
			string(output),
		)
	}

	validateErr := validateAudioFile(tempPath)
	if validateErr != nil {
		_ = os.Remove(tempPath)

		return validateErr
	}

	renameErr := os.Rename(tempPath, outputPath)
	if renameErr != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to move audio file into place: %w", renameErr)
	}

	return nil
}

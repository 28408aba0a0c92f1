// Package config provides the configuration structure for the
// narration-service.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                       string `toml:"url"`
	NarrationRequestedSubject string `toml:"narration_requested_subject"`
	NarrationReadySubject     string `toml:"narration_ready_subject"`
	MediaObjectStoreBucket    string `toml:"media_object_store_bucket"`
}

// TTSConfig holds the orchestrator and primary-provider configuration.
type TTSConfig struct {
	SpeechGatewayURL     string `toml:"speech_gateway_url"`
	PrimaryVoice         string `toml:"primary_voice"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	MaxAttempts          int    `toml:"max_attempts"`
	BackoffBaseSeconds   int    `toml:"backoff_base_seconds"`
	BackoffMaxSeconds    int    `toml:"backoff_max_seconds"`
	MinRequestIntervalMS int    `toml:"min_request_interval_ms"`
}

// Timeout returns the per-call provider timeout.
func (t TTSConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// BackoffBase returns the first retry delay.
func (t TTSConfig) BackoffBase() time.Duration {
	return time.Duration(t.BackoffBaseSeconds) * time.Second
}

// BackoffMax returns the retry delay cap.
func (t TTSConfig) BackoffMax() time.Duration {
	return time.Duration(t.BackoffMaxSeconds) * time.Second
}

// MinRequestInterval returns the primary-provider throttle interval.
func (t TTSConfig) MinRequestInterval() time.Duration {
	return time.Duration(t.MinRequestIntervalMS) * time.Millisecond
}

// ElevenLabsConfig holds the commercial voice API configuration. The API key
// is read from the environment variable named by APIKeyEnv; an absent key
// leaves the provider unconfigured and skipped, never failed.
type ElevenLabsConfig struct {
	APIURL    string `toml:"api_url"`
	APIKeyEnv string `toml:"api_key_env"`
	VoiceID   string `toml:"voice_id"`
	ModelID   string `toml:"model_id"`
}

// APIKey resolves the API key from the configured environment variable.
func (e ElevenLabsConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return os.Getenv("ELEVENLABS_API_KEY")
	}

	return os.Getenv(e.APIKeyEnv)
}

// GTTSConfig holds the free web TTS configuration.
type GTTSConfig struct {
	Endpoint string `toml:"endpoint"`
	Language string `toml:"language"`
}

// OfflineConfig holds the offline synthesizer configuration.
type OfflineConfig struct {
	Command string `toml:"command"`
	Voice   string `toml:"voice"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	OutputDir   string `toml:"output_dir"`
	CacheDir    string `toml:"cache_dir"`
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS       NATSConfig       `toml:"nats"`
	TTS        TTSConfig        `toml:"tts"`
	ElevenLabs ElevenLabsConfig `toml:"elevenlabs"`
	GTTS       GTTSConfig       `toml:"gtts"`
	Offline    OfflineConfig    `toml:"offline"`
	Paths      PathsConfig      `toml:"paths"`
}

// Load loads the configuration for the narration-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}

package provider

import (
	"time"

	"github.com/clipforge/narration-service/internal/core"
)

// ChainConfig collects the settings for the full provider chain.
type ChainConfig struct {
	// Edge.
	GatewayURL   string
	PrimaryVoice string

	// ElevenLabs.
	ElevenLabsAPIURL  string
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	// GTTS.
	GTTSEndpoint string
	GTTSLanguage string

	// Espeak.
	OfflineCommand string
	OfflineVoice   string

	// Timeout applies to each individual provider call.
	Timeout time.Duration
}

// NewChain builds the provider chain in its fixed priority order: edge,
// elevenlabs, gtts, espeak. The order is an explicit contract, not a
// dispatch on provider names.
func NewChain(cfg ChainConfig) []core.Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	return []core.Provider{
		NewEdge(cfg.GatewayURL, cfg.PrimaryVoice, cfg.Timeout),
		NewElevenLabs(
			cfg.ElevenLabsAPIURL,
			cfg.ElevenLabsAPIKey,
			cfg.ElevenLabsVoiceID,
			cfg.ElevenLabsModelID,
			cfg.Timeout,
		),
		NewGTTS(cfg.GTTSEndpoint, cfg.GTTSLanguage, cfg.Timeout),
		NewEspeak(cfg.OfflineCommand, cfg.OfflineVoice),
	}
}

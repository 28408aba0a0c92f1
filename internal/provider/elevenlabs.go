package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ElevenLabs API defaults.
const (
	defaultElevenLabsURL     = "https://api.elevenlabs.io/v1/text-to-speech"
	defaultElevenLabsVoiceID = "21m00Tcm4TlvDq8ikWAM"
	defaultElevenLabsModel   = "eleven_monolingual_v1"
	defaultStability         = 0.5
	defaultSimilarityBoost   = 0.75
	headerAPIKey             = "xi-api-key"
)

// ElevenLabs is the secondary provider: a commercial voice API requiring an
// API key. When the key is absent the provider reports unconfigured and the
// orchestrator skips it without counting a failed attempt.
type ElevenLabs struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	voiceID    string
	modelID    string
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// NewElevenLabs creates the commercial voice API provider. An empty apiKey
// leaves the provider unconfigured; empty apiURL, voiceID, or modelID fall
// back to defaults.
func NewElevenLabs(apiURL, apiKey, voiceID, modelID string, timeout time.Duration) *ElevenLabs {
	if apiURL == "" {
		apiURL = defaultElevenLabsURL
	}

	if voiceID == "" {
		voiceID = defaultElevenLabsVoiceID
	}

	if modelID == "" {
		modelID = defaultElevenLabsModel
	}

	return &ElevenLabs{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		apiKey:     apiKey,
		voiceID:    voiceID,
		modelID:    modelID,
	}
}

// Name implements core.Provider.
func (e *ElevenLabs) Name() string {
	return NameElevenLabs
}

// Configured implements core.Provider.
func (e *ElevenLabs) Configured() bool {
	return e.apiKey != ""
}

// Synthesize requests speech from the ElevenLabs API and writes the audio to
// outputPath. The voice hint is ignored: ElevenLabs voices are account-level
// voice ids, configured once, not the neural voice names the primary uses.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, _, outputPath string) error {
	inputErr := validateInputs(text, outputPath)
	if inputErr != nil {
		return inputErr
	}

	requestBody, marshalErr := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: e.modelID,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       defaultStability,
			SimilarityBoost: defaultSimilarityBoost,
		},
	})
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal ElevenLabs request: %w", marshalErr)
	}

	httpReq, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.apiURL+"/"+e.voiceID,
		bytes.NewBuffer(requestBody),
	)
	if reqErr != nil {
		return fmt.Errorf("failed to create ElevenLabs request: %w", reqErr)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG)
	httpReq.Header.Set(headerAPIKey, e.apiKey)

	resp, doErr := e.httpClient.Do(httpReq)
	if doErr != nil {
		return fmt.Errorf("failed to reach ElevenLabs API: %w", doErr)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return fmt.Errorf(
			"ElevenLabs API returned non-OK status: %s, body: %s",
			resp.Status,
			string(body),
		)
	}

	audioData, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("failed to read audio data: %w", readErr)
	}

	if len(audioData) == 0 {
		return ErrNoAudioReceived
	}

	return writeAudioFile(outputPath, audioData)
}

package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Free web TTS endpoint defaults.
const (
	defaultGTTSEndpoint = "https://translate.google.com/translate_tts"
	defaultGTTSLanguage = "en"
	gttsClientParam     = "tw-ob"
)

// GTTS is the tertiary provider: a free web TTS endpoint with no key
// requirement and lower audio quality. Independent REST calls, tolerant of
// concurrency, not gated.
type GTTS struct {
	httpClient *http.Client
	endpoint   string
	language   string
}

// NewGTTS creates the free web TTS provider. Empty endpoint or language fall
// back to defaults.
func NewGTTS(endpoint, language string, timeout time.Duration) *GTTS {
	if endpoint == "" {
		endpoint = defaultGTTSEndpoint
	}

	if language == "" {
		language = defaultGTTSLanguage
	}

	return &GTTS{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		language:   language,
	}
}

// Name implements core.Provider.
func (g *GTTS) Name() string {
	return NameGTTS
}

// Configured implements core.Provider. No key is required, so the provider
// is always configured.
func (g *GTTS) Configured() bool {
	return true
}

// Synthesize fetches speech audio from the web TTS endpoint and writes it to
// outputPath. The voice hint is ignored: the endpoint only parameterizes
// language.
func (g *GTTS) Synthesize(ctx context.Context, text, _, outputPath string) error {
	inputErr := validateInputs(text, outputPath)
	if inputErr != nil {
		return inputErr
	}

	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", gttsClientParam)
	query.Set("tl", g.language)
	query.Set("q", text)

	httpReq, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		g.endpoint+"?"+query.Encode(),
		http.NoBody,
	)
	if reqErr != nil {
		return fmt.Errorf("failed to create web TTS request: %w", reqErr)
	}

	resp, doErr := g.httpClient.Do(httpReq)
	if doErr != nil {
		return fmt.Errorf("failed to reach web TTS endpoint: %w", doErr)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("web TTS endpoint returned non-OK status: %s", resp.Status)
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

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

// Speech gateway API endpoints.
const (
	apiEdgeSpeech = "/v1/speech"
	apiEdgeHealth = "/health"
)

// HTTP headers and content types.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
)

// Default prosody parameters: slightly slower than neutral for clarity.
const (
	defaultRate  = "-10%"
	defaultPitch = "+0Hz"
)

// Edge is the primary provider: a client for the streaming-TTS speech
// gateway. It is the fastest and most natural backend but rejects or
// degrades under concurrent connections, so the orchestrator serializes
// calls into it through the primary-provider gate.
type Edge struct {
	httpClient   *http.Client
	baseURL      string
	primaryVoice string
}

// edgeRequest is the JSON payload for a speech generation request.
type edgeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Rate  string `json:"rate"`
	Pitch string `json:"pitch"`
}

// edgeErrorResponse is the structured error body returned by the gateway.
type edgeErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewEdge creates the streaming-TTS provider. The baseURL should include the
// protocol and port; the timeout applies to every HTTP request made by this
// provider, independently of the orchestrator's backoff budget.
func NewEdge(baseURL, primaryVoice string, timeout time.Duration) *Edge {
	if primaryVoice == "" {
		primaryVoice = DefaultPrimaryVoice
	}

	return &Edge{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		primaryVoice: primaryVoice,
	}
}

// Name implements core.Provider.
func (e *Edge) Name() string {
	return NameEdge
}

// Configured implements core.Provider. The gateway URL is required.
func (e *Edge) Configured() bool {
	return e.baseURL != ""
}

// Synthesize requests speech from the gateway and writes the audio to
// outputPath. The requested voice is validated against the allow-list first,
// because an invalid voice identifier makes the gateway return no audio, a
// failure mode that is terminal, not transient.
func (e *Edge) Synthesize(ctx context.Context, text, voice, outputPath string) error {
	inputErr := validateInputs(text, outputPath)
	if inputErr != nil {
		return inputErr
	}

	audioData, genErr := e.generate(ctx, text, BestVoice(voice, e.primaryVoice))
	if genErr != nil {
		return genErr
	}

	return writeAudioFile(outputPath, audioData)
}

func (e *Edge) generate(ctx context.Context, text, voice string) ([]byte, error) {
	requestBody, marshalErr := json.Marshal(edgeRequest{
		Text:  text,
		Voice: voice,
		Rate:  defaultRate,
		Pitch: defaultPitch,
	})
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal speech request: %w", marshalErr)
	}

	httpReq, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.baseURL+apiEdgeSpeech,
		bytes.NewBuffer(requestBody),
	)
	if reqErr != nil {
		return nil, fmt.Errorf("failed to create speech request: %w", reqErr)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG)

	resp, doErr := e.httpClient.Do(httpReq)
	if doErr != nil {
		return nil, fmt.Errorf(
			"failed to reach speech gateway at %s: %w",
			e.baseURL,
			doErr,
		)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, e.parseErrorResponse(resp)
	}

	audioData, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", readErr)
	}

	if len(audioData) == 0 {
		return nil, ErrNoAudioReceived
	}

	return audioData, nil
}

// parseErrorResponse decodes a structured gateway error, falling back to the
// raw body so diagnostics are never lost. The HTTP status is embedded in the
// message for the error classifier.
func (e *Edge) parseErrorResponse(resp *http.Response) error {
	var errorResp edgeErrorResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&errorResp)
	if decodeErr == nil && errorResp.Detail != "" {
		return fmt.Errorf(
			"speech gateway error (%s): %s (code: %s)",
			resp.Status,
			errorResp.Detail,
			errorResp.ErrorCode,
		)
	}

	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(
		"speech gateway returned non-OK status: %s, body: %s",
		resp.Status,
		string(body),
	)
}

// HealthCheck verifies the speech gateway is reachable and reporting
// healthy. Used by the CLI to fail fast before processing.
func (e *Edge) HealthCheck(ctx context.Context) error {
	req, reqErr := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		e.baseURL+apiEdgeHealth,
		http.NoBody,
	)
	if reqErr != nil {
		return fmt.Errorf("failed to create health check request: %w", reqErr)
	}

	resp, doErr := e.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("health check failed for gateway at %s: %w", e.baseURL, doErr)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

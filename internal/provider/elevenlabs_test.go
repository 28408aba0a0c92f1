package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/narration-service/internal/provider"
)

func TestElevenLabs_Configured(t *testing.T) {
	t.Parallel()

	withKey := provider.NewElevenLabs("", "secret-key", "", "", testTimeout)
	assert.True(t, withKey.Configured())

	withoutKey := provider.NewElevenLabs("", "", "", "", testTimeout)
	assert.False(t, withoutKey.Configured())
}

func TestElevenLabs_Synthesize_Success(t *testing.T) {
	t.Parallel()

	var (
		capturedKey  string
		capturedPath string
		capturedBody struct {
			Text          string `json:"text"`
			ModelID       string `json:"model_id"`
			VoiceSettings struct {
				Stability       float64 `json:"stability"`
				SimilarityBoost float64 `json:"similarity_boost"`
			} `json:"voice_settings"`
		}
	)

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedKey = r.Header.Get("xi-api-key")
			capturedPath = r.URL.Path

			require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))

			_, _ = w.Write(audioPayload())
		}),
	)
	defer server.Close()

	elevenLabs := provider.NewElevenLabs(
		server.URL,
		"secret-key",
		"voice-123",
		"eleven_monolingual_v1",
		testTimeout,
	)

	outputPath := filepath.Join(t.TempDir(), "speech.mp3")

	err := elevenLabs.Synthesize(context.Background(), "Hello world", "", outputPath)
	require.NoError(t, err)

	assert.FileExists(t, outputPath)
	assert.Equal(t, "secret-key", capturedKey)
	assert.True(t, strings.HasSuffix(capturedPath, "/voice-123"))
	assert.Equal(t, "Hello world", capturedBody.Text)
	assert.Equal(t, "eleven_monolingual_v1", capturedBody.ModelID)
	assert.InDelta(t, 0.5, capturedBody.VoiceSettings.Stability, 0.001)
	assert.InDelta(t, 0.75, capturedBody.VoiceSettings.SimilarityBoost, 0.001)
}

func TestElevenLabs_Synthesize_NonOKStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
		}),
	)
	defer server.Close()

	elevenLabs := provider.NewElevenLabs(server.URL, "bad-key", "", "", testTimeout)

	err := elevenLabs.Synthesize(
		context.Background(),
		"Hello",
		"",
		filepath.Join(t.TempDir(), "speech.mp3"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}

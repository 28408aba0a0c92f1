package provider_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/narration-service/internal/core"
	"github.com/clipforge/narration-service/internal/provider"
)

const testTimeout = 5 * time.Second

func audioPayload() []byte {
	return bytes.Repeat([]byte{0x42}, core.MinAudioFileBytes*2)
}

func TestEdge_Configured(t *testing.T) {
	t.Parallel()

	assert.True(t, provider.NewEdge("http://localhost:8000", "", testTimeout).Configured())
	assert.False(t, provider.NewEdge("", "", testTimeout).Configured())
}

func TestEdge_Synthesize_Success(t *testing.T) {
	t.Parallel()

	var captured struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
		Rate  string `json:"rate"`
		Pitch string `json:"pitch"`
	}

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/speech", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write(audioPayload())
		}),
	)
	defer server.Close()

	edge := provider.NewEdge(server.URL, "en-US-AriaNeural", testTimeout)
	outputPath := filepath.Join(t.TempDir(), "speech.mp3")

	err := edge.Synthesize(context.Background(), "Hello world", "", outputPath)
	require.NoError(t, err)

	assert.FileExists(t, outputPath)
	assert.Equal(t, "Hello world", captured.Text)
	assert.Equal(t, "en-US-AriaNeural", captured.Voice)
	assert.NotEmpty(t, captured.Rate)
}

func TestEdge_Synthesize_RequestedVoiceOverridesPrimary(t *testing.T) {
	t.Parallel()

	var requestedVoice string

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Voice string `json:"voice"`
			}

			_ = json.NewDecoder(r.Body).Decode(&body)
			requestedVoice = body.Voice

			_, _ = w.Write(audioPayload())
		}),
	)
	defer server.Close()

	edge := provider.NewEdge(server.URL, "en-US-AriaNeural", testTimeout)
	outputPath := filepath.Join(t.TempDir(), "speech.mp3")

	err := edge.Synthesize(context.Background(), "Hello", "hi-IN-SwaraNeural", outputPath)
	require.NoError(t, err)

	assert.Equal(t, "hi-IN-SwaraNeural", requestedVoice)
}

func TestEdge_Synthesize_StructuredErrorIncludesStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"detail":"rate limited","error_code":"RL"}`))
		}),
	)
	defer server.Close()

	edge := provider.NewEdge(server.URL, "", testTimeout)

	err := edge.Synthesize(
		context.Background(),
		"Hello",
		"",
		filepath.Join(t.TempDir(), "speech.mp3"),
	)
	require.Error(t, err)

	// The status line must survive into the message for error classification.
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestEdge_Synthesize_PlainErrorBodyPreserved(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("malformed request"))
		}),
	)
	defer server.Close()

	edge := provider.NewEdge(server.URL, "", testTimeout)

	err := edge.Synthesize(
		context.Background(),
		"Hello",
		"",
		filepath.Join(t.TempDir(), "speech.mp3"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "malformed request")
}

func TestEdge_Synthesize_EmptyBodyIsNoAudio(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)
	defer server.Close()

	edge := provider.NewEdge(server.URL, "", testTimeout)

	err := edge.Synthesize(
		context.Background(),
		"Hello",
		"",
		filepath.Join(t.TempDir(), "speech.mp3"),
	)
	require.ErrorIs(t, err, provider.ErrNoAudioReceived)
}

func TestEdge_Synthesize_TinyAudioRejectedAndRemoved(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("too small"))
		}),
	)
	defer server.Close()

	edge := provider.NewEdge(server.URL, "", testTimeout)
	outputPath := filepath.Join(t.TempDir(), "speech.mp3")

	err := edge.Synthesize(context.Background(), "Hello", "", outputPath)
	require.ErrorIs(t, err, provider.ErrAudioFileTooSmall)
	assert.NoFileExists(t, outputPath)
}

func TestEdge_Synthesize_ValidatesInputs(t *testing.T) {
	t.Parallel()

	edge := provider.NewEdge("http://localhost:8000", "", testTimeout)

	err := edge.Synthesize(context.Background(), "", "", "out.mp3")
	require.ErrorIs(t, err, provider.ErrTextEmpty)

	err = edge.Synthesize(context.Background(), "Hello", "", "")
	require.ErrorIs(t, err, provider.ErrOutputPathEmpty)
}

func TestEdge_HealthCheck(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}),
	)
	defer healthy.Close()

	require.NoError(
		t,
		provider.NewEdge(healthy.URL, "", testTimeout).HealthCheck(context.Background()),
	)

	unhealthy := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}),
	)
	defer unhealthy.Close()

	err := provider.NewEdge(unhealthy.URL, "", testTimeout).HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestEdge_Synthesize_CreatesOutputDirectory(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(audioPayload())
		}),
	)
	defer server.Close()

	edge := provider.NewEdge(server.URL, "", testTimeout)
	outputPath := filepath.Join(t.TempDir(), "nested", "dir", "speech.mp3")

	err := edge.Synthesize(context.Background(), "Hello", "", outputPath)
	require.NoError(t, err)

	info, statErr := os.Stat(outputPath)
	require.NoError(t, statErr)
	assert.Greater(t, info.Size(), int64(core.MinAudioFileBytes))
}

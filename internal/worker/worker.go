// Package worker provides a NATS worker that processes narration jobs.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/clipforge/narration-service/internal/core"
	"github.com/clipforge/narration-service/internal/events"
	"github.com/clipforge/narration-service/internal/synth"
)

const handleMessageTimeout = 120 * time.Second

const audioKeyExtension = ".mp3"

// Synthesizer is the orchestrator-shaped dependency, abstracted so tests can
// observe and script synthesis outcomes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synth.Request) core.SynthesisResult
}

// NatsWorker listens for narration jobs on a NATS subject and processes
// them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	synthesizer    Synthesizer
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	synthesizer Synthesizer,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		synthesizer:    synthesizer,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages until ctx is
// cancelled.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := w.parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse narration request: %v", err)

		return
	}

	reply := w.processNarrationJob(ctx, event)

	publishErr := w.publishReply(msg, reply)
	if publishErr != nil {
		w.log.Error(
			"Failed to publish reply for workflow %s: %v",
			event.Header.WorkflowID,
			publishErr,
		)
	}
}

// processNarrationJob downloads the script text, synthesizes narration, and
// uploads the audio. Failures are absorbed into the reply event: the caller
// must see success=false rather than silence, so it never renders video
// without narration.
func (w *NatsWorker) processNarrationJob(
	ctx context.Context,
	event *events.NarrationRequestedEvent,
) *events.NarrationReadyEvent {
	reply := &events.NarrationReadyEvent{
		Header:             event.Header,
		Success:            false,
		AudioKey:           "",
		ErrorKind:          "",
		Message:            "",
		AttemptedProviders: nil,
	}

	textData, downloadErr := w.store.Download(ctx, event.TextKey)
	if downloadErr != nil {
		w.log.Error(
			"Failed to download text for key '%s': %v",
			event.TextKey,
			downloadErr,
		)

		reply.ErrorKind = string(core.ErrKindSystem)
		reply.Message = downloadErr.Error()

		return reply
	}

	result := w.synthesizer.Synthesize(ctx, synth.Request{
		Text:       string(textData),
		OutputPath: "",
		Voice:      event.Voice,
	})

	reply.AttemptedProviders = result.AttemptedProviders

	if !result.Success {
		w.log.Error(
			"Synthesis failed for workflow %s: %s (%s)",
			event.Header.WorkflowID,
			result.Message,
			result.ErrorKind,
		)

		reply.ErrorKind = string(result.ErrorKind)
		reply.Message = result.Message

		return reply
	}

	audioKey, uploadErr := w.uploadAudio(ctx, result.AudioPath)
	if uploadErr != nil {
		w.log.Error(
			"Failed to upload audio for workflow %s: %v",
			event.Header.WorkflowID,
			uploadErr,
		)

		reply.ErrorKind = string(core.ErrKindSystem)
		reply.Message = uploadErr.Error()

		return reply
	}

	reply.Success = true
	reply.AudioKey = audioKey

	return reply
}

func (w *NatsWorker) uploadAudio(ctx context.Context, audioPath string) (string, error) {
	audioData, readErr := os.ReadFile(audioPath) // #nosec G304 -- path produced by the orchestrator
	if readErr != nil {
		return "", fmt.Errorf("failed to read synthesized audio '%s': %w", audioPath, readErr)
	}

	audioKey := uuid.NewString() + audioKeyExtension

	uploadErr := w.store.Upload(ctx, audioKey, audioData)
	if uploadErr != nil {
		return "", fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, uploadErr)
	}

	return audioKey, nil
}

func (w *NatsWorker) publishReply(msg *nats.Msg, reply *events.NarrationReadyEvent) error {
	replyData, marshalErr := json.Marshal(reply)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal reply event: %w", marshalErr)
	}

	respondErr := msg.Respond(replyData)
	if respondErr != nil {
		return fmt.Errorf("failed to publish reply event: %w", respondErr)
	}

	return nil
}

func (w *NatsWorker) parseEvent(msg *nats.Msg) (*events.NarrationRequestedEvent, error) {
	var event events.NarrationRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}

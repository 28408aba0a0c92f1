// Package events defines the narration pipeline's event contract: the
// messages exchanged over NATS between the script source, this service, and
// the video compositor.
package events

import "time"

// EventHeader carries tracing identity for every pipeline event.
type EventHeader struct {
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	EventID    string    `json:"event_id"`
}

// NarrationRequestedEvent asks the service to synthesize narration for a
// script already uploaded to the object store under TextKey.
type NarrationRequestedEvent struct {
	Header  EventHeader `json:"header"`
	TextKey string      `json:"text_key"`
	Voice   string      `json:"voice,omitempty"`
}

// NarrationReadyEvent is the reply. On success AudioKey names the
// synthesized audio in the object store. On failure the structured error is
// carried as-is so the caller can refuse to render video with missing
// narration.
type NarrationReadyEvent struct {
	Header             EventHeader `json:"header"`
	Success            bool        `json:"success"`
	AudioKey           string      `json:"audio_key,omitempty"`
	ErrorKind          string      `json:"error_kind,omitempty"`
	Message            string      `json:"message,omitempty"`
	AttemptedProviders []string    `json:"attempted_providers,omitempty"`
}

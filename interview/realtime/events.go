package realtime

// Server event types consumed by the session controller.
const (
	EventConversationCreated   = "conversation.created"
	EventSessionUpdated        = "session.updated"
	EventOutputAudioDelta      = "response.output_audio.delta"
	EventOutputTranscriptDelta = "response.output_audio_transcript.delta"
	EventResponseDone          = "response.done"
	EventSpeechStarted         = "input_audio_buffer.speech_started"
	EventItemAdded             = "conversation.item.added"
	EventError                 = "error"
)

// Content part types inside conversation items.
const (
	ContentInputAudio = "input_audio"
	ContentInputText  = "input_text"
)

// ServerEvent is one inbound message from the realtime voice API.
// Only the fields this application consumes are modeled.
type ServerEvent struct {
	EventID string            `json:"event_id,omitempty"`
	Type    string            `json:"type"`
	Delta   string            `json:"delta,omitempty"`
	Item    *ConversationItem `json:"item,omitempty"`
	Error   *APIError         `json:"error,omitempty"`
}

// ConversationItem is an item added to the remote conversation. Name,
// CallID and Arguments are populated for function_call items.
type ConversationItem struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Role      string        `json:"role"`
	Content   []ContentPart `json:"content"`
	Name      string        `json:"name,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
}

// ContentPart is one content block of a conversation item.
type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// APIError is the payload of a protocol-level error event.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Event Builders
// ─────────────────────────────────────────────────────────────────────────────

// SessionConfig describes the one-shot session configuration handshake.
type SessionConfig struct {
	Instructions string
	Voice        string
	SampleRate   int
}

// EventSessionUpdate creates a session.update event carrying the system
// prompt, voice, raw PCM audio format at the mic's sample rate, and
// server-side turn detection.
func EventSessionUpdate(cfg SessionConfig) map[string]interface{} {
	pcm := map[string]interface{}{
		"format": map[string]interface{}{
			"type": "audio/pcm",
			"rate": cfg.SampleRate,
		},
	}
	return map[string]interface{}{
		"type": "session.update",
		"session": map[string]interface{}{
			"instructions": cfg.Instructions,
			"voice":        cfg.Voice,
			"audio": map[string]interface{}{
				"input":  pcm,
				"output": pcm,
			},
			"turn_detection": map[string]interface{}{
				"type": "server_vad",
			},
		},
	}
}

// EventInputAudioBufferAppend creates an input_audio_buffer.append event.
func EventInputAudioBufferAppend(audioBase64 string) map[string]interface{} {
	return map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": audioBase64,
	}
}

// EventInputAudioBufferCommit creates an input_audio_buffer.commit event.
func EventInputAudioBufferCommit() map[string]interface{} {
	return map[string]interface{}{
		"type": "input_audio_buffer.commit",
	}
}

// EventConversationItemCreate creates a conversation.item.create event
// carrying one user text message.
func EventConversationItemCreate(text string) map[string]interface{} {
	return map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type": "message",
			"role": "user",
			"content": []map[string]interface{}{
				{
					"type": "input_text",
					"text": text,
				},
			},
		},
	}
}

// EventFunctionCallOutput creates a conversation.item.create event
// carrying the output of a completed function call.
func EventFunctionCallOutput(callID, output string) map[string]interface{} {
	return map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	}
}

// EventResponseCreate creates a response.create event.
func EventResponseCreate() map[string]interface{} {
	return map[string]interface{}{
		"type": "response.create",
	}
}

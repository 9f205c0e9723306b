package realtime

import (
	"encoding/json"
	"testing"
)

func TestServerEvent_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want func(t *testing.T, ev ServerEvent)
	}{
		{
			name: "audio delta",
			raw:  `{"type":"response.output_audio.delta","delta":"AAEC"}`,
			want: func(t *testing.T, ev ServerEvent) {
				if ev.Type != EventOutputAudioDelta {
					t.Errorf("Type = %q", ev.Type)
				}
				if ev.Delta != "AAEC" {
					t.Errorf("Delta = %q", ev.Delta)
				}
			},
		},
		{
			name: "item added with transcript",
			raw: `{"type":"conversation.item.added","item":{"id":"item_1","type":"message","role":"user",` +
				`"content":[{"type":"input_audio","transcript":"reverse a linked list"}]}}`,
			want: func(t *testing.T, ev ServerEvent) {
				if ev.Item == nil {
					t.Fatal("Item = nil")
				}
				if ev.Item.ID != "item_1" || ev.Item.Role != "user" {
					t.Errorf("Item = %+v", ev.Item)
				}
				if len(ev.Item.Content) != 1 {
					t.Fatalf("Content len = %d", len(ev.Item.Content))
				}
				part := ev.Item.Content[0]
				if part.Type != ContentInputAudio || part.Transcript != "reverse a linked list" {
					t.Errorf("part = %+v", part)
				}
			},
		},
		{
			name: "error event",
			raw:  `{"type":"error","error":{"type":"invalid_request_error","code":"bad","message":"boom"}}`,
			want: func(t *testing.T, ev ServerEvent) {
				if ev.Error == nil {
					t.Fatal("Error = nil")
				}
				if ev.Error.Message != "boom" {
					t.Errorf("Message = %q", ev.Error.Message)
				}
			},
		},
		{
			name: "unknown fields ignored",
			raw:  `{"type":"session.updated","session":{"voice":"marin"}}`,
			want: func(t *testing.T, ev ServerEvent) {
				if ev.Type != EventSessionUpdated {
					t.Errorf("Type = %q", ev.Type)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev ServerEvent
			if err := json.Unmarshal([]byte(tt.raw), &ev); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			tt.want(t, ev)
		})
	}
}

func TestEventSessionUpdate_Shape(t *testing.T) {
	ev := EventSessionUpdate(SessionConfig{
		Instructions: "interview the candidate",
		Voice:        "marin",
		SampleRate:   24000,
	})

	if ev["type"] != "session.update" {
		t.Errorf("type = %v", ev["type"])
	}
	session := ev["session"].(map[string]interface{})
	if session["instructions"] != "interview the candidate" {
		t.Errorf("instructions = %v", session["instructions"])
	}
	if session["voice"] != "marin" {
		t.Errorf("voice = %v", session["voice"])
	}
	audio := session["audio"].(map[string]interface{})
	for _, dir := range []string{"input", "output"} {
		format := audio[dir].(map[string]interface{})["format"].(map[string]interface{})
		if format["rate"] != 24000 {
			t.Errorf("%s rate = %v, want 24000", dir, format["rate"])
		}
	}
	td := session["turn_detection"].(map[string]interface{})
	if td["type"] != "server_vad" {
		t.Errorf("turn_detection type = %v", td["type"])
	}
}

func TestEventConversationItemCreate_Shape(t *testing.T) {
	ev := EventConversationItemCreate("hello")
	item := ev["item"].(map[string]interface{})
	if item["role"] != "user" || item["type"] != "message" {
		t.Errorf("item = %v", item)
	}
	content := item["content"].([]map[string]interface{})
	if content[0]["type"] != "input_text" || content[0]["text"] != "hello" {
		t.Errorf("content = %v", content)
	}
}

func TestEventBuilders_RoundTrip(t *testing.T) {
	// The append/commit/response builders must serialize cleanly.
	for _, ev := range []map[string]interface{}{
		EventInputAudioBufferAppend("QUJD"),
		EventInputAudioBufferCommit(),
		EventResponseCreate(),
	} {
		if _, err := json.Marshal(ev); err != nil {
			t.Errorf("marshal %v: %v", ev["type"], err)
		}
	}
}

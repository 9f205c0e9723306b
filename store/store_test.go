package store

import (
	"errors"
	"testing"
	"time"

	"github.com/voxprep/voxprep/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleOutput(id string) types.InterviewOutput {
	return types.InterviewOutput{
		ID:        id,
		StartedAt: time.Now().Add(-10 * time.Minute).Truncate(time.Second),
		EndedAt:   time.Now().Truncate(time.Second),
		Input: types.InterviewInput{
			Question:  "Reverse a linked list.",
			HelpLevel: "hints",
		},
		SystemPrompt: "You are a technical interviewer...",
		Transcript: []types.TranscriptEntry{
			{Role: types.RoleUser, Content: "I'd use two pointers", Code: "def solve(): pass"},
			{Role: types.RoleAssistant, Content: "Sounds good", Code: "def solve(): pass"},
		},
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := openTestStore(t)

	want := sampleOutput("iv-1")
	if err := s.SaveInterview(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetInterview("iv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != want.ID || got.Input.Question != want.Input.Question {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.Transcript) != 2 {
		t.Errorf("transcript len = %d, want 2", len(got.Transcript))
	}
	if got.Transcript[0].Code != "def solve(): pass" {
		t.Errorf("code snapshot lost: %+v", got.Transcript[0])
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetInterview("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_Overwrite(t *testing.T) {
	s := openTestStore(t)

	first := sampleOutput("iv-1")
	if err := s.SaveInterview(first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := first
	second.SystemPrompt = "updated"
	if err := s.SaveInterview(second); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetInterview("iv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SystemPrompt != "updated" {
		t.Errorf("SystemPrompt = %q, want updated", got.SystemPrompt)
	}
}

func TestStore_List(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"iv-1", "iv-2", "iv-3"} {
		if err := s.SaveInterview(sampleOutput(id)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	outs, err := s.ListInterviews()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(outs) != 3 {
		t.Errorf("list len = %d, want 3", len(outs))
	}
}

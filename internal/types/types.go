// Package types provides shared type definitions for the application.
package types

import "time"

// Role identifies who (or what) produced a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleCode      Role = "code"
	RoleTool      Role = "tool"
	RoleTestRun   Role = "test_run"
)

// TranscriptEntry is one entry in the interview transcript. Every entry
// except a raw code-sent entry carries a snapshot of the full code buffer
// as of the moment the entry was written.
type TranscriptEntry struct {
	Timestamp   time.Time    `json:"timestamp"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Code        string       `json:"code,omitempty"`
	ToolName    string       `json:"toolName,omitempty"`
	TestResults []TestResult `json:"testResults,omitempty"`
}

// TestCase is a visible test case shown to the candidate.
type TestCase struct {
	ID       string `json:"id"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// TestResult is the outcome of running one test case, enriched with the
// case's input and expected value for display.
type TestResult struct {
	ID       string `json:"id"`
	Input    string `json:"input,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
}

// InterviewInput is the immutable setup for one interview session.
// Solution is the reference solution and must never be disclosed to the
// candidate by the interviewing agent.
type InterviewInput struct {
	Instruction   string     `json:"instruction"`
	Question      string     `json:"question"`
	CandidateName string     `json:"candidateName"`
	HelpLevel     string     `json:"helpLevel"` // "none", "hints", "guided"
	Solution      string     `json:"solution"`
	FunctionName  string     `json:"functionName"`
	TestCases     []TestCase `json:"testCases"`
}

// InterviewOutput is the completed-session record handed to the archive
// and the scoring service.
type InterviewOutput struct {
	ID           string            `json:"id"`
	StartedAt    time.Time         `json:"startedAt"`
	EndedAt      time.Time         `json:"endedAt"`
	Input        InterviewInput    `json:"input"`
	SystemPrompt string            `json:"systemPrompt"`
	Transcript   []TranscriptEntry `json:"transcript"`
	FinalResults []TestResult      `json:"finalTestResults,omitempty"`
}

// SessionStatus is the continuously-updated observable state of the
// active session surfaced to collaborators.
type SessionStatus struct {
	Connected  bool    `json:"connected"`
	Capturing  bool    `json:"capturing"`
	AudioLevel float32 `json:"audioLevel"`
	State      string  `json:"state"`
	Error      string  `json:"error,omitempty"`
}

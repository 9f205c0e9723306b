package interview

import (
	"fmt"
	"sync"
	"time"

	"github.com/voxprep/voxprep/internal/types"
)

// Ledger is the append/patch log of conversation entries for one
// session. Entries are append-only except for two in-flight slots: the
// most recent user entry (keyed by the remote stream's item id, patched
// as streaming transcription refines) and the most recent assistant
// entry (rewritten as streamed tokens arrive). Every entry except a raw
// code-sent entry captures the current code buffer at write time.
type Ledger struct {
	mu sync.Mutex

	entries   []types.TranscriptEntry
	userIndex map[string]int // stream item id -> entry position

	getCode      func() string
	getTestCases func() []types.TestCase
}

// NewLedger creates an empty ledger. getCode supplies the live code
// buffer snapshot; getTestCases supplies the current visible test-case
// definitions for test-run enrichment. Both may be nil.
func NewLedger(getCode func() string, getTestCases func() []types.TestCase) *Ledger {
	return &Ledger{
		userIndex:    make(map[string]int),
		getCode:      getCode,
		getTestCases: getTestCases,
	}
}

// AddOrUpdateUserMessage records a user transcript keyed by the remote
// item id. The first call with a new id appends an entry; later calls
// with the same id overwrite that entry's content and code snapshot in
// place, so refined transcriptions never duplicate entries.
func (l *Ledger) AddOrUpdateUserMessage(itemID, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if idx, ok := l.userIndex[itemID]; ok {
		l.entries[idx].Content = content
		l.entries[idx].Code = l.snapshot()
		return
	}

	l.userIndex[itemID] = len(l.entries)
	l.entries = append(l.entries, types.TranscriptEntry{
		Timestamp: time.Now(),
		Role:      types.RoleUser,
		Content:   content,
		Code:      l.snapshot(),
	})
}

// UpdateAssistantMessage overwrites the last entry if it is an
// assistant entry, otherwise appends a fresh one. This realizes
// token-by-token streaming display without one entry per token.
func (l *Ledger) UpdateAssistantMessage(content string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.entries); n > 0 && l.entries[n-1].Role == types.RoleAssistant {
		l.entries[n-1].Content = content
		l.entries[n-1].Code = l.snapshot()
		return
	}

	l.entries = append(l.entries, types.TranscriptEntry{
		Timestamp: time.Now(),
		Role:      types.RoleAssistant,
		Content:   content,
		Code:      l.snapshot(),
	})
}

// AddCodeSent records a code-injection event. The entry carries only
// the injected code, no content.
func (l *Ledger) AddCodeSent(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, types.TranscriptEntry{
		Timestamp: time.Now(),
		Role:      types.RoleCode,
		Code:      code,
	})
}

// AddToolCall records an invoked tool and its result.
func (l *Ledger) AddToolCall(name, result string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, types.TranscriptEntry{
		Timestamp: time.Now(),
		Role:      types.RoleTool,
		ToolName:  name,
		Content:   result,
		Code:      l.snapshot(),
	})
}

// AddTestRun joins raw pass/fail results against the current test-case
// definitions by id and appends one test_run entry summarizing the
// pass count.
func (l *Ledger) AddTestRun(results []types.TestResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cases := make(map[string]types.TestCase)
	if l.getTestCases != nil {
		for _, tc := range l.getTestCases() {
			cases[tc.ID] = tc
		}
	}

	enriched := make([]types.TestResult, len(results))
	passed := 0
	for i, r := range results {
		if tc, ok := cases[r.ID]; ok {
			r.Input = tc.Input
			r.Expected = tc.Expected
		}
		if r.Passed {
			passed++
		}
		enriched[i] = r
	}

	l.entries = append(l.entries, types.TranscriptEntry{
		Timestamp:   time.Now(),
		Role:        types.RoleTestRun,
		Content:     fmt.Sprintf("%d/%d tests passed", passed, len(results)),
		Code:        l.snapshot(),
		TestResults: enriched,
	})
}

// Clear empties the ledger for a new session.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.userIndex = make(map[string]int)
}

// Entries returns a copy of the transcript.
func (l *Ledger) Entries() []types.TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.TranscriptEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger) snapshot() string {
	if l.getCode == nil {
		return ""
	}
	return l.getCode()
}

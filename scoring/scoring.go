// Package scoring grades completed interviews with an LLM. Only the
// I/O contract matters to the rest of the system: a completed
// InterviewOutput goes in, a ScoreCard comes out.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/voxprep/voxprep/internal/types"
)

// DefaultModel is the default scoring model.
const DefaultModel = "gpt-4o"

// ScoreCard is the structured grade for one interview.
type ScoreCard struct {
	Overall    int            `json:"overall"` // 1-10
	Dimensions map[string]int `json:"dimensions"`
	Summary    string         `json:"summary"`
}

// Scorer grades interviews via chat completions.
type Scorer struct {
	client openai.Client
	model  string
}

// NewScorer creates a scorer. An empty model selects DefaultModel.
func NewScorer(apiKey, model string) *Scorer {
	if model == "" {
		model = DefaultModel
	}
	return &Scorer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

const rubric = `You grade mock coding interviews. Given a transcript, return ONLY a
JSON object: {"overall": 1-10, "dimensions": {"problem_solving": 1-10,
"communication": 1-10, "code_quality": 1-10}, "summary": "<2-3 sentences>"}.
Judge the candidate, not the interviewer. Weigh reasoning aloud, correctness
of the final code, and responsiveness to hints.`

// Score grades one completed interview.
func (s *Scorer) Score(ctx context.Context, out types.InterviewOutput) (ScoreCard, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(rubric),
			openai.UserMessage(RenderTranscript(out)),
		},
	})
	if err != nil {
		return ScoreCard{}, fmt.Errorf("score interview: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ScoreCard{}, fmt.Errorf("score interview: no choices")
	}

	card, err := parseScoreCard(resp.Choices[0].Message.Content)
	if err != nil {
		return ScoreCard{}, fmt.Errorf("parse scorecard: %w", err)
	}
	return card, nil
}

// RenderTranscript flattens a completed interview into the plain-text
// form fed to the grading model.
func RenderTranscript(out types.InterviewOutput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Problem: %s\n\n", out.Input.Question)

	for _, e := range out.Transcript {
		switch e.Role {
		case types.RoleUser:
			fmt.Fprintf(&b, "CANDIDATE: %s\n", e.Content)
		case types.RoleAssistant:
			fmt.Fprintf(&b, "INTERVIEWER: %s\n", e.Content)
		case types.RoleCode:
			fmt.Fprintf(&b, "[code at this point]\n%s\n", e.Code)
		case types.RoleTestRun:
			fmt.Fprintf(&b, "[test run: %s]\n", e.Content)
		}
	}

	if len(out.FinalResults) > 0 {
		passed := 0
		for _, r := range out.FinalResults {
			if r.Passed {
				passed++
			}
		}
		fmt.Fprintf(&b, "\nFinal test results: %d/%d passed\n", passed, len(out.FinalResults))
	}

	return b.String()
}

// parseScoreCard tolerates the model wrapping its JSON in code fences.
func parseScoreCard(content string) (ScoreCard, error) {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "{"); i > 0 {
		content = content[i:]
	}
	if i := strings.LastIndex(content, "}"); i >= 0 {
		content = content[:i+1]
	}

	var card ScoreCard
	if err := json.Unmarshal([]byte(content), &card); err != nil {
		return ScoreCard{}, err
	}
	if card.Overall < 1 || card.Overall > 10 {
		return ScoreCard{}, fmt.Errorf("overall score %d out of range", card.Overall)
	}
	return card, nil
}

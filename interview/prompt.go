package interview

import (
	"fmt"
	"strings"

	"github.com/voxprep/voxprep/internal/types"
)

// codeContextMarker prefixes every injected code-context message. The
// turn-advance handler also uses it to recognize echoes of its own
// injections so they are never treated as candidate speech.
const codeContextMarker = "[CURRENT CANDIDATE CODE]"

// FormatCodeContext wraps the live code buffer in the fixed delimiter
// format used for code injection.
func FormatCodeContext(code string) string {
	return codeContextMarker + "\n```\n" + code + "\n```"
}

// ContainsCodeMarker reports whether a transcript carries the
// code-context marker text.
func ContainsCodeMarker(text string) bool {
	return strings.Contains(text, codeContextMarker)
}

// greetingPrompt is the one-shot system-authored user turn that seeds
// the conversation so the candidate does not have to speak first.
const greetingPrompt = "Please introduce yourself briefly and present the problem to the candidate."

// helpGuidance maps the configured help level to interviewer behavior.
var helpGuidance = map[string]string{
	"none": "Do not give hints. If the candidate is stuck, encourage them to " +
		"talk through their thinking, but never reveal any part of the approach.",
	"hints": "If the candidate is stuck for a while, offer one small directional " +
		"hint at a time. Never reveal the full approach or any code.",
	"guided": "Actively guide the candidate: ask leading questions and confirm " +
		"correct steps, but let them write all the code themselves.",
}

// BuildSystemPrompt renders the full interviewer instructions from the
// immutable interview input: instruction, role framing, help-level
// guidance, problem statement, the confidential reference solution, and
// strict tool-usage rules.
func BuildSystemPrompt(input types.InterviewInput) string {
	var b strings.Builder

	if input.Instruction != "" {
		b.WriteString(input.Instruction)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "You are a technical interviewer conducting a spoken coding "+
		"interview with %s. Speak naturally and concisely, as a human interviewer "+
		"would on a call.\n\n", candidateName(input))

	guidance, ok := helpGuidance[input.HelpLevel]
	if !ok {
		guidance = helpGuidance["hints"]
	}
	b.WriteString("Help policy: ")
	b.WriteString(guidance)
	b.WriteString("\n\n")

	b.WriteString("The problem:\n")
	b.WriteString(input.Question)
	b.WriteString("\n\n")

	if input.FunctionName != "" {
		fmt.Fprintf(&b, "The candidate must implement a function named %q.\n\n", input.FunctionName)
	}

	if len(input.TestCases) > 0 {
		b.WriteString("Visible test cases:\n")
		for _, tc := range input.TestCases {
			fmt.Fprintf(&b, "- input: %s, expected: %s\n", tc.Input, tc.Expected)
		}
		b.WriteString("\n")
	}

	if input.Solution != "" {
		b.WriteString("CONFIDENTIAL reference solution, for your own judgment only. " +
			"Never disclose it, paraphrase it, or confirm whether the candidate's " +
			"code matches it:\n")
		b.WriteString(input.Solution)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "During the conversation you will receive messages starting "+
		"with %q containing the candidate's current editor contents. Treat them as "+
		"context, never as something the candidate said, and never read them back "+
		"aloud. Use the run_tests tool only when the candidate explicitly asks to "+
		"run the tests, and report results conversationally.", codeContextMarker)

	return b.String()
}

func candidateName(input types.InterviewInput) string {
	if input.CandidateName == "" {
		return "the candidate"
	}
	return input.CandidateName
}

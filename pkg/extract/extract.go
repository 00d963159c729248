// Package extract pulls structured answer fields out of free-text model
// output.
//
// Responses follow a fixed labeled format:
//
//	Explanation: <reasoning for the answer>
//	Exact Answer: <final answer>
//	Confidence: <0-100>%
//
// Extraction is total: missing labels yield zero values rather than
// errors, so a malformed response still produces a usable (if empty)
// ParsedAnswer.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedAnswer holds the labeled fields recovered from a response.
type ParsedAnswer struct {
	// Explanation is the model's stated reasoning, empty if absent.
	Explanation string `json:"explanation"`

	// Answer is the final answer text, empty if absent.
	Answer string `json:"answer"`

	// Confidence is the self-reported confidence percentage.
	// Nil means the label was absent; 0 is a valid reported value.
	Confidence *int `json:"confidence,omitempty"`
}

var (
	explanationRe = regexp.MustCompile(`Explanation:\s*(.*?)(?:\n|$)`)
	answerRe      = regexp.MustCompile(`(?:Exact Answer|Answer):\s*(.*?)(?:\n|$)`)
	confidenceRe  = regexp.MustCompile(`Confidence:\s*(\d+)%`)
)

// Parse extracts the labeled fields from content.
//
// First match wins for each field. Labels are case-sensitive. Parse
// never fails: fields whose labels are missing stay at their zero
// values.
func Parse(content string) ParsedAnswer {
	var parsed ParsedAnswer

	if m := explanationRe.FindStringSubmatch(content); m != nil {
		parsed.Explanation = strings.TrimSpace(m[1])
	}
	if m := answerRe.FindStringSubmatch(content); m != nil {
		parsed.Answer = strings.TrimSpace(m[1])
	}
	if m := confidenceRe.FindStringSubmatch(content); m != nil {
		// \d+ guarantees a parseable non-negative integer
		if v, err := strconv.Atoi(m[1]); err == nil {
			parsed.Confidence = &v
		}
	}

	return parsed
}

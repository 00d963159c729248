// Package job defines the unit of work for a prediction run and the
// sources that supply it.
//
// A Job is one dataset question. Sources yield jobs from a local JSONL
// dataset file or a built-in test fixture; filters select the subset a
// run should attempt.
package job

// Answer type tags select the prompt template and parse shape.
const (
	// AnswerTypeExactMatch marks questions graded by exact string match.
	AnswerTypeExactMatch = "exact_match"

	// AnswerTypeMultipleChoice marks questions with enumerated choices.
	AnswerTypeMultipleChoice = "multiple_choice"
)

// Job is a single question to run against the model.
//
// Jobs are immutable once read from a source.
type Job struct {
	// ID uniquely identifies the question within the dataset.
	ID string `json:"id"`

	// Question is the full question text.
	Question string `json:"question"`

	// AnswerType selects the prompt template (exact_match or
	// multiple_choice).
	AnswerType string `json:"answer_type"`

	// Image is non-empty when the question requires image input.
	// Such questions are filtered out before submission.
	Image string `json:"image,omitempty"`
}

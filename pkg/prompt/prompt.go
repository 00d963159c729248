// Package prompt builds chat messages for a job.
//
// Two fixed templates exist, selected by the job's answer type. Both
// instruct the model to answer in the labeled format that
// pkg/extract parses.
package prompt

import (
	"strings"

	"github.com/evalforge/modelrun/pkg/job"
)

// Message is one chat-completions message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const exactAnswerTemplate = "You will be given a question and a response format. Please output the answer to the question following the format.\n\nResponse format:\nExplanation: {your explanation for your final answer}\nExact Answer: {your succinct, final answer}\nConfidence: {your confidence score between 0% and 100% for your answer}\n\nQuestion:\n%QUESTION%"

const multipleChoiceTemplate = "You will be given a question and a response format. Please output the answer to the question following the format.\n\nResponse format:\nExplanation: {your explanation for your answer choice}\nAnswer: {your chosen answer}\nConfidence: {your confidence score between 0% and 100% for your answer}\n\nQuestion:\n%QUESTION%"

// Build returns the message list for j.
//
// Exact-match questions get the exact-answer template; everything else
// gets the multiple-choice template.
func Build(j job.Job) []Message {
	template := multipleChoiceTemplate
	if j.AnswerType == job.AnswerTypeExactMatch {
		template = exactAnswerTemplate
	}
	return []Message{
		{
			Role:    "user",
			Content: strings.ReplaceAll(template, "%QUESTION%", j.Question),
		},
	}
}

package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalforge/modelrun/pkg/job"
)

func TestBuild_ExactMatch(t *testing.T) {
	messages := Build(job.Job{
		ID:         "q1",
		Question:   "What is the conductor of chi?",
		AnswerType: job.AnswerTypeExactMatch,
	})

	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
	assert.Contains(t, messages[0].Content, "Exact Answer:")
	assert.Contains(t, messages[0].Content, "What is the conductor of chi?")
	assert.NotContains(t, messages[0].Content, "%QUESTION%")
}

func TestBuild_MultipleChoice(t *testing.T) {
	messages := Build(job.Job{
		ID:         "q2",
		Question:   "Which of the following is prime?",
		AnswerType: job.AnswerTypeMultipleChoice,
	})

	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content, "Answer: {your chosen answer}")
	assert.NotContains(t, messages[0].Content, "Exact Answer:")
	assert.Contains(t, messages[0].Content, "Which of the following is prime?")
}

func TestBuild_UnknownAnswerTypeFallsBackToMultipleChoice(t *testing.T) {
	messages := Build(job.Job{ID: "q3", Question: "?", AnswerType: "other"})

	require.Len(t, messages, 1)
	assert.NotContains(t, messages[0].Content, "Exact Answer:")
}

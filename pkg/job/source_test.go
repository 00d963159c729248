package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestFileSource_Jobs(t *testing.T) {
	path := writeDataset(t, `{"id":"q1","question":"What is 2+2?","answer_type":"exact_match"}

{"id":"q2","question":"Pick one.","answer_type":"multiple_choice","image":"img.png"}
`)

	jobs, err := NewFileSource(path).Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "q1", jobs[0].ID)
	assert.Equal(t, "What is 2+2?", jobs[0].Question)
	assert.Equal(t, AnswerTypeExactMatch, jobs[0].AnswerType)
	assert.Empty(t, jobs[0].Image)

	assert.Equal(t, "q2", jobs[1].ID)
	assert.Equal(t, "img.png", jobs[1].Image)
}

func TestFileSource_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.jsonl")).Jobs()
		assert.Error(t, err)
	})

	t.Run("malformed line", func(t *testing.T) {
		path := writeDataset(t, `{"id":"q1","question":"ok","answer_type":"exact_match"}
{not json
`)
		_, err := NewFileSource(path).Jobs()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("missing id", func(t *testing.T) {
		path := writeDataset(t, `{"question":"no id","answer_type":"exact_match"}`)
		_, err := NewFileSource(path).Jobs()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing id")
	})
}

func TestTestSource(t *testing.T) {
	jobs, err := TestSource{}.Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "test_q1", jobs[0].ID)
	assert.Equal(t, AnswerTypeExactMatch, jobs[0].AnswerType)
}

func TestFilter_Apply(t *testing.T) {
	jobs := []Job{
		{ID: "math/q1"},
		{ID: "math/q2", Image: "diagram.png"},
		{ID: "chem/q1"},
		{ID: "chem/q2"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name:   "empty filter keeps all",
			filter: Filter{},
			want:   []string{"math/q1", "math/q2", "chem/q1", "chem/q2"},
		},
		{
			name:   "skip images",
			filter: Filter{SkipImages: true},
			want:   []string{"math/q1", "chem/q1", "chem/q2"},
		},
		{
			name:   "include pattern",
			filter: Filter{Include: []string{"math/**"}},
			want:   []string{"math/q1", "math/q2"},
		},
		{
			name:   "exclude wins over include",
			filter: Filter{Include: []string{"**"}, Exclude: []string{"chem/*"}},
			want:   []string{"math/q1", "math/q2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(jobs)
			ids := make([]string, 0, len(got))
			for _, j := range got {
				ids = append(ids, j.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, Filter{Include: []string{"math/**"}}.Validate())
	assert.Error(t, Filter{Exclude: []string{"[unclosed"}}.Validate())
}

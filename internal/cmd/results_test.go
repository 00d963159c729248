package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalforge/modelrun/pkg/extract"
	"github.com/evalforge/modelrun/pkg/store"
	filestore "github.com/evalforge/modelrun/pkg/store/file"
)

func TestCollectStats(t *testing.T) {
	ctx := context.Background()
	st, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	confidence := 80
	results := []*store.Result{
		{
			ID:        "q1",
			Question:  "a",
			Reasoning: "thought about it",
			Parsed:    extract.ParsedAnswer{Answer: "42", Confidence: &confidence},
		},
		{
			ID:       "q2",
			Question: "b",
			Parsed:   extract.ParsedAnswer{Answer: "7"},
		},
		{
			ID:       "q3",
			Question: "c",
			// Response that parsed to nothing.
		},
	}
	for _, r := range results {
		require.NoError(t, st.Put(ctx, r))
	}

	stats, err := collectStats(ctx, st)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.WithAnswer)
	assert.Equal(t, 1, stats.WithReasoning)
	assert.Equal(t, 1, stats.WithConfidence)
	assert.Equal(t, 80.0, stats.MeanConfidence)
}

func TestCollectStats_Empty(t *testing.T) {
	st, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	stats, err := collectStats(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.MeanConfidence)
}

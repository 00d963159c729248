package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalforge/modelrun/pkg/extract"
	"github.com/evalforge/modelrun/pkg/store"
)

func testResult(id string) *store.Result {
	confidence := 80
	return &store.Result{
		ID:          id,
		Question:    "What is 2+2?",
		Reasoning:   "adding",
		RawResponse: "Explanation: add\nExact Answer: 4\nConfidence: 80%",
		Parsed: extract.ParsedAnswer{
			Explanation: "add",
			Answer:      "4",
			Confidence:  &confidence,
		},
	}
}

func TestOpen_EmptyDir(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, s.IDs())
	assert.False(t, s.Exists("q1"))
}

func TestOpen_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	want := testResult("q1")
	require.NoError(t, s.Put(ctx, want))

	got, err := s.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Question, got.Question)
	assert.Equal(t, want.RawResponse, got.RawResponse)
	assert.Equal(t, want.Parsed.Answer, got.Parsed.Answer)
	require.NotNil(t, got.Parsed.Confidence)
	assert.Equal(t, 80, *got.Parsed.Confidence)
}

func TestGet_NotFound(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(context.Background(), "missing")
	assert.True(t, store.IsNotFound(err))
}

func TestExists_ReflectsOpenTimeScan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, testResult("q1")))
	require.NoError(t, first.Put(ctx, testResult("q2")))
	require.NoError(t, first.Close())

	// Reopening picks up the persisted completion set.
	second, err := Open(dir)
	require.NoError(t, err)
	defer second.Close()

	assert.True(t, second.Exists("q1"))
	assert.True(t, second.Exists("q2"))
	assert.False(t, second.Exists("q3"))
	assert.ElementsMatch(t, []string{"q1", "q2"}, second.IDs())
}

func TestPut_SameIDLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	first := testResult("q1")
	first.RawResponse = "first"
	require.NoError(t, s.Put(ctx, first))

	second := testResult("q1")
	second.RawResponse = "second"
	require.NoError(t, s.Put(ctx, second))

	got, err := s.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.RawResponse)
}

func TestPut_ConcurrentDistinctIDs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, s.Put(ctx, testResult(id)))
		}(id)
	}
	wg.Wait()

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	assert.ElementsMatch(t, ids, reopened.IDs())
}

func TestOpen_IgnoresPartialArtifacts(t *testing.T) {
	dir := t.TempDir()

	// Simulate a crash mid-write: an orphaned temp file remains.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".q9.12345.tmp"), []byte(`{"id":"q9"`), 0o644))
	// Unrelated files are ignored too.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.Exists("q9"))
	assert.Empty(t, s.IDs())
}

func TestPut_RequiresID(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Put(context.Background(), &store.Result{}))
	assert.Error(t, s.Put(context.Background(), nil))
}

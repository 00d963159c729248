package job

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Source yields the jobs for a run.
type Source interface {
	// Jobs returns all jobs in dataset order.
	//
	// An error here aborts the run before any request is issued.
	Jobs() ([]Job, error)
}

// FileSource reads jobs from a JSONL dataset file, one JSON-encoded
// Job per line. Blank lines are skipped.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the JSONL file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Jobs() ([]Job, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", s.path, err)
	}
	defer f.Close()

	var jobs []Job
	scanner := bufio.NewScanner(f)
	// Question text can be long; allow lines up to 4 MiB.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var j Job
		if err := json.Unmarshal([]byte(line), &j); err != nil {
			return nil, fmt.Errorf("dataset %s line %d: %w", s.path, lineNo, err)
		}
		if j.ID == "" {
			return nil, fmt.Errorf("dataset %s line %d: missing id", s.path, lineNo)
		}
		jobs = append(jobs, j)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", s.path, err)
	}

	return jobs, nil
}

// TestSource yields a single built-in question for pipeline smoke
// testing without a dataset file.
type TestSource struct{}

func (TestSource) Jobs() ([]Job, error) {
	return []Job{
		{
			ID:         "test_q1",
			Question:   "Let $N = 36036$. Find the number of primitive Dirichlet characters of conductor $N$ and order $6$.",
			AnswerType: AnswerTypeExactMatch,
		},
	}, nil
}

// Filter selects the subset of sourced jobs a run should attempt.
//
// Include and Exclude are doublestar glob patterns matched against job
// IDs. An empty Include list includes everything. Exclusions apply
// after inclusions.
type Filter struct {
	// Include lists ID glob patterns to keep. Empty means all.
	Include []string

	// Exclude lists ID glob patterns to drop.
	Exclude []string

	// SkipImages drops jobs that declare image input.
	SkipImages bool
}

// Validate checks that all patterns are well-formed globs.
func (f Filter) Validate() error {
	for _, p := range append(append([]string{}, f.Include...), f.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid job pattern: %q", p)
		}
	}
	return nil
}

// Apply returns the jobs that pass the filter, preserving order.
func (f Filter) Apply(jobs []Job) []Job {
	kept := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if f.SkipImages && j.Image != "" {
			continue
		}
		if len(f.Include) > 0 && !matchAny(f.Include, j.ID) {
			continue
		}
		if matchAny(f.Exclude, j.ID) {
			continue
		}
		kept = append(kept, j)
	}
	return kept
}

func matchAny(patterns []string, id string) bool {
	for _, p := range patterns {
		// Patterns are pre-validated; a bad pattern matches nothing.
		if ok, err := doublestar.Match(p, id); err == nil && ok {
			return true
		}
	}
	return false
}

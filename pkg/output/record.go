// Package output provides JSONL output for prediction runs.
//
// Output is structured as typed record envelopes containing results,
// errors, and progress updates. Each line is a self-contained JSON
// object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
const (
	// TypeResult identifies completed-prediction records.
	TypeResult = "modelrun.result.v1"

	// TypeError identifies error records.
	TypeError = "modelrun.error.v1"

	// TypeProgress identifies progress update records.
	TypeProgress = "modelrun.progress.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "modelrun.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line contains a Record with a type-specific payload in the Data
// field.
type Record struct {
	// Type identifies the record type (e.g., "modelrun.result.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created.
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this run.
	RunID string `json:"run_id"`

	// Model is the model name the run targets.
	Model string `json:"model"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ResultRecord is the data payload for a completed prediction.
//
// The full result artifact lives in the store; the run log carries the
// extracted fields for quick inspection.
type ResultRecord struct {
	// ID is the job identifier.
	ID string `json:"id"`

	// Answer is the extracted final answer.
	Answer string `json:"answer"`

	// Confidence is the extracted confidence, if reported.
	Confidence *int `json:"confidence,omitempty"`

	// ContentBytes is the length of the accumulated content buffer.
	ContentBytes int `json:"content_bytes"`

	// ReasoningBytes is the length of the accumulated reasoning buffer.
	ReasoningBytes int `json:"reasoning_bytes"`

	// Duration is how long the job took end to end.
	Duration time.Duration `json:"duration_ns"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than failing the entire run,
// allowing partial results when some jobs fail.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// ID is the job identifier related to this error, if applicable.
	ID string `json:"id,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeTransport indicates a connection, timeout, or non-2xx
	// endpoint failure.
	ErrCodeTransport = "TRANSPORT"

	// ErrCodeChunkDecode indicates a malformed stream chunk.
	ErrCodeChunkDecode = "CHUNK_DECODE"

	// ErrCodePersistence indicates a store write failure.
	ErrCodePersistence = "PERSISTENCE"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// ProgressRecord is the data payload for progress updates.
type ProgressRecord struct {
	// Phase indicates the current run phase.
	Phase string `json:"phase"`

	// ID is the job the update refers to, if applicable.
	ID string `json:"id,omitempty"`

	// Completed is the number of jobs finished successfully so far.
	Completed int64 `json:"completed"`

	// Failed is the number of jobs that failed so far.
	Failed int64 `json:"failed"`

	// Pending is the number of jobs not yet finished.
	Pending int64 `json:"pending"`
}

// Progress phase constants.
const (
	// PhaseStarting indicates the run is initializing.
	PhaseStarting = "starting"

	// PhaseJobStarted indicates a job acquired a slot and began.
	PhaseJobStarted = "job_started"

	// PhaseJobFinished indicates a job finished (either way).
	PhaseJobFinished = "job_finished"

	// PhaseComplete indicates the run has finished.
	PhaseComplete = "complete"
)

// SummaryRecord is the data payload for final summaries.
type SummaryRecord struct {
	// Total is the number of jobs submitted to the pool.
	Total int64 `json:"total"`

	// Completed is the number of jobs that produced a result.
	Completed int64 `json:"completed"`

	// Failed is the number of jobs that produced no result.
	Failed int64 `json:"failed"`

	// Skipped is the number of jobs filtered out as already complete.
	Skipped int64 `json:"skipped"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

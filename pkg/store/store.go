// Package store defines durable, idempotent persistence of prediction
// results.
//
// A store holds at most one result per job ID. Writes are atomic: a
// reader never observes a partially written result. The set of
// completed IDs is computed once when the store is opened, so
// membership checks during a run are O(1) and race-free.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/evalforge/modelrun/pkg/extract"
)

// Result is the persisted unit: everything produced for one job.
type Result struct {
	// ID is the job identifier the result belongs to.
	ID string `json:"id"`

	// Question is the original question text.
	Question string `json:"question"`

	// Reasoning is the accumulated reasoning_content stream, if the
	// model emitted any.
	Reasoning string `json:"reasoning"`

	// RawResponse is the full accumulated content stream.
	RawResponse string `json:"raw_response"`

	// Parsed holds the extracted answer fields.
	Parsed extract.ParsedAnswer `json:"parsed"`
}

// Store persists results keyed by job ID.
//
// Implementations must allow concurrent Put calls for distinct IDs.
// Put for the same ID twice is idempotent; the second write wins.
type Store interface {
	// Exists reports whether a complete result was already persisted
	// for id when the store was opened.
	Exists(id string) bool

	// IDs returns the completion set snapshot taken at open.
	IDs() []string

	// Put durably persists result under its ID. A partially written
	// result must never become visible to Exists or Get.
	Put(ctx context.Context, result *Result) error

	// Get loads the persisted result for id.
	Get(ctx context.Context, id string) (*Result, error)

	// Close releases any resources held by the store.
	Close() error
}

// Sentinel errors for store error classification.
var (
	// ErrNotFound indicates no result exists for the requested ID.
	ErrNotFound = errors.New("result not found")

	// ErrAccessDenied indicates a permission failure.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnavailable indicates the backing storage is unreachable.
	ErrUnavailable = errors.New("store unavailable")
)

// StoreError wraps backend errors with operation context.
type StoreError struct {
	Op      string // Operation that failed (e.g., "Put", "scan")
	Backend string // Backend identifier ("file", "s3")
	ID      string // Job ID, if applicable
	Err     error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s: %s %s: %v", e.Backend, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("store %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err indicates a missing result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Package file implements a filesystem-backed result store.
//
// Each result is one <id>.json file under the store directory. Writes
// go to a hidden temp file in the same directory and are renamed into
// place, so a crash mid-write leaves either the previous file or
// nothing, never a truncated artifact.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evalforge/modelrun/pkg/store"
)

// Store implements store.Store on a local directory.
type Store struct {
	dir      string
	existing map[string]struct{}
}

var _ store.Store = (*Store)(nil)

// Open creates the store directory if needed and scans it once for
// completed IDs.
//
// A directory that cannot be created or listed is a startup-fatal
// condition for the caller.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("results dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &store.StoreError{Op: "Open", Backend: "file", Err: err}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &store.StoreError{Op: "scan", Backend: "file", Err: err}
	}

	existing := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		// Temp files from interrupted writes are not results.
		if strings.HasPrefix(name, ".") {
			continue
		}
		existing[strings.TrimSuffix(name, ".json")] = struct{}{}
	}

	return &Store{dir: dir, existing: existing}, nil
}

func (s *Store) Exists(id string) bool {
	_, ok := s.existing[id]
	return ok
}

func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.existing))
	for id := range s.existing {
		ids = append(ids, id)
	}
	return ids
}

// Put writes the result to a temp file and renames it into place.
//
// Distinct IDs target distinct paths, so concurrent puts do not
// interfere. Rename over an existing file replaces it atomically
// (last writer wins).
func (s *Store) Put(ctx context.Context, result *store.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result == nil || result.ID == "" {
		return &store.StoreError{Op: "Put", Backend: "file", Err: fmt.Errorf("result id is required")}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return &store.StoreError{Op: "Put", Backend: "file", ID: result.ID, Err: err}
	}
	data = append(data, '\n')

	// Temp file lives in the store directory so the rename stays on
	// one filesystem.
	tmp, err := os.CreateTemp(s.dir, "."+result.ID+".*.tmp")
	if err != nil {
		return &store.StoreError{Op: "Put", Backend: "file", ID: result.ID, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &store.StoreError{Op: "Put", Backend: "file", ID: result.ID, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &store.StoreError{Op: "Put", Backend: "file", ID: result.ID, Err: err}
	}

	if err := os.Rename(tmpName, s.path(result.ID)); err != nil {
		os.Remove(tmpName)
		return &store.StoreError{Op: "Put", Backend: "file", ID: result.ID, Err: err}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*store.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &store.StoreError{Op: "Get", Backend: "file", ID: id, Err: store.ErrNotFound}
		}
		return nil, &store.StoreError{Op: "Get", Backend: "file", ID: id, Err: err}
	}

	var result store.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &store.StoreError{Op: "Get", Backend: "file", ID: id, Err: err}
	}
	return &result, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Package testutil provides shared fakes and fixtures for the imagesmith test suite.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/chis/imagesmith/internal/storage"
)

// Common test errors for use in fakes
var (
	ErrMockUnavailable = errors.New("service unavailable")
	ErrMockPermission  = errors.New("permission denied")
	ErrMockDatabase    = errors.New("database error")
)

// BasicMatrix is a two-variant matrix with an explicit latest alias.
const BasicMatrix = `build_matrix:
  - name: stable
    base-os: "24.04"
    node: "22"
    aliases: [latest]
  - name: edge
    base-os: "24.10"
    node: "23"
`

// WriteNamespace creates root/name/matrix.yml holding content and returns the
// namespace directory.
func WriteNamespace(t *testing.T, root, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create namespace %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "matrix.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write matrix for %s: %v", name, err)
	}
	return dir
}

// NewRunRecord creates a finished build RunRecord for testing.
func NewRunRecord(runID string, failed int) storage.RunRecord {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return storage.RunRecord{
		RunID:     runID,
		Command:   storage.CommandBuild,
		Namespace: "ci",
		Mode:      "sequential",
		Succeeded: 1,
		Failed:    failed,
		StartedAt: started,
		EndedAt:   started.Add(time.Minute),
		Outcomes: []storage.OutcomeRecord{{
			Namespace: "ci",
			Variant:   "stable",
			State:     "pushed",
			Status:    storage.StatusSuccess,
			Tags:      []string{"ghcr.io/acme/ci:stable"},
		}},
	}
}

// MemoryStorage is an in-memory storage.Storage.
type MemoryStorage struct {
	mu      sync.Mutex
	runs    map[string]storage.RunRecord
	SaveErr error
	Closed  bool
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{runs: make(map[string]storage.RunRecord)}
}

func (m *MemoryStorage) SaveRun(_ context.Context, run storage.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if run.RunID == "" {
		return fmt.Errorf("run ID is required")
	}
	m.runs[run.RunID] = run
	return nil
}

func (m *MemoryStorage) ListRuns(_ context.Context, limit int) ([]storage.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := make([]storage.RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		r.Outcomes = nil
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryStorage) GetRun(_ context.Context, runID string) (storage.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return storage.RunRecord{}, fmt.Errorf("%s: %w", runID, storage.ErrRunNotFound)
	}
	return run, nil
}

func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Runs returns every saved run keyed by run ID.
func (m *MemoryStorage) Runs() map[string]storage.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]storage.RunRecord, len(m.runs))
	for k, v := range m.runs {
		out[k] = v
	}
	return out
}

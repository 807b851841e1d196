package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zulandar/inspectyard/internal/execution"
	"github.com/zulandar/inspectyard/internal/models"
)

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory Store with failure injection.
type fakeStore struct {
	mu sync.Mutex

	jobs  []models.Inspection
	execs map[string][]models.AgentExecution

	listErr       error
	listForJobErr map[string]error
	timeoutErr    error
	pendingErr    map[uint]error
	failedErr     error

	timedOut []uint
	pending  []uint
	failed   map[string]string
	notes    []models.ExecutionNote
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		execs:         make(map[string][]models.AgentExecution),
		listForJobErr: make(map[string]error),
		pendingErr:    make(map[uint]error),
		failed:        make(map[string]string),
	}
}

func (f *fakeStore) addJob(id string, execs ...models.AgentExecution) {
	run := "run-" + id
	f.jobs = append(f.jobs, models.Inspection{ID: id, Status: "processing", RunID: &run})
	f.execs[id] = execs
}

func (f *fakeStore) ListProcessing(ctx context.Context) ([]models.Inspection, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.jobs, nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, jobID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failedErr != nil {
		return f.failedErr
	}
	f.failed[jobID] = message
	return nil
}

func (f *fakeStore) ListForJob(ctx context.Context, jobID string) ([]models.AgentExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listForJobErr[jobID]; err != nil {
		return nil, err
	}
	return f.execs[jobID], nil
}

func (f *fakeStore) MarkTimeout(ctx context.Context, exec models.AgentExecution, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timeoutErr != nil {
		return f.timeoutErr
	}
	f.timedOut = append(f.timedOut, exec.ID)
	return nil
}

func (f *fakeStore) MarkPending(ctx context.Context, exec models.AgentExecution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pendingErr[exec.ID]; err != nil {
		return fmt.Errorf("mark pending %d: %w", exec.ID, err)
	}
	f.pending = append(f.pending, exec.ID)
	return nil
}

func (f *fakeStore) AddNote(ctx context.Context, note models.ExecutionNote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
	return nil
}

var _ Store = (*fakeStore)(nil)
var _ execution.Lister = (*fakeStore)(nil)

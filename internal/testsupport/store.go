package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"cadence/internal/config"
	"cadence/internal/job"
)

// MustOpenStore opens a job.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *job.Store {
	t.Helper()

	store, err := job.Open(cfg)
	if err != nil {
		t.Fatalf("job.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a queued job for the given audio path.
func NewJob(t testing.TB, store *job.Store, audioPath string) *job.Job {
	t.Helper()

	j := &job.Job{
		ID:        uuid.NewString(),
		Status:    job.StatusQueued,
		AudioPath: audioPath,
	}
	if err := store.Create(context.Background(), j); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return j
}

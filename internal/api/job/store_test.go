package job

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(100, time.Hour)

	job := store.Create("backtest")
	if job.ID == "" {
		t.Error("expected job ID")
	}
	if job.Status != StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}

	retrieved, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.ID != job.ID {
		t.Error("IDs don't match")
	}
}

func TestStore_Update(t *testing.T) {
	store := NewStore(100, time.Hour)
	job := store.Create("backtest")

	err := store.Update(job.ID, func(j *Job) {
		j.Status = StatusRunning
		j.Progress = 50
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	retrieved, _ := store.Get(job.ID)
	if retrieved.Status != StatusRunning {
		t.Errorf("expected running, got %s", retrieved.Status)
	}
	if retrieved.Progress != 50 {
		t.Errorf("expected 50, got %d", retrieved.Progress)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store := NewStore(100, time.Hour)
	job := store.Create("backtest")

	got, _ := store.Get(job.ID)
	got.Status = StatusFailed

	again, _ := store.Get(job.ID)
	if again.Status != StatusPending {
		t.Errorf("mutating a copy changed the store: %s", again.Status)
	}
}

func TestStore_MaxSize(t *testing.T) {
	store := NewStore(2, time.Hour)

	job1 := store.Create("backtest")
	store.Create("backtest")
	store.Create("backtest") // nothing finished, so the oldest goes

	if _, err := store.Get(job1.ID); err == nil {
		t.Error("expected job1 to be evicted")
	}
}

func TestStore_MaxSizePrefersFinished(t *testing.T) {
	store := NewStore(2, time.Hour)

	running := store.Create("sweep")
	done := store.Create("backtest")
	_ = store.Update(done.ID, func(j *Job) { j.Status = StatusComplete })

	store.Create("backtest")

	if _, err := store.Get(running.ID); err != nil {
		t.Errorf("running job evicted before a finished one: %v", err)
	}
	if _, err := store.Get(done.ID); err == nil {
		t.Error("expected finished job to be evicted")
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(100, time.Hour)

	_, err := store.Get("nonexistent")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Update("nonexistent", func(*Job) {}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
}

func TestStore_TTL(t *testing.T) {
	store := NewStore(100, time.Hour)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	done := store.Create("backtest")
	running := store.Create("backtest")
	store.Update(done.ID, func(j *Job) { j.Status = StatusComplete })
	store.Update(running.ID, func(j *Job) { j.Status = StatusRunning })

	now = now.Add(2 * time.Hour)

	if _, err := store.Get(done.ID); err == nil {
		t.Error("finished job should expire after ttl")
	}
	if _, err := store.Get(running.ID); err != nil {
		t.Errorf("running job must not expire: %v", err)
	}

	store.Create("sweep") // prunes
	if len(store.List()) != 2 {
		t.Errorf("expected 2 live jobs, got %d", len(store.List()))
	}
}

func TestStore_ListAndActive(t *testing.T) {
	store := NewStore(100, time.Hour)
	first := store.Create("backtest")
	store.Create("sweep")
	third := store.Create("backtest")
	store.Update(third.ID, func(j *Job) { j.Status = StatusFailed })

	jobs := store.List()
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID {
		t.Errorf("expected oldest first")
	}

	if n := store.Active("backtest"); n != 1 {
		t.Errorf("expected 1 active backtest, got %d", n)
	}
	if n := store.Active("sweep"); n != 1 {
		t.Errorf("expected 1 active sweep, got %d", n)
	}
}

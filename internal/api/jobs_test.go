package api

import (
	"testing"

	"github.com/FocuswithJustin/CedarPress/core/model"
)

func testDocumentRequest() model.DocumentRequest {
	return model.DocumentRequest{
		Resources: []model.ResourceRequest{
			{Lang: "en", Type: "ulb", Code: "gen"},
		},
	}
}

func TestJobStoreCreate(t *testing.T) {
	store := NewJobStore()

	job := store.Create(testDocumentRequest())

	if job.ID == "" {
		t.Error("job ID should be set")
	}
	if job.Status != JobStatusPending {
		t.Errorf("Status = %q, want %q", job.Status, JobStatusPending)
	}
	if job.CreatedAt == "" || job.UpdatedAt == "" {
		t.Error("timestamps should be set")
	}
	if job.ctx == nil || job.cancel == nil {
		t.Error("job context should be set")
	}
	if store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", store.Count())
	}
}

func TestJobStoreGetReturnsSnapshot(t *testing.T) {
	store := NewJobStore()
	job := store.Create(testDocumentRequest())

	snap, ok := store.Get(job.ID)
	if !ok {
		t.Fatal("Get() should find the job")
	}

	snap.Status = JobStatusFailed
	snap.Error = "mutated copy"

	again, _ := store.Get(job.ID)
	if again.Status != JobStatusPending || again.Error != "" {
		t.Error("mutating a snapshot should not affect the stored job")
	}
}

func TestJobStoreGetMissing(t *testing.T) {
	store := NewJobStore()
	if _, ok := store.Get("no-such-job"); ok {
		t.Error("Get() should report missing jobs")
	}
}

func TestJobStoreUpdate(t *testing.T) {
	store := NewJobStore()
	job := store.Create(testDocumentRequest())

	if err := store.Update(job.ID, JobStatusRunning, 40, nil, ""); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ := store.Get(job.ID)
	if got.Status != JobStatusRunning || got.Progress != 40 {
		t.Errorf("job = %q/%d, want running/40", got.Status, got.Progress)
	}
	if got.CompletedAt != "" {
		t.Error("running job should not have CompletedAt")
	}

	fin := &model.FinishedDocument{Key: "en-ulb-gen", HTMLPath: "/tmp/en-ulb-gen.html"}
	if err := store.Update(job.ID, JobStatusCompleted, 100, fin, ""); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = store.Get(job.ID)
	if got.Status != JobStatusCompleted || got.Progress != 100 {
		t.Errorf("job = %q/%d, want completed/100", got.Status, got.Progress)
	}
	if got.Result == nil || got.Result.Key != "en-ulb-gen" {
		t.Errorf("Result = %+v, want the finished document", got.Result)
	}
	if got.CompletedAt == "" {
		t.Error("completed job should have CompletedAt")
	}

	if err := store.Update("no-such-job", JobStatusRunning, 0, nil, ""); err == nil {
		t.Error("Update() on missing job should error")
	}
}

func TestJobStoreUpdateNegativeProgressKeepsValue(t *testing.T) {
	store := NewJobStore()
	job := store.Create(testDocumentRequest())

	store.Update(job.ID, JobStatusRunning, 70, nil, "")
	store.Update(job.ID, JobStatusFailed, -1, nil, "typesetter exploded")

	got, _ := store.Get(job.ID)
	if got.Progress != 70 {
		t.Errorf("Progress = %d, want 70 preserved", got.Progress)
	}
	if got.Error != "typesetter exploded" {
		t.Errorf("Error = %q", got.Error)
	}
}

func TestJobStoreSetProgress(t *testing.T) {
	store := NewJobStore()
	job := store.Create(testDocumentRequest())

	store.SetProgress(job.ID, "provision", 25)

	got, _ := store.Get(job.ID)
	if got.Stage != "provision" || got.Progress != 25 {
		t.Errorf("job = %q/%d, want provision/25", got.Stage, got.Progress)
	}

	// Missing jobs are ignored.
	store.SetProgress("no-such-job", "resolve", 50)
}

func TestJobStoreCancel(t *testing.T) {
	store := NewJobStore()
	job := store.Create(testDocumentRequest())

	if err := store.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	select {
	case <-job.ctx.Done():
	default:
		t.Error("Cancel() should cancel the job context")
	}

	got, _ := store.Get(job.ID)
	if got.Status != JobStatusCancelled {
		t.Errorf("Status = %q, want cancelled", got.Status)
	}
	if got.CompletedAt == "" {
		t.Error("cancelled job should have CompletedAt")
	}

	if err := store.Cancel(job.ID); err == nil {
		t.Error("cancelling a finished job should error")
	}
	if err := store.Cancel("no-such-job"); err == nil {
		t.Error("cancelling a missing job should error")
	}
}

func TestJobStoreDelete(t *testing.T) {
	store := NewJobStore()
	job := store.Create(testDocumentRequest())

	if err := store.Delete(job.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	select {
	case <-job.ctx.Done():
	default:
		t.Error("deleting a pending job should cancel its context")
	}

	if _, ok := store.Get(job.ID); ok {
		t.Error("deleted job should be gone")
	}
	if err := store.Delete(job.ID); err == nil {
		t.Error("deleting a missing job should error")
	}
}

func TestJobStoreListOrdersByRecency(t *testing.T) {
	store := NewJobStore()

	oldest := store.Create(testDocumentRequest())
	middle := store.Create(testDocumentRequest())
	newest := store.Create(testDocumentRequest())

	// Jobs created within the same second share a timestamp; pin
	// distinct ones so the order is observable.
	store.mu.Lock()
	store.jobs[oldest.ID].CreatedAt = "2026-08-25T09:00:00Z"
	store.jobs[middle.ID].CreatedAt = "2026-08-25T09:01:00Z"
	store.jobs[newest.ID].CreatedAt = "2026-08-25T09:02:00Z"
	store.mu.Unlock()

	jobs := store.List()
	if len(jobs) != 3 {
		t.Fatalf("List() returned %d jobs, want 3", len(jobs))
	}
	if jobs[0].ID != newest.ID || jobs[1].ID != middle.ID || jobs[2].ID != oldest.ID {
		t.Errorf("List() order = [%s %s %s], want newest first",
			jobs[0].CreatedAt, jobs[1].CreatedAt, jobs[2].CreatedAt)
	}
}

package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "crewd.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func mustCreateProject(t *testing.T, st *Store) string {
	t.Helper()
	id, err := st.CreateProject("Todo App", "a todo application")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return id
}

func mustCreateTask(t *testing.T, st *Store, projectID string) string {
	t.Helper()
	id, err := st.CreateTask(projectID, "Implement login", "add login flow", "developer")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return id
}

func TestProjectRoundTrip(t *testing.T) {
	st := newTestStore(t)

	id := mustCreateProject(t, st)
	p, err := st.Project(id)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if p.Name != "Todo App" || p.Description != "a todo application" {
		t.Fatalf("unexpected project: %+v", p)
	}
	if p.Status != "created" {
		t.Fatalf("status = %q, want created", p.Status)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set")
	}
}

func TestProjectByName(t *testing.T) {
	st := newTestStore(t)

	first := mustCreateProject(t, st)
	if _, err := st.CreateProject("Todo App", "duplicate name, later"); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	p, err := st.ProjectByName("Todo App")
	if err != nil {
		t.Fatalf("ProjectByName: %v", err)
	}
	if p.ID != first {
		t.Fatalf("ProjectByName returned %s, want earliest %s", p.ID, first)
	}

	if _, err := st.ProjectByName("no such project"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing project err = %v, want ErrNotFound", err)
	}
}

func TestUpdateProject(t *testing.T) {
	st := newTestStore(t)
	id := mustCreateProject(t, st)

	desc := "updated description"
	status := "in_progress"
	if err := st.UpdateProject(id, ProjectUpdate{Description: &desc, Status: &status}); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	p, err := st.Project(id)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if p.Description != desc || p.Status != status {
		t.Fatalf("update not applied: %+v", p)
	}
	if p.Name != "Todo App" {
		t.Fatalf("nil field changed: name = %q", p.Name)
	}

	// Empty update is a no-op, not an error.
	if err := st.UpdateProject(id, ProjectUpdate{}); err != nil {
		t.Fatalf("empty update: %v", err)
	}

	if err := st.UpdateProject("ghost", ProjectUpdate{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing project err = %v, want ErrNotFound", err)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	st := newTestStore(t)
	projectID := mustCreateProject(t, st)

	taskID := mustCreateTask(t, st, projectID)
	task, err := st.Task(taskID)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if task.ProjectID != projectID || task.Title != "Implement login" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Status != TaskCreated {
		t.Fatalf("status = %q, want %q", task.Status, TaskCreated)
	}

	status := TaskCompleted
	agent := "developer_abc123"
	if err := st.UpdateTask(taskID, TaskUpdate{Status: &status, AssignedAgent: &agent}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	task, err = st.Task(taskID)
	if err != nil {
		t.Fatalf("Task after update: %v", err)
	}
	if task.Status != TaskCompleted || task.AssignedAgent != agent {
		t.Fatalf("update not applied: %+v", task)
	}
}

func TestTasksByProjectOrder(t *testing.T) {
	st := newTestStore(t)
	projectID := mustCreateProject(t, st)

	var want []string
	for i := 0; i < 3; i++ {
		id, err := st.CreateTask(projectID, "task", "", "developer")
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		want = append(want, id)
		time.Sleep(2 * time.Millisecond)
	}

	tasks, err := st.TasksByProject(projectID)
	if err != nil {
		t.Fatalf("TasksByProject: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	for i, task := range tasks {
		if task.ID != want[i] {
			t.Fatalf("task %d = %s, want %s", i, task.ID, want[i])
		}
	}
}

func TestAgentOutputRoundTrip(t *testing.T) {
	st := newTestStore(t)
	projectID := mustCreateProject(t, st)
	taskID := mustCreateTask(t, st, projectID)

	content := map[string]any{"language": "go", "files": []string{"main.go"}}
	id, err := st.StoreAgentOutput(taskID, "developer_abc123", "implementation_code", content)
	if err != nil {
		t.Fatalf("StoreAgentOutput: %v", err)
	}
	if id == "" {
		t.Fatal("empty output id")
	}

	outputs, err := st.AgentOutputs(taskID, "")
	if err != nil {
		t.Fatalf("AgentOutputs: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("got %d outputs, want 1", len(outputs))
	}
	var decoded map[string]any
	if err := json.Unmarshal(outputs[0].Content, &decoded); err != nil {
		t.Fatalf("stored content is not valid JSON: %v", err)
	}
	if decoded["language"] != "go" {
		t.Fatalf("content round-trip lost data: %v", decoded)
	}

	// Filtering by agent.
	outputs, err = st.AgentOutputs(taskID, "someone_else")
	if err != nil {
		t.Fatalf("AgentOutputs filtered: %v", err)
	}
	if len(outputs) != 0 {
		t.Fatalf("agent filter matched %d outputs, want 0", len(outputs))
	}
}

func TestStoreAgentOutputNeverFailsOnSerialization(t *testing.T) {
	st := newTestStore(t)
	projectID := mustCreateProject(t, st)
	taskID := mustCreateTask(t, st, projectID)

	id, err := st.StoreAgentOutput(taskID, "developer_abc123", "implementation_code", make(chan int))
	if err != nil {
		t.Fatalf("StoreAgentOutput with unserializable content: %v", err)
	}
	if id == "" {
		t.Fatal("empty output id")
	}

	outputs, err := st.AgentOutputs(taskID, "developer_abc123")
	if err != nil {
		t.Fatalf("AgentOutputs: %v", err)
	}
	var placeholder map[string]string
	if err := json.Unmarshal(outputs[0].Content, &placeholder); err != nil {
		t.Fatalf("placeholder is not valid JSON: %v", err)
	}
	if placeholder["error"] == "" {
		t.Fatalf("placeholder missing error field: %v", placeholder)
	}
}

func TestErrorLifecycle(t *testing.T) {
	st := newTestStore(t)
	projectID := mustCreateProject(t, st)
	taskID := mustCreateTask(t, st, projectID)

	id, err := st.StoreError(taskID, "testing_abc123", "test_failure", "2 of 5 tests failed", "")
	if err != nil {
		t.Fatalf("StoreError: %v", err)
	}

	rec, err := st.Error(id)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if rec.Status != ErrorOpen {
		t.Fatalf("status = %q, want %q", rec.Status, ErrorOpen)
	}
	if rec.ErrorType != "test_failure" || rec.TaskID != taskID {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.ResolvedAt.IsZero() {
		t.Fatalf("open error has resolved_at %v", rec.ResolvedAt)
	}

	resolvedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := st.UpdateErrorStatus(id, ErrorResolved, "Fix implementation to satisfy failing tests", resolvedAt); err != nil {
		t.Fatalf("UpdateErrorStatus: %v", err)
	}

	rec, err = st.Error(id)
	if err != nil {
		t.Fatalf("Error after resolve: %v", err)
	}
	if rec.Status != ErrorResolved {
		t.Fatalf("status = %q, want %q", rec.Status, ErrorResolved)
	}
	if rec.Resolution == "" {
		t.Fatal("resolution not recorded")
	}
	if !rec.ResolvedAt.Equal(resolvedAt) {
		t.Fatalf("resolved_at = %v, want %v", rec.ResolvedAt, resolvedAt)
	}
}

func TestErrorsByTaskAndStatusFilter(t *testing.T) {
	st := newTestStore(t)
	projectID := mustCreateProject(t, st)
	taskID := mustCreateTask(t, st, projectID)
	otherTask := mustCreateTask(t, st, projectID)

	first, err := st.StoreError(taskID, "a", "agent_failure", "boom", "")
	if err != nil {
		t.Fatalf("StoreError: %v", err)
	}
	if _, err := st.StoreError(otherTask, "b", "test_failure", "fail", ""); err != nil {
		t.Fatalf("StoreError: %v", err)
	}

	byTask, err := st.ErrorsByTask(taskID)
	if err != nil {
		t.Fatalf("ErrorsByTask: %v", err)
	}
	if len(byTask) != 1 || byTask[0].ID != first {
		t.Fatalf("ErrorsByTask = %+v", byTask)
	}

	if err := st.UpdateErrorStatus(first, ErrorResolved, "done", time.Time{}); err != nil {
		t.Fatalf("UpdateErrorStatus: %v", err)
	}

	open, err := st.AllErrors(ErrorOpen)
	if err != nil {
		t.Fatalf("AllErrors open: %v", err)
	}
	if len(open) != 1 || open[0].ErrorType != "test_failure" {
		t.Fatalf("open errors = %+v", open)
	}

	all, err := st.AllErrors("")
	if err != nil {
		t.Fatalf("AllErrors: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d errors, want 2", len(all))
	}
}

func TestUpdateErrorStatusMissing(t *testing.T) {
	st := newTestStore(t)
	if err := st.UpdateErrorStatus("ghost", ErrorResolved, "", time.Time{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCheckpointLatestBySequence(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.LatestCheckpoint(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store err = %v, want ErrNotFound", err)
	}

	var last string
	for i := 0; i < 5; i++ {
		id, err := st.StoreCheckpoint(map[string]any{"step": i})
		if err != nil {
			t.Fatalf("StoreCheckpoint: %v", err)
		}
		last = id
	}

	cp, err := st.LatestCheckpoint()
	if err != nil {
		t.Fatalf("LatestCheckpoint: %v", err)
	}
	if cp.ID != last {
		t.Fatalf("latest = %s, want %s", cp.ID, last)
	}

	var data map[string]any
	if err := json.Unmarshal(cp.Data, &data); err != nil {
		t.Fatalf("checkpoint data: %v", err)
	}
	if data["step"] != float64(4) {
		t.Fatalf("latest checkpoint step = %v, want 4", data["step"])
	}
}

func TestCheckpointByID(t *testing.T) {
	st := newTestStore(t)

	id, err := st.StoreCheckpoint(map[string]string{"phase": "planning"})
	if err != nil {
		t.Fatalf("StoreCheckpoint: %v", err)
	}

	cp, err := st.Checkpoint(id)
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if cp.ID != id || cp.Seq == 0 {
		t.Fatalf("unexpected checkpoint: %+v", cp)
	}

	if _, err := st.Checkpoint("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing checkpoint err = %v, want ErrNotFound", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	st := newTestStore(t)

	// Opening ran migrations once. Running them again must be a no-op.
	if err := Migrate(st.SQL()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	version, err := CurrentVersion(st.SQL())
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	want := migrations[len(migrations)-1].Version
	if version != want {
		t.Fatalf("schema version = %d, want %d", version, want)
	}
}

func TestOpenExpandsTilde(t *testing.T) {
	got := expandPath("~/foo/bar.db")
	if got == "~/foo/bar.db" {
		t.Fatal("tilde not expanded")
	}
	if filepath.Base(got) != "bar.db" {
		t.Fatalf("expanded path = %q", got)
	}
}

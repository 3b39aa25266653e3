package bus

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcus/crewd/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "crewd.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSendDeliveryOrdering(t *testing.T) {
	b := New()

	var wantA, wantB []string
	for i := 0; i < 5; i++ {
		wantA = append(wantA, b.Send(NewMessage("s", "a", fmt.Sprintf("a%d", i), TypeTask)))
		wantB = append(wantB, b.Send(NewMessage("s", "b", fmt.Sprintf("b%d", i), TypeTask)))
	}

	gotA := b.Messages("a", false)
	if len(gotA) != 5 {
		t.Fatalf("mailbox a = %d messages, want 5", len(gotA))
	}
	for i, m := range gotA {
		if m.ID != wantA[i] {
			t.Errorf("mailbox a order broken at %d", i)
		}
	}
	gotB := b.Messages("b", false)
	for i, m := range gotB {
		if m.ID != wantB[i] {
			t.Errorf("mailbox b order broken at %d", i)
		}
	}
}

func TestUnreadMarkReadAtMostOnce(t *testing.T) {
	b := New()
	b.Send(NewMessage("s", "r", "one", TypeTask))
	b.Send(NewMessage("s", "r", "two", TypeTask))

	// Peek without marking leaves messages unread.
	if got := b.UnreadMessages("r", false); len(got) != 2 {
		t.Fatalf("peek = %d, want 2", len(got))
	}
	if got := b.UnreadMessages("r", true); len(got) != 2 {
		t.Fatalf("first fetch = %d, want 2", len(got))
	}
	if got := b.UnreadMessages("r", true); len(got) != 0 {
		t.Fatalf("second fetch = %d, want 0", len(got))
	}

	// Full mailbox still holds both, now read.
	all := b.Messages("r", false)
	if len(all) != 2 || !all[0].Read || !all[1].Read {
		t.Errorf("mailbox = %+v", all)
	}
}

func TestMarkProcessedIdempotent(t *testing.T) {
	b := New()
	id := b.Send(NewMessage("s", "r", "x", TypeTask))

	if !b.MarkProcessed(id) {
		t.Fatal("first MarkProcessed = false")
	}
	if !b.MarkProcessed(id) {
		t.Fatal("second MarkProcessed = false, want idempotent true")
	}
	if b.MarkProcessed("no-such-id") {
		t.Error("unknown id should return false")
	}
}

func TestMarkProcessedFallsBackToHistory(t *testing.T) {
	b := New()
	id := b.Send(NewMessage("s", "r", "x", TypeTask))
	b.MarkProcessed(id)
	b.ClearProcessed()

	// Gone from the mailbox, still reachable through history.
	if got := b.Messages("r", false); len(got) != 0 {
		t.Fatalf("mailbox = %d, want 0 after clear", len(got))
	}
	if !b.MarkProcessed(id) {
		t.Error("history lookup failed after clear")
	}
}

func TestBroadcastFanOut(t *testing.T) {
	b := New()
	content := map[string]any{"announcement": "release"}
	ids := b.Broadcast("s", []string{"r1", "r2", "r3"}, content, TypeBroadcast)

	if len(ids) != 3 {
		t.Fatalf("ids = %d, want 3", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate message id %s", id)
		}
		seen[id] = true
	}
	for i, receiver := range []string{"r1", "r2", "r3"} {
		got := b.Messages(receiver, false)
		if len(got) != 1 {
			t.Fatalf("receiver %s mailbox = %d, want 1", receiver, len(got))
		}
		if got[0].ID != ids[i] {
			t.Errorf("receiver %s holds wrong message", receiver)
		}
		if fmt.Sprint(got[0].Content) != fmt.Sprint(content) {
			t.Errorf("receiver %s content = %v", receiver, got[0].Content)
		}
	}
}

func TestHistoryFilters(t *testing.T) {
	b := New()
	b.Send(NewMessage("alice", "bob", "1", TypeTask, WithTaskID("t1"), WithProjectID("p1")))
	b.Send(NewMessage("alice", "carol", "2", TypeTask, WithTaskID("t2"), WithProjectID("p1")))
	b.Send(NewMessage("bob", "carol", "3", TypeImplementation, WithTaskID("t1"), WithProjectID("p2")))

	tests := []struct {
		name   string
		filter HistoryFilter
		want   int
	}{
		{"all", HistoryFilter{}, 3},
		{"by task", HistoryFilter{TaskID: "t1"}, 2},
		{"by project", HistoryFilter{ProjectID: "p1"}, 2},
		{"by sender", HistoryFilter{SenderID: "alice"}, 2},
		{"by receiver", HistoryFilter{ReceiverID: "carol"}, 2},
		{"and combined", HistoryFilter{TaskID: "t1", SenderID: "alice"}, 1},
		{"no match", HistoryFilter{TaskID: "t1", ProjectID: "p1", SenderID: "bob"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.History(tt.filter); len(got) != tt.want {
				t.Errorf("History(%+v) = %d, want %d", tt.filter, len(got), tt.want)
			}
		})
	}
}

func TestClearProcessedKeepsHistory(t *testing.T) {
	b := New()
	id1 := b.Send(NewMessage("s", "r", "1", TypeTask))
	b.Send(NewMessage("s", "r", "2", TypeTask))
	b.MarkProcessed(id1)

	b.ClearProcessed()

	if got := b.Messages("r", false); len(got) != 1 {
		t.Errorf("mailbox = %d, want 1 unprocessed left", len(got))
	}
	if got := b.History(HistoryFilter{}); len(got) != 2 {
		t.Errorf("history = %d, want 2 (audit trail untouched)", len(got))
	}
}

func TestSendPersistsProjection(t *testing.T) {
	st := newTestStore(t)
	projectID, err := st.CreateProject("P", "d")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	taskID, err := st.CreateTask(projectID, "T", "d", "developer")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	b := New(WithPersister(st))
	b.Send(NewMessage("alice", "bob", map[string]any{"k": "v"}, TypeTask,
		WithTaskID(taskID), WithProjectID(projectID)))

	outputs, err := st.AgentOutputs(taskID, "")
	if err != nil {
		t.Fatalf("AgentOutputs: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(outputs))
	}
	if outputs[0].OutputType != "message_task" {
		t.Errorf("output type = %q", outputs[0].OutputType)
	}
	if !strings.Contains(string(outputs[0].Content), `"sender_id":"alice"`) {
		t.Errorf("projection missing sender: %s", outputs[0].Content)
	}
}

func TestSendBeforeFirstTaskDefersPersistence(t *testing.T) {
	st := newTestStore(t)
	projectID, err := st.CreateProject("P", "d")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	b := New(WithPersister(st))
	// No task id on the message and no tasks in the project yet.
	id := b.Send(NewMessage("system", "pm", "requirements text", TypeRequirements,
		WithProjectID(projectID)))
	if id == "" {
		t.Fatal("Send returned empty id")
	}

	// The send must not manufacture a task; the project stays empty.
	tasks, err := st.TasksByProject(projectID)
	if err != nil {
		t.Fatalf("TasksByProject: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("tasks = %+v, want none before any real task", tasks)
	}

	// Once a real task exists, the next send flushes the held projection.
	taskID, err := st.CreateTask(projectID, "T", "d", "developer")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	b.Send(NewMessage("pm", "developer", "assignment", TypeTask,
		WithTaskID(taskID), WithProjectID(projectID)))

	outputs, err := st.AgentOutputs(taskID, "")
	if err != nil {
		t.Fatalf("AgentOutputs: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("outputs = %d, want held requirements plus task message", len(outputs))
	}
	types := map[string]bool{}
	for _, out := range outputs {
		types[out.OutputType] = true
	}
	if !types["message_requirements"] {
		t.Error("held requirements projection was not flushed")
	}
	if !types["message_task"] {
		t.Error("task message projection missing")
	}
}

func TestSendSurvivesUnserializableContent(t *testing.T) {
	st := newTestStore(t)
	projectID, _ := st.CreateProject("P", "d")
	taskID, _ := st.CreateTask(projectID, "T", "d", "developer")

	b := New(WithPersister(st))
	// Channels cannot be marshaled; Send must degrade, not fail.
	id := b.Send(NewMessage("alice", "bob", make(chan int), TypeTask,
		WithTaskID(taskID), WithProjectID(projectID)))
	if id == "" {
		t.Fatal("Send returned empty id for unserializable content")
	}

	outputs, err := st.AgentOutputs(taskID, "")
	if err != nil {
		t.Fatalf("AgentOutputs: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("outputs = %d, want 1 placeholder", len(outputs))
	}
	if !strings.Contains(string(outputs[0].Content), "error") {
		t.Errorf("placeholder missing error field: %s", outputs[0].Content)
	}
}

func TestMessageImmutableCore(t *testing.T) {
	m := NewMessage("s", "r", "x", TypeTask, WithMetadata(map[string]any{"k": 1}))
	if m.ID == "" || m.Timestamp.IsZero() {
		t.Fatal("id/timestamp not set at creation")
	}
	p := m.Projection()
	if p["id"] != m.ID || p["message_type"] != "task" {
		t.Errorf("projection = %v", p)
	}
}

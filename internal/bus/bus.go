package bus

import (
	"encoding/json"
	"sync"

	"github.com/marcus/crewd/internal/logging"
	"github.com/marcus/crewd/internal/store"
)

// Persister is the slice of the store the bus needs to durably record sent
// messages. Messages without a usable task id are attached to the project's
// first task; messages sent before any task exists are held in memory and
// stored once one does, so bootstrap traffic never inflates the task list.
type Persister interface {
	StoreAgentOutput(taskID, agentID, outputType string, content any) (string, error)
	TasksByProject(projectID string) ([]*store.Task, error)
}

// HistoryFilter selects messages from the global history. Zero-value fields
// match everything; set fields are AND-combined.
type HistoryFilter struct {
	TaskID     string
	ProjectID  string
	SenderID   string
	ReceiverID string
}

// Bus routes messages between agents. Each receiver has an ordered mailbox;
// every message also lands in a flat history that serves as the audit trail.
type Bus struct {
	mu        sync.Mutex
	mailboxes map[string][]*Message
	history   []*Message
	pending   []pendingOutput
	persister Persister
	logger    *logging.Logger
}

// pendingOutput is a message projection waiting for its project's first task.
type pendingOutput struct {
	projectID  string
	senderID   string
	outputType string
	payload    any
}

// Option configures a Bus.
type Option func(*Bus)

// WithPersister enables durable message storage.
func WithPersister(p Persister) Option {
	return func(b *Bus) { b.persister = p }
}

// WithLogger sets the bus logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// New creates a message bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		mailboxes: make(map[string][]*Message),
		logger:    logging.Component("bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Send appends the message to the receiver's mailbox and the history, then
// persists a projection of it. Persistence problems are logged and never
// surface to the caller; Send always returns the message id.
func (b *Bus) Send(m *Message) string {
	b.mu.Lock()
	b.mailboxes[m.ReceiverID] = append(b.mailboxes[m.ReceiverID], m)
	b.history = append(b.history, m)
	b.mu.Unlock()

	if b.persister != nil {
		b.persist(m)
	}
	return m.ID
}

// persist durably records a projection of the message. A projection that
// cannot be marshaled degrades to an error placeholder. Messages without a
// usable task id attach to the project's first task; when the project has no
// tasks yet the projection is held and flushed on a later persist, once the
// first real task exists.
func (b *Bus) persist(m *Message) {
	payload := any(m.Projection())
	if _, err := json.Marshal(payload); err != nil {
		b.logger.WarnCtx("could not serialize message", map[string]any{
			"message_id": m.ID,
			"error":      err.Error(),
		})
		payload = map[string]any{"message_id": m.ID, "error": err.Error()}
	}
	outputType := "message_" + string(m.Type)

	taskID := m.TaskID
	if taskID == "" || taskID == "system" {
		first, err := b.firstTaskID(m.ProjectID)
		if err != nil {
			b.logger.WarnCtx("could not resolve task for message", map[string]any{
				"message_id": m.ID,
				"error":      err.Error(),
			})
			return
		}
		if first == "" {
			b.mu.Lock()
			b.pending = append(b.pending, pendingOutput{
				projectID:  m.ProjectID,
				senderID:   m.SenderID,
				outputType: outputType,
				payload:    payload,
			})
			b.mu.Unlock()
			return
		}
		taskID = first
	}

	b.flushPending(m.ProjectID)
	if _, err := b.persister.StoreAgentOutput(taskID, m.SenderID, outputType, payload); err != nil {
		b.logger.WarnCtx("could not store message", map[string]any{
			"message_id": m.ID,
			"error":      err.Error(),
		})
	}
}

// firstTaskID returns the project's first task id, or "" when it has none.
func (b *Bus) firstTaskID(projectID string) (string, error) {
	tasks, err := b.persister.TasksByProject(projectID)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "", nil
	}
	return tasks[0].ID, nil
}

// flushPending stores held projections for the project against its first
// task. Entries are re-queued when the task lookup fails, so nothing is lost
// before the next persist.
func (b *Bus) flushPending(projectID string) {
	b.mu.Lock()
	var held, rest []pendingOutput
	for _, p := range b.pending {
		if p.projectID == projectID {
			held = append(held, p)
		} else {
			rest = append(rest, p)
		}
	}
	b.pending = rest
	b.mu.Unlock()
	if len(held) == 0 {
		return
	}

	first, err := b.firstTaskID(projectID)
	if err != nil || first == "" {
		b.mu.Lock()
		b.pending = append(held, b.pending...)
		b.mu.Unlock()
		return
	}
	for _, p := range held {
		if _, err := b.persister.StoreAgentOutput(first, p.senderID, p.outputType, p.payload); err != nil {
			b.logger.WarnCtx("could not store held message", map[string]any{
				"project_id": projectID,
				"error":      err.Error(),
			})
		}
	}
}

// Messages returns the receiver's mailbox in delivery order. When markRead is
// true the returned messages flip to read as a side effect.
func (b *Bus) Messages(receiverID string, markRead bool) []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	mailbox := b.mailboxes[receiverID]
	out := make([]*Message, len(mailbox))
	copy(out, mailbox)
	if markRead {
		for _, m := range out {
			m.Read = true
		}
	}
	return out
}

// UnreadMessages returns the receiver's unread messages in delivery order.
// When markRead is true the returned messages flip to read, so a message is
// delivered through this path at most once.
func (b *Bus) UnreadMessages(receiverID string, markRead bool) []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var unread []*Message
	for _, m := range b.mailboxes[receiverID] {
		if !m.Read {
			unread = append(unread, m)
			if markRead {
				m.Read = true
			}
		}
	}
	return unread
}

// MarkProcessed marks a message processed, searching mailboxes first and the
// history as a fallback. Returns false if the id is unknown. Idempotent.
func (b *Bus) MarkProcessed(messageID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, mailbox := range b.mailboxes {
		for _, m := range mailbox {
			if m.ID == messageID {
				m.Processed = true
				return true
			}
		}
	}
	for _, m := range b.history {
		if m.ID == messageID {
			m.Processed = true
			return true
		}
	}
	return false
}

// Broadcast sends one message per receiver, all sharing the same content but
// carrying independent ids. Returns the message ids in receiver order.
func (b *Bus) Broadcast(senderID string, receiverIDs []string, content any, msgType MessageType, opts ...MessageOption) []string {
	ids := make([]string, 0, len(receiverIDs))
	for _, receiverID := range receiverIDs {
		m := NewMessage(senderID, receiverID, content, msgType, opts...)
		ids = append(ids, b.Send(m))
	}
	return ids
}

// History returns messages from the global history matching the filter, in
// original send order. The history is never pruned by ClearProcessed.
func (b *Bus) History(filter HistoryFilter) []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []*Message
	for _, m := range b.history {
		if filter.TaskID != "" && m.TaskID != filter.TaskID {
			continue
		}
		if filter.ProjectID != "" && m.ProjectID != filter.ProjectID {
			continue
		}
		if filter.SenderID != "" && m.SenderID != filter.SenderID {
			continue
		}
		if filter.ReceiverID != "" && m.ReceiverID != filter.ReceiverID {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ClearProcessed removes processed messages from all mailboxes. The history
// keeps them; it is the audit trail.
func (b *Bus) ClearProcessed() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for receiverID, mailbox := range b.mailboxes {
		kept := mailbox[:0]
		for _, m := range mailbox {
			if !m.Processed {
				kept = append(kept, m)
			}
		}
		b.mailboxes[receiverID] = kept
	}
}

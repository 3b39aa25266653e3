// Package bus implements inter-agent messaging: typed message envelopes,
// per-receiver mailboxes, and a global audit history.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// MessageType classifies an inter-agent message.
type MessageType string

const (
	TypeRequirements         MessageType = "requirements"
	TypeTask                 MessageType = "task"
	TypeImplementation       MessageType = "implementation"
	TypeUIImplementation     MessageType = "ui_implementation"
	TypeIntegratedSystem     MessageType = "integrated_system"
	TypeTestedImplementation MessageType = "tested_implementation"
	TypeDocumentation        MessageType = "documentation"
	TypeError                MessageType = "error"
	TypeErrorResolution      MessageType = "error_resolution"
	TypeBroadcast            MessageType = "broadcast"
)

// Message is the envelope for inter-agent communication. ID and Timestamp are
// fixed at creation; Read and Processed are the only fields that change after
// a message has been sent.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Content    any
	Type       MessageType
	TaskID     string
	ProjectID  string
	Metadata   map[string]any
	Timestamp  time.Time
	Read       bool
	Processed  bool
}

// MessageOption customizes a new message.
type MessageOption func(*Message)

// WithTaskID associates the message with a task.
func WithTaskID(taskID string) MessageOption {
	return func(m *Message) { m.TaskID = taskID }
}

// WithProjectID associates the message with a project.
func WithProjectID(projectID string) MessageOption {
	return func(m *Message) { m.ProjectID = projectID }
}

// WithMetadata attaches open key-value metadata.
func WithMetadata(metadata map[string]any) MessageOption {
	return func(m *Message) { m.Metadata = metadata }
}

// NewMessage creates a message envelope with a fresh id and timestamp.
func NewMessage(senderID, receiverID string, content any, msgType MessageType, opts ...MessageOption) *Message {
	m := &Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Type:       msgType,
		Metadata:   map[string]any{},
		Timestamp:  time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Projection returns a plain-data view of the message for persistence and
// snapshots. Timestamps are RFC 3339 strings.
func (m *Message) Projection() map[string]any {
	return map[string]any{
		"id":           m.ID,
		"sender_id":    m.SenderID,
		"receiver_id":  m.ReceiverID,
		"content":      m.Content,
		"message_type": string(m.Type),
		"task_id":      m.TaskID,
		"project_id":   m.ProjectID,
		"metadata":     m.Metadata,
		"timestamp":    m.Timestamp.UTC().Format(time.RFC3339Nano),
		"read":         m.Read,
		"processed":    m.Processed,
	}
}

package orchestrator

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/marcus/crewd/internal/agents"
)

// AgentStatus is the runtime status of one agent instance.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentWorking AgentStatus = "working"
	AgentBlocked AgentStatus = "blocked"
	AgentError   AgentStatus = "error"
)

// AgentState tracks one agent instance. Status transitions are caller-driven;
// any status may follow any other. TaskHistory is append-only and permits
// duplicate assignments.
type AgentState struct {
	AgentID       string      `json:"agent_id"`
	Role          Role        `json:"role"`
	Status        AgentStatus `json:"status"`
	CurrentTaskID string      `json:"current_task_id,omitempty"`
	TaskHistory   []string    `json:"task_history"`
	LastActive    time.Time   `json:"last_active"`
}

// SystemStatus is the overall workflow status.
type SystemStatus string

const (
	SystemInitializing SystemStatus = "initializing"
	SystemRunning      SystemStatus = "running"
	SystemPaused       SystemStatus = "paused"
	SystemCompleted    SystemStatus = "completed"
	SystemError        SystemStatus = "error"
)

// TaskRecord is the in-memory task registry entry.
type TaskRecord struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Title         string    `json:"title"`
	AssignedAgent string    `json:"assigned_agent"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// MessageEntry is a summary of one routed message, kept in the in-memory log.
type MessageEntry struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorEntry is one captured error, kept in the in-memory log.
type ErrorEntry struct {
	ID      string           `json:"id,omitempty"`
	TaskID  string           `json:"task_id,omitempty"`
	AgentID string           `json:"agent_id,omitempty"`
	Kind    agents.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	Time    time.Time        `json:"time"`
}

// SystemState aggregates all agent states, the task registry and the message
// and error logs for one project. Exactly one live SystemState exists per
// orchestrator; it is replaced wholesale on project init or reset.
type SystemState struct {
	mu sync.Mutex

	ProjectID    string
	Status       SystemStatus
	CurrentPhase string
	StartedAt    time.Time
	UpdatedAt    time.Time
	CheckpointID string

	agents   map[string]*AgentState
	byRole   map[Role]string
	tasks    map[string]*TaskRecord
	messages []MessageEntry
	errors   []ErrorEntry
}

// NewSystemState creates an empty state scoped to a project.
func NewSystemState(projectID string) *SystemState {
	now := time.Now().UTC()
	return &SystemState{
		ProjectID: projectID,
		Status:    SystemInitializing,
		StartedAt: now,
		UpdatedAt: now,
		agents:    make(map[string]*AgentState),
		byRole:    make(map[Role]string),
		tasks:     make(map[string]*TaskRecord),
	}
}

// RegisterAgent creates a fresh AgentState for the role. Each role may be
// registered once per state lifetime.
func (s *SystemState) RegisterAgent(role Role) (*AgentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byRole[role]; ok {
		return nil, fmt.Errorf("role %s already registered as %s", role, existing)
	}
	agent := &AgentState{
		AgentID:     NewAgentID(role),
		Role:        role,
		Status:      AgentIdle,
		TaskHistory: []string{},
		LastActive:  time.Now().UTC(),
	}
	s.agents[agent.AgentID] = agent
	s.byRole[role] = agent.AgentID
	s.touch()
	return agent, nil
}

// AgentByRole returns the single agent registered for the role.
func (s *SystemState) AgentByRole(role Role) (*AgentState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRole[role]
	if !ok {
		return nil, false
	}
	return s.agents[id], true
}

// Agent returns the agent with the given id.
func (s *SystemState) Agent(agentID string) (*AgentState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[agentID]
	return agent, ok
}

// UpdateAgentStatus sets the agent's status and bumps LastActive.
func (s *SystemState) UpdateAgentStatus(agentID string, status AgentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return
	}
	agent.Status = status
	agent.LastActive = time.Now().UTC()
	s.touch()
}

// AssignTask records a task assignment. The task id is always appended to the
// history, even when assigned repeatedly; deduplication is the caller's
// responsibility.
func (s *SystemState) AssignTask(agentID, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return
	}
	agent.CurrentTaskID = taskID
	agent.TaskHistory = append(agent.TaskHistory, taskID)
	agent.LastActive = time.Now().UTC()
	s.touch()
}

// AddTask registers a task record.
func (s *SystemState) AddTask(task *TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	s.touch()
}

// AddMessage appends to the message log.
func (s *SystemState) AddMessage(entry MessageEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, entry)
	s.touch()
}

// AddError appends to the error log.
func (s *SystemState) AddError(entry ErrorEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	s.errors = append(s.errors, entry)
	s.touch()
}

// Errors returns a copy of the error log.
func (s *SystemState) Errors() []ErrorEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ErrorEntry, len(s.errors))
	copy(out, s.errors)
	return out
}

// SetStatus updates the overall status.
func (s *SystemState) SetStatus(status SystemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.touch()
}

// SetPhase updates the current phase label.
func (s *SystemState) SetPhase(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentPhase = phase
	s.touch()
}

// SetCheckpoint records the latest persisted checkpoint id.
func (s *SystemState) SetCheckpoint(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CheckpointID = id
	s.touch()
}

func (s *SystemState) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Snapshot reduces the state to plain data: maps, lists, scalars, RFC3339
// timestamps. Elements that fail to serialize are replaced in place by an
// {id, error} fallback so one bad payload never aborts snapshotting.
func (s *SystemState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	agentViews := make(map[string]any, len(s.agents))
	for id, agent := range s.agents {
		agentViews[id] = plainData(id, agent)
	}
	taskViews := make(map[string]any, len(s.tasks))
	for id, task := range s.tasks {
		taskViews[id] = plainData(id, task)
	}
	messageViews := make([]any, 0, len(s.messages))
	for _, entry := range s.messages {
		messageViews = append(messageViews, plainData(entry.ID, entry))
	}
	errorViews := make([]any, 0, len(s.errors))
	for _, entry := range s.errors {
		errorViews = append(errorViews, plainData(entry.ID, entry))
	}

	return map[string]any{
		"project_id":    s.ProjectID,
		"status":        string(s.Status),
		"current_phase": s.CurrentPhase,
		"started_at":    s.StartedAt.Format(time.RFC3339Nano),
		"updated_at":    s.UpdatedAt.Format(time.RFC3339Nano),
		"checkpoint_id": s.CheckpointID,
		"agents":        agentViews,
		"tasks":         taskViews,
		"messages":      messageViews,
		"errors":        errorViews,
	}
}

// plainData round-trips a value through JSON so every timestamp becomes a
// string and every struct a map. Failures degrade to an {id, error} payload.
func plainData(id string, v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"id": id, "error": err.Error()}
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"id": id, "error": err.Error()}
	}
	return out
}
